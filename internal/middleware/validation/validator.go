package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// ValidateStruct runs validator tags on a request DTO and flattens the
// failures into one client-facing message.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, ve := range verrs {
		switch ve.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fieldName(ve)))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", fieldName(ve), ve.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", fieldName(ve), ve.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fieldName(ve), ve.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fieldName(ve)))
		}
	}

	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

func fieldName(ve validator.FieldError) string {
	return strings.ToLower(ve.Field())
}

type Config struct {
	AllowedContentTypes []string
}

func Middleware(cfg Config) fiber.Handler {
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json"}
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == "POST" || c.Method() == "PUT" {
			contentType := c.Get("Content-Type")
			if contentType != "" {
				allowed := false
				for _, allowedType := range cfg.AllowedContentTypes {
					if strings.Contains(contentType, allowedType) {
						allowed = true
						break
					}
				}
				if !allowed {
					return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
						"error": "Unsupported content type",
					})
				}
			}
		}

		return c.Next()
	}
}
