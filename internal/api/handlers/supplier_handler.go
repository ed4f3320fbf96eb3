package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/middleware/validation"
	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/internal/storage/sqlite"
	"github.com/bidfit/backend/pkg/logger"
)

type SupplierHandler struct {
	db *sqlite.Client
}

type supplierRequest struct {
	ID              string   `json:"id"`
	Name            string   `json:"name" validate:"required"`
	Capabilities    []string `json:"capabilities"`
	Certifications  []string `json:"certifications"`
	Industries      []string `json:"industries"`
	Regions         []string `json:"regions"`
	Technologies    []string `json:"technologies"`
	SizeClass       string   `json:"size_class" validate:"omitempty,oneof=micro small medium large enterprise"`
	TeamSize        int      `json:"team_size" validate:"min=0"`
	YearsExperience int      `json:"years_experience" validate:"min=0"`
	Credibility     float64  `json:"credibility" validate:"min=0,max=100"`
}

func NewSupplierHandler(db *sqlite.Client) *SupplierHandler {
	return &SupplierHandler{db: db}
}

func (h *SupplierHandler) HandleUpsert(c *fiber.Ctx) error {
	var req supplierRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := validation.ValidateStruct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	supplier := &models.Supplier{
		ID:              req.ID,
		Name:            req.Name,
		Capabilities:    req.Capabilities,
		Certifications:  req.Certifications,
		Industries:      req.Industries,
		Regions:         req.Regions,
		Technologies:    req.Technologies,
		SizeClass:       req.SizeClass,
		TeamSize:        req.TeamSize,
		YearsExperience: req.YearsExperience,
		Credibility:     req.Credibility,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := h.db.UpsertSupplier(supplier); err != nil {
		logger.Error("Failed to upsert supplier", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to store supplier",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(supplier)
}

func (h *SupplierHandler) HandleGet(c *fiber.Ctx) error {
	id := c.Params("id")
	supplier, err := h.db.GetSupplier(id)
	if err != nil {
		if errors.Is(err, sqlite.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Supplier not found",
			})
		}
		logger.Error("Failed to load supplier", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load supplier",
		})
	}

	return c.JSON(supplier)
}
