package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/graph"
	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/internal/middleware/validation"
	"github.com/bidfit/backend/pkg/logger"
)

type GraphHandler struct {
	graph *graph.Service
}

type relationshipRequest struct {
	SourceID   string            `json:"source_id" validate:"required"`
	SourceType string            `json:"source_type" validate:"required,oneof=supplier opportunity person"`
	TargetID   string            `json:"target_id" validate:"required"`
	TargetType string            `json:"target_type" validate:"required,oneof=supplier opportunity person"`
	Type       string            `json:"type" validate:"required"`
	Strength   float64           `json:"strength"`
	Confidence float64           `json:"confidence"`
	Metadata   map[string]string `json:"metadata"`
}

func NewGraphHandler(g *graph.Service) *GraphHandler {
	return &GraphHandler{graph: g}
}

func (h *GraphHandler) HandleCreateRelationship(c *fiber.Ctx) error {
	var req relationshipRequest
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

	edge := graph.Edge{
		Source:     graph.EntityRef{ID: req.SourceID, Type: req.SourceType},
		Target:     graph.EntityRef{ID: req.TargetID, Type: req.TargetType},
		Type:       req.Type,
		Strength:   req.Strength,
		Confidence: req.Confidence,
		Metadata:   req.Metadata,
	}

	if err := h.graph.CreateRelationship(c.Context(), edge); err != nil {
		if errors.Is(err, graph.ErrInvalidStrength) || errors.Is(err, graph.ErrInvalidConfidence) || errors.Is(err, graph.ErrEmptyEntity) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		logger.Error("Failed to create relationship", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create relationship",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"status": "created",
	})
}

func (h *GraphHandler) HandleConnections(c *fiber.Ctx) error {
	entityID := c.Query("entity_id")
	entityType := c.Query("entity_type")
	if entityID == "" || entityType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "entity_id and entity_type are required",
		})
	}

	maxDepth := graph.MaxTraversalDepth
	if raw := c.Query("max_depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "max_depth must be a positive integer",
			})
		}
		maxDepth = parsed
	}

	start := time.Now()
	connections, err := h.graph.FindConnectedEntities(c.Context(), graph.EntityRef{ID: entityID, Type: entityType}, maxDepth, c.Query("relationship_type"))
	metrics.GraphTraversalDuration.WithLabelValues("connections").Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Failed to find connections", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to find connections",
		})
	}

	metrics.ConnectedEntitiesCount.Observe(float64(len(connections)))

	return c.JSON(fiber.Map{
		"entity_id":   entityID,
		"entity_type": entityType,
		"max_depth":   maxDepth,
		"connections": connections,
	})
}

func (h *GraphHandler) HandleCentrality(c *fiber.Ctx) error {
	entityID := c.Query("entity_id")
	entityType := c.Query("entity_type")
	if entityID == "" || entityType == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "entity_id and entity_type are required",
		})
	}

	start := time.Now()
	centrality, found, err := h.graph.CalculateEntityCentrality(c.Context(), graph.EntityRef{ID: entityID, Type: entityType})
	metrics.GraphTraversalDuration.WithLabelValues("centrality").Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error("Failed to calculate centrality", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to calculate centrality",
		})
	}
	if !found {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Entity has no relationships",
		})
	}

	return c.JSON(centrality)
}
