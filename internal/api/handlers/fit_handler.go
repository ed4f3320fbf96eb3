package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/internal/middleware/validation"
	"github.com/bidfit/backend/internal/scoring"
	"github.com/bidfit/backend/internal/storage/sqlite"
	"github.com/bidfit/backend/pkg/logger"
)

type FitHandler struct {
	fit      *scoring.FitService
	enhancer *scoring.Enhancer
}

type scoreRequest struct {
	SupplierID    string `json:"supplier_id" validate:"required"`
	OpportunityID string `json:"opportunity_id" validate:"required"`
}

func NewFitHandler(fit *scoring.FitService, enhancer *scoring.Enhancer) *FitHandler {
	return &FitHandler{
		fit:      fit,
		enhancer: enhancer,
	}
}

func (h *FitHandler) HandleScore(c *fiber.Ctx) error {
	req, ok := parseScoreRequest(c)
	if !ok {
		return nil
	}

	start := time.Now()
	result, err := h.fit.ScoreFit(c.Context(), req.SupplierID, req.OpportunityID)
	metrics.ScoringDuration.WithLabelValues("fit", "basic").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScoringTotal.WithLabelValues("fit", "basic", "error").Inc()
		return scoreError(c, err)
	}

	metrics.ScoringTotal.WithLabelValues("fit", "basic", "success").Inc()
	metrics.VerdictTotal.WithLabelValues(result.Verdict).Inc()

	return c.JSON(result)
}

func (h *FitHandler) HandleScoreEnhanced(c *fiber.Ctx) error {
	req, ok := parseScoreRequest(c)
	if !ok {
		return nil
	}

	start := time.Now()
	result, err := h.enhancer.ScoreFitEnhanced(c.Context(), req.SupplierID, req.OpportunityID)
	metrics.ScoringDuration.WithLabelValues("fit", "enhanced").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScoringTotal.WithLabelValues("fit", "enhanced", "error").Inc()
		return scoreError(c, err)
	}

	metrics.ScoringTotal.WithLabelValues("fit", "enhanced", "success").Inc()
	metrics.VerdictTotal.WithLabelValues(result.Verdict).Inc()
	metrics.EnhancementImprovement.Observe(float64(result.OverallScore - result.BasicScore))

	return c.JSON(result)
}

func parseScoreRequest(c *fiber.Ctx) (*scoreRequest, bool) {
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
		return nil, false
	}

	if err := validation.ValidateStruct(&req); err != nil {
		c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
		return nil, false
	}

	return &req, true
}

func scoreError(c *fiber.Ctx, err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Supplier or opportunity not found",
		})
	}

	logger.Error("Failed to score fit", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to score fit",
	})
}
