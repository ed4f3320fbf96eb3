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

type PartnershipHandler struct {
	partnerships *scoring.PartnershipService
	enhancer     *scoring.Enhancer
}

type partnersRequest struct {
	CompanyID string `json:"company_id" validate:"required"`
	MinScore  int    `json:"min_score" validate:"min=0,max=100"`
	Limit     int    `json:"limit" validate:"min=0,max=100"`
}

func NewPartnershipHandler(partnerships *scoring.PartnershipService, enhancer *scoring.Enhancer) *PartnershipHandler {
	return &PartnershipHandler{
		partnerships: partnerships,
		enhancer:     enhancer,
	}
}

func (h *PartnershipHandler) HandlePartners(c *fiber.Ctx) error {
	req, ok := parsePartnersRequest(c)
	if !ok {
		return nil
	}

	start := time.Now()
	report, err := h.partnerships.ScorePartnerships(c.Context(), req.CompanyID, scoring.PartnershipOptions{
		MinScore: req.MinScore,
		Limit:    req.Limit,
	})
	metrics.ScoringDuration.WithLabelValues("partnership", "basic").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScoringTotal.WithLabelValues("partnership", "basic", "error").Inc()
		return partnershipError(c, err)
	}

	metrics.ScoringTotal.WithLabelValues("partnership", "basic", "success").Inc()

	return c.JSON(report)
}

func (h *PartnershipHandler) HandlePartnersEnhanced(c *fiber.Ctx) error {
	req, ok := parsePartnersRequest(c)
	if !ok {
		return nil
	}

	start := time.Now()
	report, err := h.enhancer.ScorePartnershipsEnhanced(c.Context(), req.CompanyID, scoring.PartnershipOptions{
		MinScore: req.MinScore,
		Limit:    req.Limit,
	})
	metrics.ScoringDuration.WithLabelValues("partnership", "enhanced").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.ScoringTotal.WithLabelValues("partnership", "enhanced", "error").Inc()
		return partnershipError(c, err)
	}

	metrics.ScoringTotal.WithLabelValues("partnership", "enhanced", "success").Inc()

	return c.JSON(report)
}

func parsePartnersRequest(c *fiber.Ctx) (*partnersRequest, bool) {
	var req partnersRequest
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

func partnershipError(c *fiber.Ctx, err error) error {
	if errors.Is(err, sqlite.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Company not found",
		})
	}

	logger.Error("Failed to score partnerships", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Failed to score partnerships",
	})
}
