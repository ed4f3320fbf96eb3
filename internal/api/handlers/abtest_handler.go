package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/abtest"
	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/internal/middleware/validation"
	"github.com/bidfit/backend/internal/scoring"
	"github.com/bidfit/backend/pkg/logger"
)

type ABTestHandler struct {
	harness *abtest.Harness
}

type abtestRequest struct {
	TestID        string `json:"test_id"`
	Algorithm     string `json:"algorithm" validate:"required,oneof=fit_scoring partnership_scoring"`
	SupplierID    string `json:"supplier_id"`
	OpportunityID string `json:"opportunity_id"`
	CompanyID     string `json:"company_id"`
	MinScore      int    `json:"min_score" validate:"min=0,max=100"`
	Limit         int    `json:"limit" validate:"min=0,max=100"`
}

func NewABTestHandler(harness *abtest.Harness) *ABTestHandler {
	return &ABTestHandler{harness: harness}
}

func (h *ABTestHandler) HandleCompare(c *fiber.Ctx) error {
	var req abtestRequest
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

	var (
		cmp *abtest.Comparison
		err error
	)

	switch req.Algorithm {
	case abtest.AlgorithmFit:
		if req.SupplierID == "" || req.OpportunityID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "supplier_id and opportunity_id are required for fit_scoring",
			})
		}
		cmp, err = h.harness.CompareFit(c.Context(), req.TestID, req.SupplierID, req.OpportunityID)
	case abtest.AlgorithmPartnership:
		if req.CompanyID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "company_id is required for partnership_scoring",
			})
		}
		cmp, err = h.harness.ComparePartnerships(c.Context(), req.TestID, req.CompanyID, scoring.PartnershipOptions{
			MinScore: req.MinScore,
			Limit:    req.Limit,
		})
	}

	if err != nil {
		logger.Error("Comparison failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to run comparison",
		})
	}

	metrics.ABTestRunsTotal.WithLabelValues(cmp.Algorithm, cmp.Winner).Inc()

	// The runs persisted by this comparison count toward the sample, so the
	// read-out reflects the accumulated state including this call.
	sig, sigErr := h.harness.Significance(cmp.TestID)
	if sigErr != nil {
		logger.Warn("Failed to compute significance for comparison", zap.Error(sigErr))
	}

	return c.JSON(fiber.Map{
		"comparison":   cmp,
		"significance": sig,
	})
}

func (h *ABTestHandler) HandleSignificance(c *fiber.Ctx) error {
	testID := c.Params("testID")
	if testID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "testID is required",
		})
	}

	report, err := h.harness.Significance(testID)
	if err != nil {
		logger.Error("Failed to compute significance", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute significance",
		})
	}

	return c.JSON(report)
}
