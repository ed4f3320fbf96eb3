package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/ingestion"
	"github.com/bidfit/backend/internal/metrics"
	"github.com/bidfit/backend/pkg/logger"
)

type IngestHandler struct {
	processor *ingestion.Processor
}

func NewIngestHandler(processor *ingestion.Processor) *IngestHandler {
	return &IngestHandler{processor: processor}
}

func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	report, err := h.processor.Run(c.Context())
	if err != nil {
		logger.Error("Ingestion batch failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to fetch opportunity feed",
		})
	}

	metrics.OpportunitiesIngested.WithLabelValues("stored").Add(float64(report.Stored))
	metrics.OpportunitiesIngested.WithLabelValues("updated").Add(float64(report.Updated))
	metrics.OpportunitiesIngested.WithLabelValues("skipped").Add(float64(report.Skipped))
	metrics.OpportunitiesIngested.WithLabelValues("failed").Add(float64(len(report.Failures)))
	metrics.DuplicatesResolved.Add(float64(report.DuplicateCount))

	return c.JSON(report)
}
