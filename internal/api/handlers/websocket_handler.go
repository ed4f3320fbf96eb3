package handlers

import (
	"context"
	"sync"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/abtest"
	"github.com/bidfit/backend/pkg/logger"
)

// WebSocketHandler streams A/B comparison progress to a connected client.
// The client sends one message per comparison; stage events arrive as the
// variants finish and the final message carries the full comparison.
type WebSocketHandler struct {
	harness *abtest.Harness

	// stage callbacks fire from the variant goroutines, writes must be
	// serialized
	writeMu sync.Mutex
}

func NewWebSocketHandler(harness *abtest.Harness) *WebSocketHandler {
	return &WebSocketHandler{harness: harness}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type          string `json:"type"`
			TestID        string `json:"test_id"`
			SupplierID    string `json:"supplier_id"`
			OpportunityID string `json:"opportunity_id"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "compare_fit" {
			continue
		}

		if msg.SupplierID == "" || msg.OpportunityID == "" {
			h.sendError(c, "supplier_id and opportunity_id are required")
			continue
		}

		logger.Info("Processing WebSocket comparison",
			zap.String("supplier_id", msg.SupplierID),
			zap.String("opportunity_id", msg.OpportunityID),
		)

		err = h.streamComparison(c, msg.TestID, msg.SupplierID, msg.OpportunityID)
		if err != nil {
			logger.Error("Failed to stream comparison", zap.Error(err))
			h.sendError(c, "Failed to run comparison")
		}
	}
}

func (h *WebSocketHandler) streamComparison(c *websocket.Conn, testID, supplierID, opportunityID string) error {
	ctx := context.Background()

	h.sendStage(c, "started")

	cmp, err := h.harness.CompareFitStream(ctx, testID, supplierID, opportunityID, func(stage string) {
		if stage == "started" {
			return
		}
		h.sendStage(c, stage)
	})
	if err != nil {
		return err
	}

	return h.sendComplete(c, cmp)
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage string) error {
	msg := map[string]interface{}{
		"type":  "stage",
		"stage": stage,
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, cmp *abtest.Comparison) error {
	msg := map[string]interface{}{
		"type":       "complete",
		"test_id":    cmp.TestID,
		"comparison": cmp,
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	c.WriteJSON(msg)
}
