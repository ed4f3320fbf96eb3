package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

// FitStore is the slice of persistence the fit pipeline needs.
type FitStore interface {
	GetSupplier(id string) (*models.Supplier, error)
	GetOpportunity(id string) (*models.Opportunity, error)
	UpsertScoringResult(r *models.ScoringResult) error
}

type FitService struct {
	store FitStore
	gate  ConstraintGate
	panel *JudgePanel
}

func NewFitService(store FitStore, weights FitWeights) (*FitService, error) {
	panel, err := NewJudgePanel(weights)
	if err != nil {
		return nil, fmt.Errorf("invalid fit weights: %w", err)
	}

	return &FitService{
		store: store,
		panel: panel,
	}, nil
}

// ScoreFit evaluates one supplier against one opportunity and persists the
// result keyed by the pair (re-scoring overwrites, it does not version).
func (s *FitService) ScoreFit(ctx context.Context, supplierID, opportunityID string) (*models.ScoringResult, error) {
	supplier, err := s.store.GetSupplier(supplierID)
	if err != nil {
		return nil, err
	}

	opp, err := s.store.GetOpportunity(opportunityID)
	if err != nil {
		return nil, err
	}

	result := s.EvaluatePair(supplier, opp)

	if err := s.store.UpsertScoringResult(result); err != nil {
		return nil, fmt.Errorf("failed to persist scoring result: %w", err)
	}

	logger.Info("Fit scored",
		zap.String("supplier_id", supplierID),
		zap.String("opportunity_id", opportunityID),
		zap.Int("score", result.OverallScore),
		zap.String("verdict", result.Verdict),
	)
	return result, nil
}

// EvaluatePair is the pure scoring path: constraint gate first, judges only
// when the gate passes. A failed gate yields score 0, verdict rejected, and
// no judge evaluations.
func (s *FitService) EvaluatePair(supplier *models.Supplier, opp *models.Opportunity) *models.ScoringResult {
	result := &models.ScoringResult{
		ID:            uuid.New().String(),
		SupplierID:    supplier.ID,
		OpportunityID: opp.ID,
		CreatedAt:     time.Now(),
	}

	gate := s.gate.Check(supplier, opp)
	if !gate.Passed {
		result.OverallScore = 0
		result.Verdict = VerdictRejected
		result.ConstraintFailures = gate.Failures
		return result
	}

	score, evals := s.panel.Evaluate(supplier, opp)
	result.OverallScore = score
	result.Verdict = OverallVerdict(score)
	result.JudgeEvaluations = evals
	result.Recommendations = CollectRecommendations(evals)

	return result
}
