package abtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/scoring"
	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

const (
	AlgorithmFit         = "fit_scoring"
	AlgorithmPartnership = "partnership_scoring"

	WinnerBasic    = "basic"
	WinnerEnhanced = "enhanced"
	WinnerTie      = "tie"

	minSampleSize = 30

	// enhanced has to be more than twice as slow before latency counts
	// against it
	latencyPenaltyRatio    = 2.0
	confidencePenaltyRatio = 2.5
)

type FitEngine interface {
	ScoreFit(ctx context.Context, supplierID, opportunityID string) (*models.ScoringResult, error)
}

type EnhancedFitEngine interface {
	ScoreFitEnhanced(ctx context.Context, supplierID, opportunityID string) (*models.ScoringResult, error)
}

type PartnershipEngine interface {
	ScorePartnerships(ctx context.Context, companyID string, opts scoring.PartnershipOptions) (*scoring.PartnershipReport, error)
}

type EnhancedPartnershipEngine interface {
	ScorePartnershipsEnhanced(ctx context.Context, companyID string, opts scoring.PartnershipOptions) (*scoring.EnhancedPartnershipReport, error)
}

type RunStore interface {
	InsertABTestRun(run *models.ABTestRun) error
	CountABTestRuns(testID string) (int, error)
	ListABTestRuns(testID string) ([]models.ABTestRun, error)
}

type ProgressFunc func(stage string)

// Harness runs the basic and graph-enhanced variants of an algorithm side
// by side on the same inputs and compares the outcomes. Each comparison is
// persisted as one run per variant so that repeated comparisons under the
// same test ID accumulate into a sample.
type Harness struct {
	fit                 FitEngine
	enhancedFit         EnhancedFitEngine
	partnership         PartnershipEngine
	enhancedPartnership EnhancedPartnershipEngine
	store               RunStore
}

type VariantError struct {
	Variant string `json:"variant"`
	Message string `json:"message"`
}

type Comparison struct {
	TestID            string         `json:"test_id"`
	Algorithm         string         `json:"algorithm"`
	BasicScore        int            `json:"basic_score"`
	EnhancedScore     int            `json:"enhanced_score"`
	ScoreDelta        int            `json:"score_delta"`
	ScoreDeltaPct     float64        `json:"score_delta_pct"`
	BasicLatencyMS    int64          `json:"basic_latency_ms"`
	EnhancedLatencyMS int64          `json:"enhanced_latency_ms"`
	BasicInsights     int            `json:"basic_insights"`
	EnhancedInsights  int            `json:"enhanced_insights"`
	BasicFeatures     []string       `json:"basic_features"`
	EnhancedFeatures  []string       `json:"enhanced_features"`
	Winner            string         `json:"winner"`
	Confidence        float64        `json:"confidence"`
	Errors            []VariantError `json:"errors,omitempty"`

	// Full result payload of each variant, so a comparison response carries
	// the scores it judged and not just the deltas.
	BasicResult    json.RawMessage `json:"basic_result,omitempty"`
	EnhancedResult json.RawMessage `json:"enhanced_result,omitempty"`
}

type SignificanceReport struct {
	TestID        string  `json:"test_id"`
	SampleSize    int     `json:"sample_size"`
	MinSampleSize int     `json:"min_sample_size"`
	Sufficient    bool    `json:"sufficient"`
	AvgScoreDelta float64 `json:"avg_score_delta"`
	AvgLatencyMS  float64 `json:"avg_enhanced_latency_ms"`
	ErrorRate     float64 `json:"error_rate"`
}

func NewHarness(fit FitEngine, enhancedFit EnhancedFitEngine, partnership PartnershipEngine, enhancedPartnership EnhancedPartnershipEngine, store RunStore) *Harness {
	return &Harness{
		fit:                 fit,
		enhancedFit:         enhancedFit,
		partnership:         partnership,
		enhancedPartnership: enhancedPartnership,
		store:               store,
	}
}

func (h *Harness) CompareFit(ctx context.Context, testID, supplierID, opportunityID string) (*Comparison, error) {
	return h.CompareFitStream(ctx, testID, supplierID, opportunityID, nil)
}

func (h *Harness) CompareFitStream(ctx context.Context, testID, supplierID, opportunityID string, progress ProgressFunc) (*Comparison, error) {
	if testID == "" {
		testID = uuid.New().String()
	}

	logger.Info("Running fit scoring comparison",
		zap.String("test_id", testID),
		zap.String("supplier_id", supplierID),
		zap.String("opportunity_id", opportunityID),
	)

	emit(progress, "started")

	var (
		wg              sync.WaitGroup
		basic, enhanced *models.ScoringResult
		basicErr        error
		enhancedErr     error
		basicMS         int64
		enhancedMS      int64
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		basic, basicErr = h.fit.ScoreFit(ctx, supplierID, opportunityID)
		basicMS = time.Since(start).Milliseconds()
		emit(progress, "basic_complete")
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		enhanced, enhancedErr = h.enhancedFit.ScoreFitEnhanced(ctx, supplierID, opportunityID)
		enhancedMS = time.Since(start).Milliseconds()
		emit(progress, "enhanced_complete")
	}()
	wg.Wait()

	cmp := &Comparison{
		TestID:            testID,
		Algorithm:         AlgorithmFit,
		BasicLatencyMS:    basicMS,
		EnhancedLatencyMS: enhancedMS,
	}

	if basicErr != nil {
		cmp.Errors = append(cmp.Errors, VariantError{Variant: WinnerBasic, Message: basicErr.Error()})
	}
	if enhancedErr != nil {
		cmp.Errors = append(cmp.Errors, VariantError{Variant: WinnerEnhanced, Message: enhancedErr.Error()})
	}
	if basicErr != nil && enhancedErr != nil {
		return nil, fmt.Errorf("both variants failed: basic: %v, enhanced: %v", basicErr, enhancedErr)
	}

	if basic != nil {
		cmp.BasicScore = basic.OverallScore
		cmp.BasicInsights = len(basic.Recommendations)
		cmp.BasicFeatures = fitFeatures(basic)
	}
	if enhanced != nil {
		cmp.EnhancedScore = enhanced.OverallScore
		cmp.EnhancedInsights = len(enhanced.Recommendations) + len(enhanced.RelationshipInsights)
		cmp.EnhancedFeatures = fitFeatures(enhanced)
	}

	h.finishComparison(cmp, basicErr, enhancedErr, basic, enhanced)
	emit(progress, "complete")

	return cmp, nil
}

func (h *Harness) ComparePartnerships(ctx context.Context, testID, companyID string, opts scoring.PartnershipOptions) (*Comparison, error) {
	if testID == "" {
		testID = uuid.New().String()
	}

	logger.Info("Running partnership scoring comparison",
		zap.String("test_id", testID),
		zap.String("company_id", companyID),
	)

	var (
		wg          sync.WaitGroup
		basic       *scoring.PartnershipReport
		enhanced    *scoring.EnhancedPartnershipReport
		basicErr    error
		enhancedErr error
		basicMS     int64
		enhancedMS  int64
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		start := time.Now()
		basic, basicErr = h.partnership.ScorePartnerships(ctx, companyID, opts)
		basicMS = time.Since(start).Milliseconds()
	}()
	go func() {
		defer wg.Done()
		start := time.Now()
		enhanced, enhancedErr = h.enhancedPartnership.ScorePartnershipsEnhanced(ctx, companyID, opts)
		enhancedMS = time.Since(start).Milliseconds()
	}()
	wg.Wait()

	cmp := &Comparison{
		TestID:            testID,
		Algorithm:         AlgorithmPartnership,
		BasicLatencyMS:    basicMS,
		EnhancedLatencyMS: enhancedMS,
	}

	if basicErr != nil {
		cmp.Errors = append(cmp.Errors, VariantError{Variant: WinnerBasic, Message: basicErr.Error()})
	}
	if enhancedErr != nil {
		cmp.Errors = append(cmp.Errors, VariantError{Variant: WinnerEnhanced, Message: enhancedErr.Error()})
	}
	if basicErr != nil && enhancedErr != nil {
		return nil, fmt.Errorf("both variants failed: basic: %v, enhanced: %v", basicErr, enhancedErr)
	}

	if basic != nil {
		cmp.BasicScore = topPartnershipScore(basic.Scores)
		cmp.BasicInsights = len(basic.Bundles)
		cmp.BasicFeatures = []string{"sub_scores", "bundles"}
	}
	if enhanced != nil {
		cmp.EnhancedScore = topPartnershipScore(enhanced.Scores)
		cmp.EnhancedInsights = len(enhanced.Bundles) + len(enhanced.NetworkStrategies) + len(enhanced.IndirectOpportunities)
		cmp.EnhancedFeatures = []string{"sub_scores", "bundles", "network_strategies", "indirect_opportunities"}
		if enhanced.Centrality != nil {
			cmp.EnhancedFeatures = append(cmp.EnhancedFeatures, "centrality")
		}
	}

	h.finishComparison(cmp, basicErr, enhancedErr, basic, enhanced)

	return cmp, nil
}

func (h *Harness) Significance(testID string) (*SignificanceReport, error) {
	runs, err := h.store.ListABTestRuns(testID)
	if err != nil {
		return nil, fmt.Errorf("failed to load test runs: %w", err)
	}

	report := &SignificanceReport{
		TestID:        testID,
		MinSampleSize: minSampleSize,
	}

	byVariant := map[string][]models.ABTestRun{}
	errored := 0
	for _, run := range runs {
		byVariant[run.Variant] = append(byVariant[run.Variant], run)
		if run.Errored {
			errored++
		}
	}

	basicRuns := byVariant[WinnerBasic]
	enhancedRuns := byVariant[WinnerEnhanced]

	pairs := len(basicRuns)
	if len(enhancedRuns) < pairs {
		pairs = len(enhancedRuns)
	}
	report.SampleSize = pairs
	report.Sufficient = pairs >= minSampleSize

	if pairs > 0 {
		var deltaSum, latencySum float64
		for i := 0; i < pairs; i++ {
			deltaSum += float64(enhancedRuns[i].Score - basicRuns[i].Score)
			latencySum += float64(enhancedRuns[i].ExecutionTimeMS)
		}
		report.AvgScoreDelta = deltaSum / float64(pairs)
		report.AvgLatencyMS = latencySum / float64(pairs)
	}
	if len(runs) > 0 {
		report.ErrorRate = float64(errored) / float64(len(runs))
	}

	return report, nil
}

func (h *Harness) finishComparison(cmp *Comparison, basicErr, enhancedErr error, basicResult, enhancedResult any) {
	cmp.ScoreDelta = cmp.EnhancedScore - cmp.BasicScore
	if cmp.BasicScore > 0 {
		cmp.ScoreDeltaPct = round2(float64(cmp.ScoreDelta) / float64(cmp.BasicScore) * 100)
	}

	cmp.Winner = determineWinner(cmp, basicErr, enhancedErr)
	cmp.Confidence = confidence(cmp, basicErr, enhancedErr)

	cmp.BasicResult = marshalSnapshot(basicResult, basicErr)
	cmp.EnhancedResult = marshalSnapshot(enhancedResult, enhancedErr)

	h.persistRun(cmp, WinnerBasic, cmp.BasicScore, cmp.BasicLatencyMS, basicErr, cmp.BasicResult)
	h.persistRun(cmp, WinnerEnhanced, cmp.EnhancedScore, cmp.EnhancedLatencyMS, enhancedErr, cmp.EnhancedResult)

	logger.Info("Comparison completed",
		zap.String("test_id", cmp.TestID),
		zap.String("algorithm", cmp.Algorithm),
		zap.String("winner", cmp.Winner),
		zap.Int("score_delta", cmp.ScoreDelta),
		zap.Float64("confidence", cmp.Confidence),
	)
}

// determineWinner scores both variants on a fixed rubric: score quality 40,
// insight richness 30, feature breadth 20, latency 10. Latency points go to
// basic only when enhanced is more than twice as slow; on identical runs
// neither side collects them and the result is a tie.
func determineWinner(cmp *Comparison, basicErr, enhancedErr error) string {
	if basicErr != nil && enhancedErr == nil {
		return WinnerEnhanced
	}
	if enhancedErr != nil && basicErr == nil {
		return WinnerBasic
	}

	basicPoints := 0
	enhancedPoints := 0

	if cmp.EnhancedScore > cmp.BasicScore {
		enhancedPoints += 40
	} else if cmp.BasicScore > cmp.EnhancedScore {
		basicPoints += 40
	}

	if cmp.EnhancedInsights > cmp.BasicInsights {
		enhancedPoints += 30
	} else if cmp.BasicInsights > cmp.EnhancedInsights {
		basicPoints += 30
	}

	if len(cmp.EnhancedFeatures) > len(cmp.BasicFeatures) {
		enhancedPoints += 20
	} else if len(cmp.BasicFeatures) > len(cmp.EnhancedFeatures) {
		basicPoints += 20
	}

	if cmp.BasicLatencyMS > 0 && float64(cmp.EnhancedLatencyMS) > float64(cmp.BasicLatencyMS)*latencyPenaltyRatio {
		basicPoints += 10
	}

	if enhancedPoints > basicPoints {
		return WinnerEnhanced
	}
	if basicPoints > enhancedPoints {
		return WinnerBasic
	}
	return WinnerTie
}

func confidence(cmp *Comparison, basicErr, enhancedErr error) float64 {
	if basicErr != nil || enhancedErr != nil {
		return 0.3
	}

	c := 0.5
	c += math.Min(0.3, math.Abs(float64(cmp.ScoreDelta))/50)
	if cmp.EnhancedInsights > cmp.BasicInsights {
		c += 0.1
	}
	if cmp.BasicLatencyMS > 0 && float64(cmp.EnhancedLatencyMS) > float64(cmp.BasicLatencyMS)*confidencePenaltyRatio {
		c -= 0.2
	}

	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return round2(c)
}

func marshalSnapshot(result any, variantErr error) json.RawMessage {
	if variantErr != nil || result == nil {
		return nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil
	}
	return data
}

func (h *Harness) persistRun(cmp *Comparison, variant string, score int, latencyMS int64, variantErr error, snapshot json.RawMessage) {
	run := &models.ABTestRun{
		ID:              uuid.New().String(),
		TestID:          cmp.TestID,
		Algorithm:       cmp.Algorithm,
		Variant:         variant,
		ExecutionTimeMS: latencyMS,
		Score:           score,
		Errored:         variantErr != nil,
		ResultSnapshot:  string(snapshot),
		CreatedAt:       time.Now(),
	}

	if err := h.store.InsertABTestRun(run); err != nil {
		logger.Warn("Failed to persist test run",
			zap.String("test_id", cmp.TestID),
			zap.String("variant", variant),
			zap.Error(err),
		)
	}
}

func fitFeatures(r *models.ScoringResult) []string {
	features := []string{"judge_panel", "constraint_gate"}
	if r.Enhanced {
		features = append(features, "relationship_graph")
	}
	if len(r.RelationshipInsights) > 0 {
		features = append(features, "relationship_insights")
	}
	return features
}

func topPartnershipScore(scores []models.PartnershipScore) int {
	best := 0
	for _, s := range scores {
		if s.Overall > best {
			best = s.Overall
		}
	}
	return best
}

func emit(progress ProgressFunc, stage string) {
	if progress != nil {
		progress(stage)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
