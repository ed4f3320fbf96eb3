package scoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/graph"
	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

// GraphContext is the slice of the relationship graph the blender consults.
type GraphContext interface {
	FindConnectedEntities(ctx context.Context, origin graph.EntityRef, maxDepth int, typeFilter string) ([]graph.ConnectedEntity, error)
	FindMutualConnections(ctx context.Context, a, b graph.EntityRef) ([]graph.MutualConnection, error)
	FindPotentialPartners(ctx context.Context, ref graph.EntityRef, limit int) ([]graph.PartnerCandidate, error)
	CalculateEntityCentrality(ctx context.Context, ref graph.EntityRef) (*graph.EntityCentrality, bool, error)
}

type IndirectOpportunity struct {
	OpportunityID    string  `json:"opportunity_id"`
	SeparationDegree int     `json:"separation_degree"`
	PathStrength     float64 `json:"path_strength"`
}

type EnhancedPartnershipReport struct {
	PartnershipReport
	IndirectOpportunities []IndirectOpportunity   `json:"indirect_opportunities"`
	NetworkStrategies     []string                `json:"network_strategies"`
	Centrality            *graph.EntityCentrality `json:"centrality,omitempty"`
}

// Enhancer wraps the basic fit and partnership paths with graph-derived
// bonuses. It is a decorator: the inner result is computed unchanged and the
// bonus is strictly additive, bounded by the policy's MaxImprovement, so the
// enhanced score is never below the basic one. When the graph store is
// unreachable the basic result is returned untouched.
type Enhancer struct {
	fit          *FitService
	partnerships *PartnershipService
	graph        GraphContext
	policy       EnhancementPolicy
}

func NewEnhancer(fit *FitService, partnerships *PartnershipService, graphCtx GraphContext, policy EnhancementPolicy) (*Enhancer, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid enhancement policy: %w", err)
	}

	return &Enhancer{
		fit:          fit,
		partnerships: partnerships,
		graph:        graphCtx,
		policy:       policy,
	}, nil
}

type fitGraphContext struct {
	connected []graph.ConnectedEntity
	mutuals   []graph.MutualConnection
	err       error
}

func (e *Enhancer) ScoreFitEnhanced(ctx context.Context, supplierID, opportunityID string) (*models.ScoringResult, error) {
	supplierRef := graph.EntityRef{ID: supplierID, Type: graph.EntityTypeSupplier}
	oppRef := graph.EntityRef{ID: opportunityID, Type: graph.EntityTypeOpportunity}

	var (
		wg       sync.WaitGroup
		basic    *models.ScoringResult
		basicErr error
		gctx     fitGraphContext
	)

	// The basic evaluation and the graph lookups are independent; only the
	// blend step needs both.
	wg.Add(2)
	go func() {
		defer wg.Done()
		basic, basicErr = e.fit.ScoreFit(ctx, supplierID, opportunityID)
	}()
	go func() {
		defer wg.Done()
		gctx.connected, gctx.err = e.graph.FindConnectedEntities(ctx, supplierRef, graph.MaxTraversalDepth, "")
		if gctx.err != nil {
			return
		}
		gctx.mutuals, gctx.err = e.graph.FindMutualConnections(ctx, supplierRef, oppRef)
	}()
	wg.Wait()

	if basicErr != nil {
		return nil, basicErr
	}

	// A rejected gate outcome is final; graph context must not rescue it.
	if basic.Verdict == VerdictRejected {
		return basic, nil
	}

	result := *basic
	result.Enhanced = true
	result.BasicScore = basic.OverallScore

	if gctx.err != nil {
		logger.Warn("Relationship graph unavailable, returning basic score",
			zap.String("supplier_id", supplierID),
			zap.Error(gctx.err),
		)
		result.RelationshipInsights = []string{"relationship graph unavailable; score reflects basic evaluation only"}
		return &result, nil
	}

	bonus, insights := e.fitBonus(gctx, oppRef)

	improvement := int(math.Round(bonus))
	if improvement > e.policy.MaxImprovement {
		improvement = e.policy.MaxImprovement
	}
	if result.OverallScore+improvement > 100 {
		improvement = 100 - result.OverallScore
	}

	if improvement > 0 {
		result.OverallScore += improvement
		result.Verdict = OverallVerdict(result.OverallScore)
		insights = append(insights, fmt.Sprintf("relationship context raised the score by %d points (%d to %d)",
			improvement, result.BasicScore, result.OverallScore))
	} else {
		insights = append(insights, "no relationship context found for this pair")
	}
	result.RelationshipInsights = insights

	if err := e.fit.store.UpsertScoringResult(&result); err != nil {
		return nil, fmt.Errorf("failed to persist enhanced scoring result: %w", err)
	}

	return &result, nil
}

func (e *Enhancer) fitBonus(gctx fitGraphContext, oppRef graph.EntityRef) (float64, []string) {
	var bonus float64
	var insights []string

	for _, ce := range gctx.connected {
		if ce.Entity != oppRef {
			continue
		}
		if ce.SeparationDegree == 1 {
			bonus += ce.TotalStrength * e.policy.DirectMultiplier
			insights = append(insights, fmt.Sprintf("existing %s relationship with the buyer (strength %.2f)",
				ce.RelationshipType, ce.TotalStrength))
		} else {
			bonus += e.policy.PathBonusBase / float64(ce.SeparationDegree)
			insights = append(insights, fmt.Sprintf("connected to the buyer through a %d-hop path", ce.SeparationDegree))
		}
		break
	}

	if n := len(gctx.mutuals); n > 0 {
		mutualBonus := e.policy.MutualIncrement * float64(n)
		if mutualBonus > e.policy.MutualCeiling {
			mutualBonus = e.policy.MutualCeiling
		}
		bonus += mutualBonus
		insights = append(insights, fmt.Sprintf("%d mutual connections with the buyer", n))
	}

	return bonus, insights
}

type partnershipGraphContext struct {
	connected  []graph.ConnectedEntity
	centrality *graph.EntityCentrality
	found      bool
	candidates []graph.PartnerCandidate
	err        error
}

func (e *Enhancer) ScorePartnershipsEnhanced(ctx context.Context, companyID string, opts PartnershipOptions) (*EnhancedPartnershipReport, error) {
	companyRef := graph.EntityRef{ID: companyID, Type: graph.EntityTypeSupplier}

	var (
		wg       sync.WaitGroup
		basic    *PartnershipReport
		basicErr error
		gctx     partnershipGraphContext
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		basic, basicErr = e.partnerships.ScorePartnerships(ctx, companyID, opts)
	}()
	go func() {
		defer wg.Done()
		gctx.connected, gctx.err = e.graph.FindConnectedEntities(ctx, companyRef, 2, "")
		if gctx.err != nil {
			return
		}
		gctx.centrality, gctx.found, gctx.err = e.graph.CalculateEntityCentrality(ctx, companyRef)
		if gctx.err != nil {
			return
		}
		gctx.candidates, gctx.err = e.graph.FindPotentialPartners(ctx, companyRef, 3)
	}()
	wg.Wait()

	if basicErr != nil {
		return nil, basicErr
	}

	report := &EnhancedPartnershipReport{PartnershipReport: *basic}

	if gctx.err != nil {
		logger.Warn("Relationship graph unavailable, returning basic partnership report",
			zap.String("company_id", companyID),
			zap.Error(gctx.err),
		)
		report.NetworkStrategies = []string{"relationship graph unavailable; report reflects basic scoring only"}
		return report, nil
	}

	connectedByRef := make(map[graph.EntityRef]graph.ConnectedEntity, len(gctx.connected))
	for _, ce := range gctx.connected {
		connectedByRef[ce.Entity] = ce
	}

	for i := range report.Scores {
		ref := graph.EntityRef{ID: report.Scores[i].CompanyBID, Type: graph.EntityTypeSupplier}
		ce, ok := connectedByRef[ref]
		if !ok {
			continue
		}

		var bonus float64
		if ce.SeparationDegree == 1 {
			bonus = ce.TotalStrength * e.policy.DirectMultiplier
		} else {
			bonus = e.policy.PathBonusBase / float64(ce.SeparationDegree)
		}

		improvement := int(math.Round(bonus))
		if improvement > e.policy.MaxImprovement {
			improvement = e.policy.MaxImprovement
		}
		if report.Scores[i].Overall+improvement > 100 {
			improvement = 100 - report.Scores[i].Overall
		}
		report.Scores[i].Overall += improvement
	}

	sort.Slice(report.Scores, func(i, j int) bool {
		if report.Scores[i].Overall != report.Scores[j].Overall {
			return report.Scores[i].Overall > report.Scores[j].Overall
		}
		return report.Scores[i].CompanyBID < report.Scores[j].CompanyBID
	})

	for _, ce := range gctx.connected {
		if ce.Entity.Type != graph.EntityTypeOpportunity || ce.SeparationDegree < 2 {
			continue
		}
		report.IndirectOpportunities = append(report.IndirectOpportunities, IndirectOpportunity{
			OpportunityID:    ce.Entity.ID,
			SeparationDegree: ce.SeparationDegree,
			PathStrength:     ce.TotalStrength,
		})
	}

	report.Centrality = gctx.centrality
	report.NetworkStrategies = networkStrategies(gctx, report.IndirectOpportunities)

	return report, nil
}

func networkStrategies(gctx partnershipGraphContext, indirect []IndirectOpportunity) []string {
	var strategies []string

	switch {
	case !gctx.found:
		strategies = append(strategies, "no relationships recorded yet; start by registering existing partners and buyers")
	case gctx.centrality.CentralityScore >= 60:
		strategies = append(strategies, "strong network position; prioritize introductions through existing partners")
	case gctx.centrality.CentralityScore < 30:
		strategies = append(strategies, "low network centrality; grow direct relationships before pursuing bundled bids")
	}

	for i, candidate := range gctx.candidates {
		if i >= 2 {
			break
		}
		strategies = append(strategies, fmt.Sprintf("pursue partnership with %s: %s", candidate.Name, candidate.Reason))
	}

	if len(indirect) > 0 {
		strategies = append(strategies, fmt.Sprintf("%d opportunities reachable through the partner network", len(indirect)))
	}

	return strategies
}
