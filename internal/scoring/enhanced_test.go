package scoring

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bidfit/backend/internal/graph"
	"github.com/bidfit/backend/internal/storage/models"
)

type fakeFitStore struct {
	suppliers map[string]*models.Supplier
	opps      map[string]*models.Opportunity
	results   []models.ScoringResult
}

func (f *fakeFitStore) GetSupplier(id string) (*models.Supplier, error) {
	s, ok := f.suppliers[id]
	if !ok {
		return nil, errors.New("supplier not found")
	}
	return s, nil
}

func (f *fakeFitStore) GetOpportunity(id string) (*models.Opportunity, error) {
	o, ok := f.opps[id]
	if !ok {
		return nil, errors.New("opportunity not found")
	}
	return o, nil
}

func (f *fakeFitStore) UpsertScoringResult(r *models.ScoringResult) error {
	f.results = append(f.results, *r)
	return nil
}

func (f *fakeFitStore) ListSuppliersExcept(excludeID string) ([]models.Supplier, error) {
	var out []models.Supplier
	for id, s := range f.suppliers {
		if id != excludeID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeFitStore) UpsertPartnershipScore(p *models.PartnershipScore) error {
	return nil
}

type fakeGraph struct {
	connected  []graph.ConnectedEntity
	mutuals    []graph.MutualConnection
	candidates []graph.PartnerCandidate
	centrality *graph.EntityCentrality
	found      bool
	err        error
}

func (f *fakeGraph) FindConnectedEntities(ctx context.Context, origin graph.EntityRef, maxDepth int, typeFilter string) ([]graph.ConnectedEntity, error) {
	return f.connected, f.err
}

func (f *fakeGraph) FindMutualConnections(ctx context.Context, a, b graph.EntityRef) ([]graph.MutualConnection, error) {
	return f.mutuals, f.err
}

func (f *fakeGraph) FindPotentialPartners(ctx context.Context, ref graph.EntityRef, limit int) ([]graph.PartnerCandidate, error) {
	return f.candidates, f.err
}

func (f *fakeGraph) CalculateEntityCentrality(ctx context.Context, ref graph.EntityRef) (*graph.EntityCentrality, bool, error) {
	return f.centrality, f.found, f.err
}

func newEnhancerForTest(t *testing.T, store *fakeFitStore, g GraphContext) *Enhancer {
	t.Helper()

	fit, err := NewFitService(store, DefaultFitWeights())
	if err != nil {
		t.Fatalf("NewFitService failed: %v", err)
	}
	partnerships, err := NewPartnershipService(store, DefaultPartnershipWeights())
	if err != nil {
		t.Fatalf("NewPartnershipService failed: %v", err)
	}
	enhancer, err := NewEnhancer(fit, partnerships, g, DefaultEnhancementPolicy())
	if err != nil {
		t.Fatalf("NewEnhancer failed: %v", err)
	}
	return enhancer
}

func fitStoreWithPair() *fakeFitStore {
	return &fakeFitStore{
		suppliers: map[string]*models.Supplier{"sup-strong": strongSupplier()},
		opps:      map[string]*models.Opportunity{"opp-match": matchingOpportunity()},
	}
}

func TestScoreFitEnhancedCapsImprovement(t *testing.T) {
	store := fitStoreWithPair()
	oppRef := graph.EntityRef{ID: "opp-match", Type: graph.EntityTypeOpportunity}

	// A max-strength direct edge plus eight mutual connections pushes the
	// raw bonus past the policy ceiling.
	g := &fakeGraph{
		connected: []graph.ConnectedEntity{
			{Entity: oppRef, SeparationDegree: 1, TotalStrength: 1.0, RelationshipType: "worked_with"},
		},
	}
	for i := 0; i < 8; i++ {
		g.mutuals = append(g.mutuals, graph.MutualConnection{
			Entity: graph.EntityRef{ID: string(rune('a' + i)), Type: graph.EntityTypePerson},
		})
	}

	enhancer := newEnhancerForTest(t, store, g)

	basic, err := enhancer.fit.ScoreFit(context.Background(), "sup-strong", "opp-match")
	if err != nil {
		t.Fatalf("ScoreFit failed: %v", err)
	}

	enhanced, err := enhancer.ScoreFitEnhanced(context.Background(), "sup-strong", "opp-match")
	if err != nil {
		t.Fatalf("ScoreFitEnhanced failed: %v", err)
	}

	if !enhanced.Enhanced {
		t.Error("expected Enhanced flag to be set")
	}
	if enhanced.BasicScore != basic.OverallScore {
		t.Errorf("BasicScore %d does not match basic run %d", enhanced.BasicScore, basic.OverallScore)
	}

	improvement := enhanced.OverallScore - enhanced.BasicScore
	policy := DefaultEnhancementPolicy()
	if improvement < 0 {
		t.Errorf("enhanced score %d below basic %d", enhanced.OverallScore, enhanced.BasicScore)
	}
	if improvement > policy.MaxImprovement {
		t.Errorf("improvement %d exceeds cap %d", improvement, policy.MaxImprovement)
	}
	if enhanced.OverallScore > 100 {
		t.Errorf("enhanced score %d exceeds 100", enhanced.OverallScore)
	}

	want := policy.MaxImprovement
	if enhanced.BasicScore+want > 100 {
		want = 100 - enhanced.BasicScore
	}
	if improvement != want {
		t.Errorf("expected improvement %d for an over-cap bonus, got %d", want, improvement)
	}

	if enhanced.Verdict != OverallVerdict(enhanced.OverallScore) {
		t.Errorf("verdict %q inconsistent with score %d", enhanced.Verdict, enhanced.OverallScore)
	}
	if len(enhanced.RelationshipInsights) == 0 {
		t.Error("expected relationship insights")
	}
}

func TestScoreFitEnhancedNoGraphContext(t *testing.T) {
	store := fitStoreWithPair()
	enhancer := newEnhancerForTest(t, store, &fakeGraph{})

	enhanced, err := enhancer.ScoreFitEnhanced(context.Background(), "sup-strong", "opp-match")
	if err != nil {
		t.Fatalf("ScoreFitEnhanced failed: %v", err)
	}

	if enhanced.OverallScore != enhanced.BasicScore {
		t.Errorf("expected no improvement without graph context, got %d over %d",
			enhanced.OverallScore, enhanced.BasicScore)
	}
	if len(enhanced.RelationshipInsights) != 1 || !strings.Contains(enhanced.RelationshipInsights[0], "no relationship context") {
		t.Errorf("expected no-context insight, got %v", enhanced.RelationshipInsights)
	}
}

func TestScoreFitEnhancedGraphUnavailable(t *testing.T) {
	store := fitStoreWithPair()
	enhancer := newEnhancerForTest(t, store, &fakeGraph{err: errors.New("connection refused")})

	enhanced, err := enhancer.ScoreFitEnhanced(context.Background(), "sup-strong", "opp-match")
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}

	if enhanced.OverallScore != enhanced.BasicScore {
		t.Errorf("expected basic score on graph failure, got %d over %d",
			enhanced.OverallScore, enhanced.BasicScore)
	}
	if len(enhanced.RelationshipInsights) != 1 || !strings.Contains(enhanced.RelationshipInsights[0], "graph unavailable") {
		t.Errorf("expected graph-unavailable insight, got %v", enhanced.RelationshipInsights)
	}
}

func TestScoreFitEnhancedDoesNotRescueRejection(t *testing.T) {
	store := fitStoreWithPair()
	store.opps["opp-match"].RequiredCertifications = []string{"FedRAMP High"}

	oppRef := graph.EntityRef{ID: "opp-match", Type: graph.EntityTypeOpportunity}
	g := &fakeGraph{
		connected: []graph.ConnectedEntity{
			{Entity: oppRef, SeparationDegree: 1, TotalStrength: 1.0, RelationshipType: "worked_with"},
		},
	}
	enhancer := newEnhancerForTest(t, store, g)

	result, err := enhancer.ScoreFitEnhanced(context.Background(), "sup-strong", "opp-match")
	if err != nil {
		t.Fatalf("ScoreFitEnhanced failed: %v", err)
	}

	if result.Verdict != VerdictRejected {
		t.Errorf("expected verdict %q, got %q", VerdictRejected, result.Verdict)
	}
	if result.OverallScore != 0 {
		t.Errorf("expected score 0 for rejected pair, got %d", result.OverallScore)
	}
}

func TestScorePartnershipsEnhancedAddsNetworkContext(t *testing.T) {
	company := strongSupplier()
	company.ID = "self"
	partner := strongSupplier()
	partner.ID = "partner-1"
	partner.Name = "Partner One"
	partner.Capabilities = []string{"software development", "logistics", "training"}

	store := &fakeFitStore{
		suppliers: map[string]*models.Supplier{"self": company, "partner-1": partner},
		opps:      map[string]*models.Opportunity{},
	}

	g := &fakeGraph{
		connected: []graph.ConnectedEntity{
			{Entity: graph.EntityRef{ID: "partner-1", Type: graph.EntityTypeSupplier}, SeparationDegree: 1, TotalStrength: 0.5, RelationshipType: "teamed_with"},
			{Entity: graph.EntityRef{ID: "opp-far", Type: graph.EntityTypeOpportunity}, SeparationDegree: 2, TotalStrength: 0.3, RelationshipType: "bid_on"},
		},
		centrality: &graph.EntityCentrality{Entity: graph.EntityRef{ID: "self", Type: graph.EntityTypeSupplier}, CentralityScore: 75},
		found:      true,
		candidates: []graph.PartnerCandidate{
			{SupplierID: "partner-1", Name: "Partner One", OverallScore: 80, Reason: "complementary capabilities"},
		},
	}
	enhancer := newEnhancerForTest(t, store, g)

	basic, err := enhancer.partnerships.ScorePartnerships(context.Background(), "self", PartnershipOptions{})
	if err != nil {
		t.Fatalf("ScorePartnerships failed: %v", err)
	}
	if len(basic.Scores) != 1 {
		t.Fatalf("expected 1 basic score, got %d", len(basic.Scores))
	}

	report, err := enhancer.ScorePartnershipsEnhanced(context.Background(), "self", PartnershipOptions{})
	if err != nil {
		t.Fatalf("ScorePartnershipsEnhanced failed: %v", err)
	}

	// Direct edge with strength 0.5 yields a 5 point bonus.
	wantBonus := 5
	if got := report.Scores[0].Overall - basic.Scores[0].Overall; got != wantBonus {
		t.Errorf("expected %d point graph bonus, got %d", wantBonus, got)
	}

	if len(report.IndirectOpportunities) != 1 || report.IndirectOpportunities[0].OpportunityID != "opp-far" {
		t.Errorf("expected indirect opportunity opp-far, got %v", report.IndirectOpportunities)
	}
	if report.Centrality == nil || report.Centrality.CentralityScore != 75 {
		t.Errorf("expected centrality 75, got %v", report.Centrality)
	}
	if len(report.NetworkStrategies) == 0 {
		t.Error("expected network strategies")
	}
}

func TestScorePartnershipsEnhancedGraphUnavailable(t *testing.T) {
	company := strongSupplier()
	company.ID = "self"
	store := &fakeFitStore{
		suppliers: map[string]*models.Supplier{"self": company},
		opps:      map[string]*models.Opportunity{},
	}
	enhancer := newEnhancerForTest(t, store, &fakeGraph{err: errors.New("connection refused")})

	report, err := enhancer.ScorePartnershipsEnhanced(context.Background(), "self", PartnershipOptions{})
	if err != nil {
		t.Fatalf("expected graceful degradation, got error: %v", err)
	}
	if len(report.NetworkStrategies) != 1 || !strings.Contains(report.NetworkStrategies[0], "graph unavailable") {
		t.Errorf("expected graph-unavailable strategy, got %v", report.NetworkStrategies)
	}
}
