package scoring

import (
	"context"
	"testing"

	"github.com/bidfit/backend/internal/storage/models"
)

func TestComplementarityCurveTwoSided(t *testing.T) {
	disjointA := &models.Supplier{Capabilities: []string{"a", "b"}}
	disjointB := &models.Supplier{Capabilities: []string{"c", "d"}}

	// 1 shared of 4 total: 25% overlap with unique capabilities on each side.
	moderateA := &models.Supplier{Capabilities: []string{"a", "b", "c"}}
	moderateB := &models.Supplier{Capabilities: []string{"a", "d"}}

	identicalA := &models.Supplier{Capabilities: []string{"a", "b", "c"}}
	identicalB := &models.Supplier{Capabilities: []string{"a", "b", "c"}}

	disjoint := scoreComplementarity(disjointA, disjointB)
	moderate := scoreComplementarity(moderateA, moderateB)
	identical := scoreComplementarity(identicalA, identicalB)

	if moderate <= disjoint {
		t.Errorf("expected moderate overlap (%d) to beat zero overlap (%d)", moderate, disjoint)
	}
	if identical >= disjoint {
		t.Errorf("expected near-identical sets (%d) to score below disjoint sets (%d)", identical, disjoint)
	}
}

func TestComplementarityEmptySets(t *testing.T) {
	a := &models.Supplier{}
	b := &models.Supplier{}
	if got := scoreComplementarity(a, b); got != 0 {
		t.Errorf("expected 0 for empty capability sets, got %d", got)
	}
}

func TestPartnershipScorerSubScoreBounds(t *testing.T) {
	scorer, err := NewPartnershipScorer(DefaultPartnershipWeights())
	if err != nil {
		t.Fatalf("NewPartnershipScorer failed: %v", err)
	}

	a := &models.Supplier{
		ID:             "a",
		Capabilities:   []string{"software", "security", "analytics"},
		Certifications: []string{"ISO 27001"},
		Industries:     []string{"defense", "healthcare"},
		Regions:        []string{"northeast", "midwest"},
		SizeClass:      "medium",
		TeamSize:       50,
		Credibility:    80,
	}
	b := &models.Supplier{
		ID:             "b",
		Name:           "B Corp",
		Capabilities:   []string{"software", "logistics", "training"},
		Certifications: []string{"ISO 27001", "CMMC"},
		Industries:     []string{"defense"},
		Regions:        []string{"northeast", "southwest"},
		SizeClass:      "medium",
		TeamSize:       60,
		Credibility:    75,
	}

	score := scorer.Score(a, b)

	subs := map[string]int{
		"complementarity": score.Complementarity,
		"coverage":        score.Coverage,
		"geographic":      score.Geographic,
		"size_fit":        score.SizeFit,
		"certification":   score.Certification,
		"relationship":    score.Relationship,
		"overall":         score.Overall,
	}
	for name, v := range subs {
		if v < 0 || v > 100 {
			t.Errorf("%s score %d out of range", name, v)
		}
	}

	if len(score.Breakdown.SharedCapabilities) != 1 || score.Breakdown.SharedCapabilities[0] != "software" {
		t.Errorf("expected shared capability [software], got %v", score.Breakdown.SharedCapabilities)
	}
	if len(score.Breakdown.UniqueToB) != 2 {
		t.Errorf("expected 2 capabilities unique to b, got %v", score.Breakdown.UniqueToB)
	}
}

func TestSizeCompatibilityPenalties(t *testing.T) {
	same := scoreSizeCompatibility(
		&models.Supplier{SizeClass: "medium", TeamSize: 50},
		&models.Supplier{SizeClass: "medium", TeamSize: 60},
	)
	far := scoreSizeCompatibility(
		&models.Supplier{SizeClass: "small", TeamSize: 5},
		&models.Supplier{SizeClass: "enterprise", TeamSize: 5000},
	)

	if same != 100 {
		t.Errorf("expected matched sizes to score 100, got %d", same)
	}
	if far >= same {
		t.Errorf("expected size mismatch (%d) to score below match (%d)", far, same)
	}
}

type fakePartnershipStore struct {
	company  *models.Supplier
	others   []models.Supplier
	upserted []models.PartnershipScore
}

func (f *fakePartnershipStore) GetSupplier(id string) (*models.Supplier, error) {
	return f.company, nil
}

func (f *fakePartnershipStore) ListSuppliersExcept(excludeID string) ([]models.Supplier, error) {
	return f.others, nil
}

func (f *fakePartnershipStore) UpsertPartnershipScore(p *models.PartnershipScore) error {
	f.upserted = append(f.upserted, *p)
	return nil
}

func TestScorePartnershipsRanksAndFilters(t *testing.T) {
	company := &models.Supplier{
		ID:           "self",
		Capabilities: []string{"software", "security"},
		Industries:   []string{"defense"},
		Regions:      []string{"northeast"},
		SizeClass:    "medium",
		TeamSize:     50,
		Credibility:  80,
	}

	goodPartner := models.Supplier{
		ID:             "good",
		Name:           "Good Partner",
		Capabilities:   []string{"software", "logistics", "training"},
		Certifications: []string{"ISO 27001"},
		Industries:     []string{"defense"},
		Regions:        []string{"northeast", "southwest"},
		SizeClass:      "medium",
		TeamSize:       60,
		Credibility:    78,
	}
	poorPartner := models.Supplier{
		ID:          "poor",
		Name:        "Poor Partner",
		SizeClass:   "enterprise",
		TeamSize:    9000,
		Credibility: 10,
	}

	store := &fakePartnershipStore{
		company: company,
		others:  []models.Supplier{poorPartner, goodPartner},
	}
	svc, err := NewPartnershipService(store, DefaultPartnershipWeights())
	if err != nil {
		t.Fatalf("NewPartnershipService failed: %v", err)
	}

	report, err := svc.ScorePartnerships(context.Background(), "self", PartnershipOptions{MinScore: 50, Limit: 10})
	if err != nil {
		t.Fatalf("ScorePartnerships failed: %v", err)
	}

	if len(report.Scores) == 0 {
		t.Fatal("expected at least one recommendation")
	}
	if report.Scores[0].CompanyBID != "good" {
		t.Errorf("expected good partner ranked first, got %q", report.Scores[0].CompanyBID)
	}
	for _, s := range report.Scores {
		if s.Overall < 50 {
			t.Errorf("score %d for %s below MinScore filter", s.Overall, s.CompanyBID)
		}
	}
	if len(store.upserted) != len(report.Scores) {
		t.Errorf("expected %d persisted scores, got %d", len(report.Scores), len(store.upserted))
	}
}

func TestScorePartnershipsBuildsCoverageBundle(t *testing.T) {
	company := &models.Supplier{
		ID:           "self",
		Capabilities: []string{"software"},
		Industries:   []string{"defense"},
		Regions:      []string{"northeast"},
		SizeClass:    "medium",
		TeamSize:     40,
		Credibility:  75,
	}
	partner := models.Supplier{
		ID:             "p1",
		Name:           "Partner One",
		Capabilities:   []string{"software", "logistics", "security", "training"},
		Certifications: []string{"ISO 27001", "CMMC"},
		Industries:     []string{"defense"},
		Regions:        []string{"northeast"},
		SizeClass:      "medium",
		TeamSize:       45,
		Credibility:    70,
	}

	store := &fakePartnershipStore{company: company, others: []models.Supplier{partner}}
	svc, err := NewPartnershipService(store, DefaultPartnershipWeights())
	if err != nil {
		t.Fatalf("NewPartnershipService failed: %v", err)
	}

	report, err := svc.ScorePartnerships(context.Background(), "self", PartnershipOptions{})
	if err != nil {
		t.Fatalf("ScorePartnerships failed: %v", err)
	}

	var coverage *Bundle
	for i := range report.Bundles {
		if report.Bundles[i].Name == "maximum_coverage" {
			coverage = &report.Bundles[i]
		}
	}
	if coverage == nil {
		t.Fatalf("expected maximum_coverage bundle, got %v", report.Bundles)
	}
	if len(coverage.Members) != 1 || coverage.Members[0] != "p1" {
		t.Errorf("expected bundle members [p1], got %v", coverage.Members)
	}
}

func TestSizeCompatibilityMicroTier(t *testing.T) {
	adjacent := scoreSizeCompatibility(
		&models.Supplier{SizeClass: "micro", TeamSize: 3},
		&models.Supplier{SizeClass: "small", TeamSize: 8},
	)
	far := scoreSizeCompatibility(
		&models.Supplier{SizeClass: "micro", TeamSize: 3},
		&models.Supplier{SizeClass: "enterprise", TeamSize: 9},
	)

	if adjacent != 75 {
		t.Errorf("expected micro/small to score 75, got %d", adjacent)
	}
	if far >= adjacent {
		t.Errorf("expected micro/enterprise (%d) to score below micro/small (%d)", far, adjacent)
	}
}
