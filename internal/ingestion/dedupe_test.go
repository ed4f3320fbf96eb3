package ingestion

import (
	"testing"

	"github.com/bidfit/backend/internal/storage/models"
)

func TestResolveEmptyInput(t *testing.T) {
	res := Resolver{}.Resolve(nil)
	if len(res.Survivors) != 0 || res.DuplicateCount != 0 {
		t.Errorf("expected empty resolution, got %+v", res)
	}
}

func TestResolveSolicitationFormatting(t *testing.T) {
	records := []models.Opportunity{
		{
			ID:                 "rec-1",
			Title:              "Radar Maintenance",
			Organization:       "Army",
			SolicitationNumber: "W912-DY-25-R-0001",
		},
		{
			ID:                 "rec-2",
			Title:              "Radar Maintenance Services",
			Organization:       "Dept of the Army",
			SolicitationNumber: "w912dy25r0001",
			Description:        "Full maintenance scope for fixed radar sites.",
			ContractValue:      1_500_000,
		},
		{
			ID:                 "rec-3",
			Title:              "Janitorial Services",
			Organization:       "GSA",
			SolicitationNumber: "47QSMD25R0009",
		},
	}

	res := Resolver{}.Resolve(records)

	if len(res.Survivors) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(res.Survivors))
	}
	if res.DuplicateCount != 1 {
		t.Errorf("expected 1 duplicate, got %d", res.DuplicateCount)
	}

	// rec-2 carries a description and a contract value, so it wins its group.
	if res.Survivors[0].ID != "rec-2" {
		t.Errorf("expected higher-quality rec-2 to survive, got %s", res.Survivors[0].ID)
	}
	if res.Survivors[1].ID != "rec-3" {
		t.Errorf("expected rec-3 untouched, got %s", res.Survivors[1].ID)
	}
}

func TestResolveExternalIDIsSourceScoped(t *testing.T) {
	records := []models.Opportunity{
		{ID: "rec-1", Title: "Alpha", Source: "sam", ExternalID: "42"},
		{ID: "rec-2", Title: "Beta", Source: "state-portal", ExternalID: "42"},
	}

	res := Resolver{}.Resolve(records)
	if len(res.Survivors) != 2 {
		t.Errorf("same external id from different sources must not merge, got %d survivors", len(res.Survivors))
	}
}

func TestResolveFingerprintKey(t *testing.T) {
	records := []models.Opportunity{
		{ID: "rec-1", Title: "Bridge Inspection", Organization: "DOT", PostedDate: "2025-03-01"},
		{ID: "rec-2", Title: "bridge inspection", Organization: "dot", PostedDate: "2025-03-01", HasEnhancedData: true},
		{ID: "rec-3", Title: "Bridge Inspection", Organization: "DOT", PostedDate: "2025-04-15"},
	}

	res := Resolver{}.Resolve(records)

	if len(res.Survivors) != 2 {
		t.Fatalf("expected 2 survivors, got %d", len(res.Survivors))
	}
	if res.Survivors[0].ID != "rec-2" {
		t.Errorf("expected enriched rec-2 to survive, got %s", res.Survivors[0].ID)
	}
	// A different posted date is a different fingerprint.
	if res.Survivors[1].ID != "rec-3" {
		t.Errorf("expected rec-3 to stay separate, got %s", res.Survivors[1].ID)
	}
}

func TestResolveTransitiveGrouping(t *testing.T) {
	// rec-1 and rec-2 share a solicitation number; rec-2 and rec-3 share an
	// external id. All three collapse into one group.
	records := []models.Opportunity{
		{ID: "rec-1", Title: "Alpha", SolicitationNumber: "ABC-123"},
		{ID: "rec-2", Title: "Beta", SolicitationNumber: "abc123", Source: "sam", ExternalID: "9"},
		{ID: "rec-3", Title: "Gamma", Source: "sam", ExternalID: "9", Description: "richer record", Deadline: "2025-06-30"},
	}

	res := Resolver{}.Resolve(records)

	if len(res.Survivors) != 1 {
		t.Fatalf("expected 1 survivor, got %d", len(res.Survivors))
	}
	if res.DuplicateCount != 2 {
		t.Errorf("expected 2 duplicates, got %d", res.DuplicateCount)
	}
	if res.Survivors[0].ID != "rec-3" {
		t.Errorf("expected rec-3 to survive, got %s", res.Survivors[0].ID)
	}
}

func TestNormalizeSolicitation(t *testing.T) {
	cases := map[string]string{
		"W912-DY-25-R-0001": "W912DY25R0001",
		"w912dy25r0001":     "W912DY25R0001",
		"  ":                "",
		"a.b c/1":           "ABC1",
	}
	for in, want := range cases {
		if got := normalizeSolicitation(in); got != want {
			t.Errorf("normalizeSolicitation(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestQualityScoreOrdersByCompleteness(t *testing.T) {
	bare := &models.Opportunity{Title: "T"}
	rich := &models.Opportunity{
		Title:           "T",
		Organization:    "Org",
		PostedDate:      "2025-01-01",
		Description:     "desc",
		ContractValue:   100000,
		Deadline:        "2025-02-01",
		HasEnhancedData: true,
		DataQualityPct:  80,
	}

	if qualityScore(bare) >= qualityScore(rich) {
		t.Errorf("richer record should score higher: bare=%f rich=%f",
			qualityScore(bare), qualityScore(rich))
	}
}
