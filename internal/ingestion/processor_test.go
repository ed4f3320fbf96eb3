package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/bidfit/backend/internal/storage/models"
)

type fakeFeed struct {
	records []models.Opportunity
	err     error
}

func (f *fakeFeed) FetchOpportunities(ctx context.Context) ([]models.Opportunity, error) {
	return f.records, f.err
}

type fakeIngestStore struct {
	mu       sync.Mutex
	existing map[string]bool
	failIDs  map[string]bool
	upserts  []models.Opportunity
	reports  []models.IngestReport
}

func newFakeIngestStore() *fakeIngestStore {
	return &fakeIngestStore{
		existing: make(map[string]bool),
		failIDs:  make(map[string]bool),
	}
}

func (f *fakeIngestStore) UpsertOpportunity(o *models.Opportunity) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failIDs[o.ID] {
		return false, errors.New("disk full")
	}
	f.upserts = append(f.upserts, *o)
	if f.existing[o.ID] {
		return false, nil
	}
	f.existing[o.ID] = true
	return true, nil
}

func (f *fakeIngestStore) InsertIngestReport(r *models.IngestReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, *r)
	return nil
}

func newTestProcessor(feed Feed, store Store) *Processor {
	p := NewProcessor(feed, store)
	p.chunkDelay = 0
	return p
}

func TestProcessorRunCountsOutcomes(t *testing.T) {
	store := newFakeIngestStore()
	store.existing["opp-known"] = true

	feed := &fakeFeed{records: []models.Opportunity{
		{ID: "opp-new", Title: "  Fresh   Opportunity "},
		{ID: "opp-known", Title: "Already Stored"},
		{ID: "opp-blank", Title: "   "},
	}}

	report, err := newTestProcessor(feed, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Fetched != 3 {
		t.Errorf("expected 3 fetched, got %d", report.Fetched)
	}
	if report.Stored != 1 {
		t.Errorf("expected 1 stored, got %d", report.Stored)
	}
	if report.Updated != 1 {
		t.Errorf("expected 1 updated, got %d", report.Updated)
	}
	if report.Skipped != 1 {
		t.Errorf("expected 1 skipped (empty title), got %d", report.Skipped)
	}
	if len(report.Failures) != 0 {
		t.Errorf("expected no failures, got %v", report.Failures)
	}

	// Whitespace is collapsed before storage.
	for _, o := range store.upserts {
		if o.ID == "opp-new" && o.Title != "Fresh Opportunity" {
			t.Errorf("expected normalized title, got %q", o.Title)
		}
	}

	if len(store.reports) != 1 {
		t.Fatalf("expected persisted report, got %d", len(store.reports))
	}
}

func TestProcessorRunRecordsPartialFailures(t *testing.T) {
	store := newFakeIngestStore()
	store.failIDs["opp-bad"] = true

	feed := &fakeFeed{records: []models.Opportunity{
		{ID: "opp-good", Title: "Good"},
		{ID: "opp-bad", Title: "Bad"},
	}}

	report, err := newTestProcessor(feed, store).Run(context.Background())
	if err != nil {
		t.Fatalf("a record failure must not fail the batch: %v", err)
	}

	if report.Stored != 1 {
		t.Errorf("expected 1 stored, got %d", report.Stored)
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(report.Failures))
	}
	f := report.Failures[0]
	if f.RecordID != "opp-bad" || f.Stage != "store" || f.Reason == "" {
		t.Errorf("unexpected failure detail: %+v", f)
	}
}

func TestProcessorRunResolvesDuplicatesBeforeStorage(t *testing.T) {
	store := newFakeIngestStore()

	feed := &fakeFeed{records: []models.Opportunity{
		{ID: "rec-1", Title: "Radar Maintenance", SolicitationNumber: "W912-DY-25-R-0001"},
		{ID: "rec-2", Title: "Radar Upkeep", SolicitationNumber: "w912dy25r0001", Description: "detailed scope"},
	}}

	report, err := newTestProcessor(feed, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.DuplicateCount != 1 {
		t.Errorf("expected 1 duplicate, got %d", report.DuplicateCount)
	}
	if len(store.upserts) != 1 || store.upserts[0].ID != "rec-2" {
		t.Errorf("expected only the richer rec-2 stored, got %+v", store.upserts)
	}
}

func TestProcessorRunFeedFailure(t *testing.T) {
	store := newFakeIngestStore()
	feed := &fakeFeed{err: errors.New("upstream 503")}

	if _, err := newTestProcessor(feed, store).Run(context.Background()); err == nil {
		t.Fatal("expected feed error to surface")
	}
	if len(store.reports) != 0 {
		t.Errorf("no report should persist when the fetch fails")
	}
}

func TestProcessorRunEmptyFeed(t *testing.T) {
	store := newFakeIngestStore()

	report, err := newTestProcessor(&fakeFeed{}, store).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Fetched != 0 || report.Stored != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if len(store.reports) != 1 {
		t.Errorf("empty batches still persist a report")
	}
}
