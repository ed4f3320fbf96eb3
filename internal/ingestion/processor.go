package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

const (
	defaultChunkSize   = 25
	defaultConcurrency = 3
	defaultChunkDelay  = 500 * time.Millisecond
)

// Feed is the opportunity-feed collaborator. Pagination, caching and
// retry/backoff against the upstream API live behind this interface.
type Feed interface {
	FetchOpportunities(ctx context.Context) ([]models.Opportunity, error)
}

type Store interface {
	UpsertOpportunity(o *models.Opportunity) (bool, error)
	InsertIngestReport(r *models.IngestReport) error
}

// Processor runs one ingestion batch: fetch, resolve duplicates, then store
// survivors in bounded chunks. Chunking with an inter-chunk delay respects
// the downstream rate limit; within a chunk at most `concurrency` records
// are normalized and stored at once. A record's failure is recorded and the
// batch continues.
type Processor struct {
	feed        Feed
	store       Store
	resolver    Resolver
	chunkSize   int
	concurrency int
	chunkDelay  time.Duration
}

func NewProcessor(feed Feed, store Store) *Processor {
	return &Processor{
		feed:        feed,
		store:       store,
		chunkSize:   defaultChunkSize,
		concurrency: defaultConcurrency,
		chunkDelay:  defaultChunkDelay,
	}
}

func (p *Processor) Run(ctx context.Context) (*models.IngestReport, error) {
	report := &models.IngestReport{
		ID:        uuid.New().String(),
		StartedAt: time.Now(),
	}

	records, err := p.feed.FetchOpportunities(ctx)
	if err != nil {
		return nil, err
	}
	report.Fetched = len(records)

	resolution := p.resolver.Resolve(records)
	report.DuplicateCount = resolution.DuplicateCount

	survivors := resolution.Survivors
	for start := 0; start < len(survivors); start += p.chunkSize {
		end := start + p.chunkSize
		if end > len(survivors) {
			end = len(survivors)
		}

		p.processChunk(ctx, survivors[start:end], report)

		if end < len(survivors) && p.chunkDelay > 0 {
			time.Sleep(p.chunkDelay)
		}
	}

	report.FinishedAt = time.Now()

	if err := p.store.InsertIngestReport(report); err != nil {
		logger.Warn("Failed to persist ingest report", zap.Error(err))
	}

	logger.Info("Ingestion batch completed",
		zap.Int("fetched", report.Fetched),
		zap.Int("stored", report.Stored),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("duplicates", report.DuplicateCount),
		zap.Int("failures", len(report.Failures)),
	)

	return report, nil
}

func (p *Processor) processChunk(ctx context.Context, chunk []models.Opportunity, report *models.IngestReport) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, p.concurrency)
	)

	for i := range chunk {
		wg.Add(1)
		sem <- struct{}{}
		go func(record models.Opportunity) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome, failure := p.processRecord(&record)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case "stored":
				report.Stored++
			case "updated":
				report.Updated++
			case "skipped":
				report.Skipped++
			case "failed":
				report.Failures = append(report.Failures, *failure)
			}
		}(chunk[i])
	}

	wg.Wait()
}

func (p *Processor) processRecord(record *models.Opportunity) (string, *models.RecordFailure) {
	if err := normalizeRecord(record); err != nil {
		logger.Warn("Failed to normalize record", zap.String("record_id", record.ID), zap.Error(err))
		return "failed", &models.RecordFailure{
			RecordID: record.ID,
			Stage:    "normalize",
			Reason:   err.Error(),
		}
	}

	if record.Title == "" {
		return "skipped", nil
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	inserted, err := p.store.UpsertOpportunity(record)
	if err != nil {
		logger.Warn("Failed to store record", zap.String("record_id", record.ID), zap.Error(err))
		return "failed", &models.RecordFailure{
			RecordID: record.ID,
			Stage:    "store",
			Reason:   err.Error(),
		}
	}

	if inserted {
		return "stored", nil
	}
	return "updated", nil
}
