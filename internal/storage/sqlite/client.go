package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/bidfit/backend/internal/storage/models"
	"github.com/bidfit/backend/pkg/logger"
)

var ErrNotFound = errors.New("record not found")

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		capabilities TEXT,
		certifications TEXT,
		industries TEXT,
		regions TEXT,
		technologies TEXT,
		size_class TEXT,
		team_size INTEGER,
		years_experience INTEGER,
		credibility REAL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_suppliers_size ON suppliers(size_class);

	CREATE TABLE IF NOT EXISTS opportunities (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		organization TEXT,
		description TEXT,
		source TEXT,
		external_id TEXT,
		solicitation_number TEXT,
		required_capabilities TEXT,
		required_certifications TEXT,
		industries TEXT,
		regions TEXT,
		required_experience INTEGER,
		contract_value REAL,
		posted_date TEXT,
		deadline TEXT,
		contact_email TEXT,
		source_url TEXT,
		naics_code TEXT,
		data_quality_pct REAL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_opportunities_external ON opportunities(source, external_id);
	CREATE INDEX IF NOT EXISTS idx_opportunities_solicitation ON opportunities(solicitation_number);

	CREATE TABLE IF NOT EXISTS scoring_results (
		id TEXT NOT NULL,
		supplier_id TEXT NOT NULL,
		opportunity_id TEXT NOT NULL,
		overall_score INTEGER NOT NULL,
		verdict TEXT NOT NULL,
		enhanced INTEGER DEFAULT 0,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (supplier_id, opportunity_id)
	);
	CREATE INDEX IF NOT EXISTS idx_scoring_verdict ON scoring_results(verdict);

	CREATE TABLE IF NOT EXISTS partnership_scores (
		company_a_id TEXT NOT NULL,
		company_b_id TEXT NOT NULL,
		overall INTEGER NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (company_a_id, company_b_id)
	);

	CREATE TABLE IF NOT EXISTS ab_test_runs (
		id TEXT PRIMARY KEY,
		test_id TEXT NOT NULL,
		algorithm TEXT NOT NULL,
		variant TEXT NOT NULL,
		execution_time_ms INTEGER NOT NULL,
		score INTEGER,
		errored INTEGER DEFAULT 0,
		result_snapshot TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ab_runs_test ON ab_test_runs(test_id);

	CREATE TABLE IF NOT EXISTS ingest_reports (
		id TEXT PRIMARY KEY,
		fetched INTEGER,
		stored INTEGER,
		updated INTEGER,
		skipped INTEGER,
		duplicate_count INTEGER,
		failures TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertSupplier(s *models.Supplier) error {
	query := `
		INSERT INTO suppliers (id, name, capabilities, certifications, industries, regions,
			technologies, size_class, team_size, years_experience, credibility, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			capabilities = excluded.capabilities,
			certifications = excluded.certifications,
			industries = excluded.industries,
			regions = excluded.regions,
			technologies = excluded.technologies,
			size_class = excluded.size_class,
			team_size = excluded.team_size,
			years_experience = excluded.years_experience,
			credibility = excluded.credibility,
			updated_at = excluded.updated_at
	`

	_, err := c.db.Exec(
		query,
		s.ID,
		s.Name,
		marshalList(s.Capabilities),
		marshalList(s.Certifications),
		marshalList(s.Industries),
		marshalList(s.Regions),
		marshalList(s.Technologies),
		s.SizeClass,
		s.TeamSize,
		s.YearsExperience,
		s.Credibility,
		s.CreatedAt.Unix(),
		s.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to upsert supplier: %w", err)
	}

	logger.Debug("Supplier upserted", zap.String("supplier_id", s.ID))
	return nil
}

func (c *Client) GetSupplier(id string) (*models.Supplier, error) {
	query := `
		SELECT id, name, capabilities, certifications, industries, regions, technologies,
			size_class, team_size, years_experience, credibility, created_at, updated_at
		FROM suppliers WHERE id = ?
	`

	row := c.db.QueryRow(query, id)
	s, err := scanSupplier(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("supplier %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}

	return s, nil
}

func (c *Client) ListSuppliersExcept(excludeID string) ([]models.Supplier, error) {
	query := `
		SELECT id, name, capabilities, certifications, industries, regions, technologies,
			size_class, team_size, years_experience, credibility, created_at, updated_at
		FROM suppliers WHERE id != ? ORDER BY name
	`

	rows, err := c.db.Query(query, excludeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []models.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan supplier row: %w", err)
		}
		suppliers = append(suppliers, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suppliers: %w", err)
	}

	return suppliers, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSupplier(row rowScanner) (*models.Supplier, error) {
	var s models.Supplier
	var caps, certs, inds, regions, techs string
	var createdAt, updatedAt int64

	err := row.Scan(
		&s.ID,
		&s.Name,
		&caps,
		&certs,
		&inds,
		&regions,
		&techs,
		&s.SizeClass,
		&s.TeamSize,
		&s.YearsExperience,
		&s.Credibility,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Capabilities = unmarshalList(caps)
	s.Certifications = unmarshalList(certs)
	s.Industries = unmarshalList(inds)
	s.Regions = unmarshalList(regions)
	s.Technologies = unmarshalList(techs)
	s.CreatedAt = time.Unix(createdAt, 0)
	s.UpdatedAt = time.Unix(updatedAt, 0)

	return &s, nil
}

// UpsertOpportunity reports whether the row was newly inserted, so ingestion
// can count stored vs updated records.
func (c *Client) UpsertOpportunity(o *models.Opportunity) (bool, error) {
	var existing int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM opportunities WHERE id = ?`, o.ID).Scan(&existing)
	if err != nil {
		return false, fmt.Errorf("failed to check opportunity existence: %w", err)
	}

	query := `
		INSERT INTO opportunities (id, title, organization, description, source, external_id,
			solicitation_number, required_capabilities, required_certifications, industries,
			regions, required_experience, contract_value, posted_date, deadline, contact_email,
			source_url, naics_code, data_quality_pct, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			organization = excluded.organization,
			description = excluded.description,
			solicitation_number = excluded.solicitation_number,
			required_capabilities = excluded.required_capabilities,
			required_certifications = excluded.required_certifications,
			industries = excluded.industries,
			regions = excluded.regions,
			required_experience = excluded.required_experience,
			contract_value = excluded.contract_value,
			posted_date = excluded.posted_date,
			deadline = excluded.deadline,
			contact_email = excluded.contact_email,
			source_url = excluded.source_url,
			naics_code = excluded.naics_code,
			data_quality_pct = excluded.data_quality_pct,
			updated_at = excluded.updated_at
	`

	_, err = c.db.Exec(
		query,
		o.ID,
		o.Title,
		o.Organization,
		o.Description,
		o.Source,
		o.ExternalID,
		o.SolicitationNumber,
		marshalList(o.RequiredCapabilities),
		marshalList(o.RequiredCertifications),
		marshalList(o.Industries),
		marshalList(o.Regions),
		o.RequiredExperience,
		o.ContractValue,
		o.PostedDate,
		o.Deadline,
		o.ContactEmail,
		o.SourceURL,
		o.NAICSCode,
		o.DataQualityPct,
		o.CreatedAt.Unix(),
		o.UpdatedAt.Unix(),
	)

	if err != nil {
		return false, fmt.Errorf("failed to upsert opportunity: %w", err)
	}

	logger.Debug("Opportunity upserted", zap.String("opportunity_id", o.ID), zap.Bool("inserted", existing == 0))
	return existing == 0, nil
}

func (c *Client) GetOpportunity(id string) (*models.Opportunity, error) {
	query := `
		SELECT id, title, organization, description, source, external_id, solicitation_number,
			required_capabilities, required_certifications, industries, regions,
			required_experience, contract_value, posted_date, deadline, contact_email,
			source_url, naics_code, data_quality_pct, created_at, updated_at
		FROM opportunities WHERE id = ?
	`

	var o models.Opportunity
	var caps, certs, inds, regions string
	var createdAt, updatedAt int64

	err := c.db.QueryRow(query, id).Scan(
		&o.ID,
		&o.Title,
		&o.Organization,
		&o.Description,
		&o.Source,
		&o.ExternalID,
		&o.SolicitationNumber,
		&caps,
		&certs,
		&inds,
		&regions,
		&o.RequiredExperience,
		&o.ContractValue,
		&o.PostedDate,
		&o.Deadline,
		&o.ContactEmail,
		&o.SourceURL,
		&o.NAICSCode,
		&o.DataQualityPct,
		&createdAt,
		&updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("opportunity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get opportunity: %w", err)
	}

	o.RequiredCapabilities = unmarshalList(caps)
	o.RequiredCertifications = unmarshalList(certs)
	o.Industries = unmarshalList(inds)
	o.Regions = unmarshalList(regions)
	o.CreatedAt = time.Unix(createdAt, 0)
	o.UpdatedAt = time.Unix(updatedAt, 0)

	return &o, nil
}

// UpsertScoringResult overwrites any previous result for the same
// (supplier, opportunity) pair. Re-scoring does not version.
func (c *Client) UpsertScoringResult(r *models.ScoringResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal scoring result: %w", err)
	}

	enhanced := 0
	if r.Enhanced {
		enhanced = 1
	}

	query := `
		INSERT INTO scoring_results (id, supplier_id, opportunity_id, overall_score, verdict, enhanced, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(supplier_id, opportunity_id) DO UPDATE SET
			id = excluded.id,
			overall_score = excluded.overall_score,
			verdict = excluded.verdict,
			enhanced = excluded.enhanced,
			payload = excluded.payload,
			created_at = excluded.created_at
	`

	_, err = c.db.Exec(query, r.ID, r.SupplierID, r.OpportunityID, r.OverallScore, r.Verdict, enhanced, string(payload), r.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert scoring result: %w", err)
	}

	logger.Debug("Scoring result upserted",
		zap.String("supplier_id", r.SupplierID),
		zap.String("opportunity_id", r.OpportunityID),
		zap.Int("score", r.OverallScore),
	)
	return nil
}

func (c *Client) GetScoringResult(supplierID, opportunityID string) (*models.ScoringResult, error) {
	var payload string
	err := c.db.QueryRow(
		`SELECT payload FROM scoring_results WHERE supplier_id = ? AND opportunity_id = ?`,
		supplierID, opportunityID,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("scoring result %s/%s: %w", supplierID, opportunityID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scoring result: %w", err)
	}

	var r models.ScoringResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scoring result: %w", err)
	}

	return &r, nil
}

// UpsertPartnershipScore stores one row per ordered company pair.
func (c *Client) UpsertPartnershipScore(p *models.PartnershipScore) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal partnership score: %w", err)
	}

	query := `
		INSERT INTO partnership_scores (company_a_id, company_b_id, overall, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(company_a_id, company_b_id) DO UPDATE SET
			overall = excluded.overall,
			payload = excluded.payload,
			created_at = excluded.created_at
	`

	_, err = c.db.Exec(query, p.CompanyAID, p.CompanyBID, p.Overall, string(payload), p.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to upsert partnership score: %w", err)
	}

	return nil
}

func (c *Client) InsertABTestRun(run *models.ABTestRun) error {
	errored := 0
	if run.Errored {
		errored = 1
	}

	query := `
		INSERT INTO ab_test_runs (id, test_id, algorithm, variant, execution_time_ms, score, errored, result_snapshot, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.Exec(query, run.ID, run.TestID, run.Algorithm, run.Variant, run.ExecutionTimeMS, run.Score, errored, run.ResultSnapshot, run.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert ab test run: %w", err)
	}

	logger.Debug("A/B test run recorded",
		zap.String("test_id", run.TestID),
		zap.String("variant", run.Variant),
	)
	return nil
}

func (c *Client) CountABTestRuns(testID string) (int, error) {
	var count int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM ab_test_runs WHERE test_id = ? AND variant = 'basic'`, testID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count ab test runs: %w", err)
	}
	return count, nil
}

func (c *Client) ListABTestRuns(testID string) ([]models.ABTestRun, error) {
	query := `
		SELECT id, test_id, algorithm, variant, execution_time_ms, score, errored, result_snapshot, created_at
		FROM ab_test_runs WHERE test_id = ? ORDER BY created_at
	`

	rows, err := c.db.Query(query, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list ab test runs: %w", err)
	}
	defer rows.Close()

	var runs []models.ABTestRun
	for rows.Next() {
		var r models.ABTestRun
		var errored int
		var createdAt int64

		err := rows.Scan(&r.ID, &r.TestID, &r.Algorithm, &r.Variant, &r.ExecutionTimeMS, &r.Score, &errored, &r.ResultSnapshot, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ab test run: %w", err)
		}

		r.Errored = errored == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ab test runs: %w", err)
	}

	return runs, nil
}

func (c *Client) InsertIngestReport(report *models.IngestReport) error {
	failures, err := json.Marshal(report.Failures)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest failures: %w", err)
	}

	query := `
		INSERT INTO ingest_reports (id, fetched, stored, updated, skipped, duplicate_count, failures, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.Exec(query, report.ID, report.Fetched, report.Stored, report.Updated, report.Skipped, report.DuplicateCount, string(failures), report.StartedAt.Unix(), report.FinishedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert ingest report: %w", err)
	}

	return nil
}

func marshalList(list []string) string {
	if len(list) == 0 {
		return "[]"
	}
	data, _ := json.Marshal(list)
	return string(data)
}

func unmarshalList(data string) []string {
	var list []string
	json.Unmarshal([]byte(data), &list)
	return list
}
