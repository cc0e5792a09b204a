// Package postgres provides the Postgres-backed Store implementation.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicdata/codecrawler/internal/store"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements store.Store over a pgx pool.
type Store struct {
	pool pgxPool
}

var _ store.Store = (*Store)(nil)

// New connects a pool and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func marshalJSON(v any) ([]byte, error) {
	if v == nil {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

type jobSnapshots struct {
	scrape, gis, zones, permits, codes, questions, industryPermits []byte
}

func snapshotJob(job *store.ExtractionJob) (jobSnapshots, error) {
	var snaps jobSnapshots
	var err error
	if snaps.scrape, err = marshalJSON(job.Scrape); err != nil {
		return snaps, fmt.Errorf("marshal scrape snapshot: %w", err)
	}
	if snaps.gis, err = marshalJSON(job.GIS); err != nil {
		return snaps, fmt.Errorf("marshal gis snapshot: %w", err)
	}
	if snaps.zones, err = marshalJSON(job.Zones); err != nil {
		return snaps, fmt.Errorf("marshal zones snapshot: %w", err)
	}
	if snaps.permits, err = marshalJSON(job.Permits); err != nil {
		return snaps, fmt.Errorf("marshal permits snapshot: %w", err)
	}
	if snaps.codes, err = marshalJSON(job.Codes); err != nil {
		return snaps, fmt.Errorf("marshal codes snapshot: %w", err)
	}
	if snaps.questions, err = marshalJSON(job.Questions); err != nil {
		return snaps, fmt.Errorf("marshal questions snapshot: %w", err)
	}
	if snaps.industryPermits, err = marshalJSON(job.IndustryPermits); err != nil {
		return snaps, fmt.Errorf("marshal industry permits snapshot: %w", err)
	}
	return snaps, nil
}

// CreateJob persists a new job in its initial state.
func (s *Store) CreateJob(ctx context.Context, job *store.ExtractionJob) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO extraction_jobs (id, jurisdiction_id, job_type, status, progress, source_url, fee_schedule_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.pool.Exec(ctx, query,
		job.ID, job.JurisdictionID, job.JobType, job.Status, job.Progress,
		job.SourceURL, job.FeeScheduleURL, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert extraction job: %w", err)
	}
	return nil
}

const jobColumns = `
	id, jurisdiction_id, job_type, status, progress, source_url, fee_schedule_url,
	scrape, gis, zones, permits, codes, questions, industry_permits,
	items_found, items_need_review, confidence_score, error_message, reviewed_by,
	created_at, started_at, completed_at, reviewed_at
`

func scanJob(row pgx.Row) (*store.ExtractionJob, error) {
	var job store.ExtractionJob
	var scrape, gisSnap, zones, permits, codes, questions, industryPermits []byte
	var errMsg, reviewedBy *string
	err := row.Scan(
		&job.ID, &job.JurisdictionID, &job.JobType, &job.Status, &job.Progress,
		&job.SourceURL, &job.FeeScheduleURL,
		&scrape, &gisSnap, &zones, &permits, &codes, &questions, &industryPermits,
		&job.ItemsFound, &job.ItemsNeedReview, &job.ConfidenceScore,
		&errMsg, &reviewedBy,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.ReviewedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("scan extraction job: %w", err)
	}
	if errMsg != nil {
		job.ErrorMessage = *errMsg
	}
	if reviewedBy != nil {
		job.ReviewedBy = *reviewedBy
	}
	for _, col := range []struct {
		raw []byte
		dst any
	}{
		{scrape, &job.Scrape},
		{gisSnap, &job.GIS},
		{zones, &job.Zones},
		{permits, &job.Permits},
		{codes, &job.Codes},
		{questions, &job.Questions},
		{industryPermits, &job.IndustryPermits},
	} {
		if len(col.raw) == 0 || string(col.raw) == "null" {
			continue
		}
		if err := json.Unmarshal(col.raw, col.dst); err != nil {
			return nil, fmt.Errorf("decode job snapshot: %w", err)
		}
	}
	return &job, nil
}

// GetJob loads one job by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (*store.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE id = $1;`
	return scanJob(s.pool.QueryRow(ctx, query, jobID))
}

// ListJobs returns a jurisdiction's jobs newest first.
func (s *Store) ListJobs(ctx context.Context, jurisdictionID string) ([]*store.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE jurisdiction_id = $1 ORDER BY created_at DESC;`
	rows, err := s.pool.Query(ctx, query, jurisdictionID)
	if err != nil {
		return nil, fmt.Errorf("list extraction jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*store.ExtractionJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// UpdateJob persists the job's mutable fields, leaving status alone.
func (s *Store) UpdateJob(ctx context.Context, job *store.ExtractionJob) error {
	snaps, err := snapshotJob(job)
	if err != nil {
		return err
	}
	query := `
		UPDATE extraction_jobs
		SET progress = $2, source_url = $3, fee_schedule_url = $4,
			scrape = $5, gis = $6, zones = $7, permits = $8, codes = $9, questions = $10, industry_permits = $11,
			items_found = $12, items_need_review = $13, confidence_score = $14,
			error_message = NULLIF($15, ''), reviewed_by = NULLIF($16, ''),
			started_at = $17, completed_at = $18, reviewed_at = $19
		WHERE id = $1;
	`
	res, err := s.pool.Exec(ctx, query,
		job.ID, job.Progress, job.SourceURL, job.FeeScheduleURL,
		snaps.scrape, snaps.gis, snaps.zones, snaps.permits, snaps.codes, snaps.questions, snaps.industryPermits,
		job.ItemsFound, job.ItemsNeedReview, job.ConfidenceScore,
		job.ErrorMessage, job.ReviewedBy,
		job.StartedAt, job.CompletedAt, job.ReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update extraction job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TransitionJob moves a job through the state machine with an
// optimistic concurrency guard on the current status.
func (s *Store) TransitionJob(ctx context.Context, jobID string, to store.JobStatus) error {
	var current store.JobStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM extraction_jobs WHERE id = $1;`, jobID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNotFound
		}
		return fmt.Errorf("load job status: %w", err)
	}
	if !current.CanTransitionTo(to) {
		return fmt.Errorf("%w: %s -> %s", store.ErrInvalidTransition, current, to)
	}

	res, err := s.pool.Exec(ctx,
		`UPDATE extraction_jobs SET status = $2 WHERE id = $1 AND status = $3;`,
		jobID, to, current,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("%w: job %s changed concurrently", store.ErrInvalidTransition, jobID)
	}
	return nil
}

// ActiveJobExists reports whether the jurisdiction has a non-terminal job.
func (s *Store) ActiveJobExists(ctx context.Context, jurisdictionID string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM extraction_jobs
			WHERE jurisdiction_id = $1 AND status NOT IN ($2, $3)
		);
	`
	var exists bool
	err := s.pool.QueryRow(ctx, query, jurisdictionID, store.StatusApproved, store.StatusFailed).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active job: %w", err)
	}
	return exists, nil
}

// AddItems appends extraction items.
func (s *Store) AddItems(ctx context.Context, items []store.ExtractionItem) error {
	query := `
		INSERT INTO extraction_items (id, job_id, item_type, item_key, payload, confidence, needs_review, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	for _, item := range items {
		if item.CreatedAt.IsZero() {
			item.CreatedAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx, query,
			item.ID, item.JobID, item.ItemType, item.ItemKey,
			[]byte(item.Payload), item.Confidence, item.NeedsReview, item.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert extraction item: %w", err)
		}
	}
	return nil
}

// CountItemsNeedingReview counts a job's flagged items.
func (s *Store) CountItemsNeedingReview(ctx context.Context, jobID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM extraction_items WHERE job_id = $1 AND needs_review;`,
		jobID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count review items: %w", err)
	}
	return n, nil
}

// ListItems returns a job's items in insertion order.
func (s *Store) ListItems(ctx context.Context, jobID string, needsReviewOnly bool, limit int) ([]store.ExtractionItem, error) {
	query := `
		SELECT id, job_id, item_type, item_key, payload, confidence, needs_review, created_at
		FROM extraction_items
		WHERE job_id = $1 AND ($2 = false OR needs_review)
		ORDER BY created_at
		LIMIT NULLIF($3, 0);
	`
	rows, err := s.pool.Query(ctx, query, jobID, needsReviewOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("list extraction items: %w", err)
	}
	defer rows.Close()

	var items []store.ExtractionItem
	for rows.Next() {
		var item store.ExtractionItem
		var key *string
		var payload []byte
		err := rows.Scan(&item.ID, &item.JobID, &item.ItemType, &key,
			&payload, &item.Confidence, &item.NeedsReview, &item.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan extraction item: %w", err)
		}
		if key != nil {
			item.ItemKey = *key
		}
		item.Payload = json.RawMessage(payload)
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertZoningDistrict creates or overwrites by (jurisdiction, code).
func (s *Store) UpsertZoningDistrict(ctx context.Context, d store.ZoningDistrict) error {
	query := `
		INSERT INTO zoning_districts (
			jurisdiction_id, code, name, category, description,
			min_lot_sqft, max_lot_coverage, max_height_ft,
			front_setback_ft, side_setback_ft, rear_setback_ft, allowed_uses
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (jurisdiction_id, code) DO UPDATE SET
			name = EXCLUDED.name,
			category = EXCLUDED.category,
			description = EXCLUDED.description,
			min_lot_sqft = EXCLUDED.min_lot_sqft,
			max_lot_coverage = EXCLUDED.max_lot_coverage,
			max_height_ft = EXCLUDED.max_height_ft,
			front_setback_ft = EXCLUDED.front_setback_ft,
			side_setback_ft = EXCLUDED.side_setback_ft,
			rear_setback_ft = EXCLUDED.rear_setback_ft,
			allowed_uses = EXCLUDED.allowed_uses;
	`
	_, err := s.pool.Exec(ctx, query,
		d.JurisdictionID, d.Code, d.Name, d.Category, d.Description,
		d.MinLotSqft, d.MaxLotCoverage, d.MaxHeightFt,
		d.FrontSetbackFt, d.SideSetbackFt, d.RearSetbackFt, d.AllowedUses,
	)
	if err != nil {
		return fmt.Errorf("upsert zoning district: %w", err)
	}
	return nil
}

// UpsertPermitRequirement creates or overwrites by (jurisdiction,
// activity type).
func (s *Store) UpsertPermitRequirement(ctx context.Context, p store.PermitRequirement) error {
	query := `
		INSERT INTO permit_requirements (
			jurisdiction_id, activity_type, category, activity_description,
			fee_base, processing_days, requires_plans, requires_inspection, ordinance_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (jurisdiction_id, activity_type) DO UPDATE SET
			category = EXCLUDED.category,
			activity_description = EXCLUDED.activity_description,
			fee_base = EXCLUDED.fee_base,
			processing_days = EXCLUDED.processing_days,
			requires_plans = EXCLUDED.requires_plans,
			requires_inspection = EXCLUDED.requires_inspection,
			ordinance_ref = EXCLUDED.ordinance_ref;
	`
	_, err := s.pool.Exec(ctx, query,
		p.JurisdictionID, p.ActivityType, p.Category, p.ActivityDescription,
		p.FeeBase, p.ProcessingDays, p.RequiresPlans, p.RequiresInspection, p.OrdinanceRef,
	)
	if err != nil {
		return fmt.Errorf("upsert permit requirement: %w", err)
	}
	return nil
}

// InsertBuildingCodeChunk appends a code chunk.
func (s *Store) InsertBuildingCodeChunk(ctx context.Context, c store.BuildingCodeChunk) error {
	query := `
		INSERT INTO building_code_chunks (jurisdiction_id, code_type, section, title, content)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := s.pool.Exec(ctx, query, c.JurisdictionID, c.CodeType, c.Section, c.Title, c.Content)
	if err != nil {
		return fmt.Errorf("insert building code chunk: %w", err)
	}
	return nil
}

// InsertCommonQuestion appends a Q&A row.
func (s *Store) InsertCommonQuestion(ctx context.Context, q store.CommonQuestion) error {
	query := `
		INSERT INTO common_questions (jurisdiction_id, question, category, answer, related_permits, ordinance_ref)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(ctx, query,
		q.JurisdictionID, q.Question, q.Category, q.Answer, q.RelatedPermits, q.OrdinanceRef,
	)
	if err != nil {
		return fmt.Errorf("insert common question: %w", err)
	}
	return nil
}

// GetJurisdiction loads one jurisdiction.
func (s *Store) GetJurisdiction(ctx context.Context, id string) (*store.Jurisdiction, error) {
	query := `
		SELECT id, name, state, status, data_completeness, updated_at
		FROM jurisdictions WHERE id = $1;
	`
	var j store.Jurisdiction
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.Name, &j.State, &j.Status, &j.DataCompleteness, &j.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get jurisdiction: %w", err)
	}
	return &j, nil
}

// UpsertJurisdiction creates or updates a jurisdiction record.
func (s *Store) UpsertJurisdiction(ctx context.Context, j store.Jurisdiction) error {
	query := `
		INSERT INTO jurisdictions (id, name, state, status, data_completeness, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			state = EXCLUDED.state,
			status = EXCLUDED.status,
			data_completeness = EXCLUDED.data_completeness,
			updated_at = NOW();
	`
	_, err := s.pool.Exec(ctx, query, j.ID, j.Name, j.State, j.Status, j.DataCompleteness)
	if err != nil {
		return fmt.Errorf("upsert jurisdiction: %w", err)
	}
	return nil
}

// MarkJurisdictionLive flips a jurisdiction to live with full data
// completeness.
func (s *Store) MarkJurisdictionLive(ctx context.Context, id string) error {
	query := `
		UPDATE jurisdictions SET status = 'live', data_completeness = 100, updated_at = NOW()
		WHERE id = $1;
	`
	res, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("mark jurisdiction live: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// AppendActivityLog records an administrative action.
func (s *Store) AppendActivityLog(ctx context.Context, e store.ActivityLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	query := `
		INSERT INTO admin_activity_log (user_id, action, target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.pool.Exec(ctx, query,
		e.UserID, e.Action, e.TargetType, e.TargetID, []byte(e.Details), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append activity log: %w", err)
	}
	return nil
}
