// Package store defines the persistence contract for extraction jobs,
// their item-level audit records, and the production tables that
// approved data is imported into. Implementations live in the postgres
// and memory subpackages.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/civicdata/codecrawler/internal/extraction"
	"github.com/civicdata/codecrawler/internal/gis"
	"github.com/civicdata/codecrawler/internal/municipal"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrInvalidTransition is returned when a status change violates the
// job state machine.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobStatus is one node in the extraction job state machine.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusScraping   JobStatus = "scraping"
	StatusExtracting JobStatus = "extracting"
	StatusReview     JobStatus = "review"
	StatusApproved   JobStatus = "approved"
	StatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == StatusApproved || s == StatusFailed
}

// CanTransitionTo enforces the forward-only transition graph:
// pending -> scraping -> extracting -> review -> approved, with failed
// reachable from any non-terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusScraping
	case StatusScraping:
		return next == StatusExtracting
	case StatusExtracting:
		return next == StatusReview
	case StatusReview:
		return next == StatusApproved
	default:
		return false
	}
}

// ExtractionJob is one persisted extraction attempt. Jobs are never
// deleted; they form the audit trail of every sweep.
type ExtractionJob struct {
	ID              string                      `json:"id"`
	JurisdictionID  string                      `json:"jurisdiction_id"`
	JobType         string                      `json:"job_type"`
	Status          JobStatus                   `json:"status"`
	Progress        int                         `json:"progress"`
	SourceURL       string                      `json:"source_url,omitempty"`
	FeeScheduleURL  string                      `json:"fee_schedule_url,omitempty"`
	Scrape          *municipal.ScrapeResult     `json:"scrape,omitempty"`
	GIS             *gis.DistrictsResult        `json:"gis,omitempty"`
	Zones           []extraction.Zone           `json:"zones,omitempty"`
	Permits         []extraction.Permit         `json:"permits,omitempty"`
	Codes           []extraction.BuildingCode   `json:"codes,omitempty"`
	Questions       []extraction.Question       `json:"questions,omitempty"`
	IndustryPermits []extraction.IndustryPermit `json:"industry_permits,omitempty"`
	ItemsFound      int                         `json:"items_found"`
	ItemsNeedReview int                         `json:"items_need_review"`
	ConfidenceScore float64                     `json:"confidence_score"`
	ErrorMessage    string                      `json:"error_message,omitempty"`
	ReviewedBy      string                      `json:"reviewed_by,omitempty"`
	CreatedAt       time.Time                   `json:"created_at"`
	StartedAt       *time.Time                  `json:"started_at,omitempty"`
	CompletedAt     *time.Time                  `json:"completed_at,omitempty"`
	ReviewedAt      *time.Time                  `json:"reviewed_at,omitempty"`
}

// ExtractionItem is one structured record produced by a topical
// extraction call. Items are written once and never mutated.
type ExtractionItem struct {
	ID          string                `json:"id"`
	JobID       string                `json:"job_id"`
	ItemType    string                `json:"item_type"`
	ItemKey     string                `json:"item_key,omitempty"`
	Payload     json.RawMessage       `json:"payload"`
	Confidence  extraction.Confidence `json:"confidence"`
	NeedsReview bool                  `json:"needs_review"`
	CreatedAt   time.Time             `json:"created_at"`
}

// Jurisdiction is the production record flipped live on approval.
type Jurisdiction struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	State            string    `json:"state"`
	Status           string    `json:"status"`
	DataCompleteness int       `json:"data_completeness"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// ZoningDistrict is the production zoning table row, upserted on
// approval keyed by (jurisdiction, code).
type ZoningDistrict struct {
	JurisdictionID string   `json:"jurisdiction_id"`
	Code           string   `json:"code"`
	Name           string   `json:"name"`
	Category       string   `json:"category"`
	Description    string   `json:"description"`
	MinLotSqft     *float64 `json:"min_lot_sqft,omitempty"`
	MaxLotCoverage *float64 `json:"max_lot_coverage,omitempty"`
	MaxHeightFt    *float64 `json:"max_height_ft,omitempty"`
	FrontSetbackFt *float64 `json:"front_setback_ft,omitempty"`
	SideSetbackFt  *float64 `json:"side_setback_ft,omitempty"`
	RearSetbackFt  *float64 `json:"rear_setback_ft,omitempty"`
	AllowedUses    []string `json:"allowed_uses,omitempty"`
}

// PermitRequirement is the production permit table row, upserted on
// approval keyed by (jurisdiction, activity type).
type PermitRequirement struct {
	JurisdictionID      string   `json:"jurisdiction_id"`
	ActivityType        string   `json:"activity_type"`
	Category            string   `json:"category"`
	ActivityDescription string   `json:"activity_description"`
	FeeBase             *float64 `json:"fee_base,omitempty"`
	ProcessingDays      *int     `json:"processing_days,omitempty"`
	RequiresPlans       bool     `json:"requires_plans"`
	RequiresInspection  bool     `json:"requires_inspection"`
	OrdinanceRef        *string  `json:"ordinance_ref,omitempty"`
}

// BuildingCodeChunk is one production code requirement chunk. Chunks
// are append-only.
type BuildingCodeChunk struct {
	JurisdictionID string `json:"jurisdiction_id"`
	CodeType       string `json:"code_type"`
	Section        string `json:"section"`
	Title          string `json:"title"`
	Content        string `json:"content"`
}

// CommonQuestion is one production Q&A row. Questions are append-only.
type CommonQuestion struct {
	JurisdictionID string   `json:"jurisdiction_id"`
	Question       string   `json:"question"`
	Category       string   `json:"category"`
	Answer         string   `json:"answer"`
	RelatedPermits []string `json:"related_permits,omitempty"`
	OrdinanceRef   *string  `json:"ordinance_ref,omitempty"`
}

// ActivityLogEntry records one administrative action.
type ActivityLogEntry struct {
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	TargetType string          `json:"target_type"`
	TargetID   string          `json:"target_id"`
	Details    json.RawMessage `json:"details,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Store is the full persistence surface the coordinator and the API
// depend on.
type Store interface {
	// CreateJob persists a new job in its initial state.
	CreateJob(ctx context.Context, job *ExtractionJob) error

	// GetJob loads one job, ErrNotFound when absent.
	GetJob(ctx context.Context, jobID string) (*ExtractionJob, error)

	// ListJobs returns a jurisdiction's jobs newest first.
	ListJobs(ctx context.Context, jurisdictionID string) ([]*ExtractionJob, error)

	// UpdateJob persists the job's mutable fields. The status column is
	// owned by TransitionJob and left untouched here.
	UpdateJob(ctx context.Context, job *ExtractionJob) error

	// TransitionJob moves a job's status through the state machine,
	// ErrInvalidTransition when the edge does not exist.
	TransitionJob(ctx context.Context, jobID string, to JobStatus) error

	// ActiveJobExists reports whether the jurisdiction already has a
	// job in a non-terminal status.
	ActiveJobExists(ctx context.Context, jurisdictionID string) (bool, error)

	// AddItems appends extraction items in batch.
	AddItems(ctx context.Context, items []ExtractionItem) error

	// CountItemsNeedingReview counts a job's flagged items.
	CountItemsNeedingReview(ctx context.Context, jobID string) (int, error)

	// ListItems returns a job's items, optionally only flagged ones,
	// up to limit (0 means no limit).
	ListItems(ctx context.Context, jobID string, needsReviewOnly bool, limit int) ([]ExtractionItem, error)

	// UpsertZoningDistrict creates or overwrites by (jurisdiction, code).
	UpsertZoningDistrict(ctx context.Context, d ZoningDistrict) error

	// UpsertPermitRequirement creates or overwrites by (jurisdiction,
	// activity type).
	UpsertPermitRequirement(ctx context.Context, p PermitRequirement) error

	// InsertBuildingCodeChunk appends a code chunk.
	InsertBuildingCodeChunk(ctx context.Context, c BuildingCodeChunk) error

	// InsertCommonQuestion appends a Q&A row.
	InsertCommonQuestion(ctx context.Context, q CommonQuestion) error

	// GetJurisdiction loads one jurisdiction, ErrNotFound when absent.
	GetJurisdiction(ctx context.Context, id string) (*Jurisdiction, error)

	// UpsertJurisdiction creates or updates a jurisdiction record.
	UpsertJurisdiction(ctx context.Context, j Jurisdiction) error

	// MarkJurisdictionLive flips a jurisdiction to live with full data
	// completeness.
	MarkJurisdictionLive(ctx context.Context, id string) error

	// AppendActivityLog records an administrative action.
	AppendActivityLog(ctx context.Context, e ActivityLogEntry) error

	// Close releases the underlying resources.
	Close()
}
