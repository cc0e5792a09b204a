// Package pipeline drives one jurisdiction through the full extraction
// lifecycle: scrape, topical structured extraction, confidence scoring,
// human review, and approved import into the production tables. Every
// stage persists its partial results before the next one starts, so a
// crash mid-job leaves an inspectable record.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/extraction"
	"github.com/civicdata/codecrawler/internal/gis"
	"github.com/civicdata/codecrawler/internal/metrics"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/sources"
	"github.com/civicdata/codecrawler/internal/store"
)

// ErrJobInProgress is returned when a jurisdiction already has a job in
// a non-terminal status.
var ErrJobInProgress = errors.New("jurisdiction already has an active extraction job")

// Progress milestones persisted after each pipeline stage.
const (
	progressScraped         = 20
	progressEnriched        = 30
	progressZones           = 45
	progressPermits         = 55
	progressCodes           = 65
	progressIndustryPermits = 80
	progressQuestions       = 95
	progressComplete        = 100
)

// chapterTextFloor is the minimum chapter text length worth extracting
// from. Shorter chapters are navigation shells, not code text.
const chapterTextFloor = 100

const chapterSeparator = "\n\n---\n\n"

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator mints job and item identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// Scraper is the sweep surface the coordinator drives.
type Scraper interface {
	ScrapeJurisdiction(ctx context.Context, jurisdictionID string, opts sources.ScrapeOptions) municipal.ScrapeResult
}

// ZoningLookup is the optional county GIS enrichment surface.
type ZoningLookup interface {
	ZoningDistrictsForJurisdiction(ctx context.Context, jurisdictionID string) gis.DistrictsResult
}

// ScrapeArchiver persists raw scrape snapshots.
type ScrapeArchiver interface {
	ArchiveScrape(ctx context.Context, jobID string, result *municipal.ScrapeResult) (string, error)
}

// Notifier emits job lifecycle events.
type Notifier interface {
	JobReview(ctx context.Context, job *store.ExtractionJob)
	JobApproved(ctx context.Context, job *store.ExtractionJob)
	JobFailed(ctx context.Context, job *store.ExtractionJob, failure error)
}

// Deps bundles the coordinator's collaborators. Store, Scraper,
// Extractor, Clock, and IDs are required; the rest are optional and
// degrade to no-ops.
type Deps struct {
	Store     store.Store
	Scraper   Scraper
	Extractor extraction.Extractor
	GIS       ZoningLookup
	Archiver  ScrapeArchiver
	Notifier  Notifier
	Clock     Clock
	IDs       IDGenerator
	Logger    *zap.Logger
}

// Coordinator is the extraction job state machine.
type Coordinator struct {
	store     store.Store
	scraper   Scraper
	extractor extraction.Extractor
	gis       ZoningLookup
	archiver  ScrapeArchiver
	notifier  Notifier
	clock     Clock
	ids       IDGenerator
	logger    *zap.Logger
}

// New validates the dependency set and builds a Coordinator.
func New(deps Deps) (*Coordinator, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Scraper == nil {
		return nil, fmt.Errorf("scraper is required")
	}
	if deps.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Coordinator{
		store:     deps.Store,
		scraper:   deps.Scraper,
		extractor: deps.Extractor,
		gis:       deps.GIS,
		archiver:  deps.Archiver,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		ids:       deps.IDs,
		logger:    logger.Named("pipeline"),
	}, nil
}

// CreateJob registers a new pending job for the jurisdiction. At most
// one non-terminal job may exist per jurisdiction.
func (c *Coordinator) CreateJob(ctx context.Context, jurisdictionID, jobType string) (*store.ExtractionJob, error) {
	if jurisdictionID == "" {
		return nil, fmt.Errorf("jurisdiction id is required")
	}
	if jobType == "" {
		jobType = "full"
	}
	active, err := c.store.ActiveJobExists(ctx, jurisdictionID)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if active {
		return nil, fmt.Errorf("%w: %s", ErrJobInProgress, jurisdictionID)
	}

	id, err := c.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate job id: %w", err)
	}
	job := &store.ExtractionJob{
		ID:             id,
		JurisdictionID: jurisdictionID,
		JobType:        jobType,
		Status:         store.StatusPending,
		CreatedAt:      c.clock.Now(),
	}
	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	c.logger.Info("job created",
		zap.String("job_id", id),
		zap.String("jurisdiction", jurisdictionID),
		zap.String("job_type", jobType))
	return job, nil
}

// Run executes the full pipeline for a pending job. Stage failures that
// have a degraded fallback (empty scrape, unparseable extraction, GIS
// outage) do not abort the job; infrastructure failures do, leaving the
// job in failed status with the error message persisted.
func (c *Coordinator) Run(ctx context.Context, jobID string, opts sources.ScrapeOptions) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}

	if err := c.run(ctx, job, opts); err != nil {
		c.failJob(ctx, job, err)
		return err
	}
	return nil
}

func (c *Coordinator) run(ctx context.Context, job *store.ExtractionJob, opts sources.ScrapeOptions) error {
	log := c.logger.With(
		zap.String("job_id", job.ID),
		zap.String("jurisdiction", job.JurisdictionID))

	if err := c.transition(ctx, job, store.StatusScraping); err != nil {
		return err
	}
	now := c.clock.Now()
	job.StartedAt = &now
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist job start: %w", err)
	}

	// Stage 1: scrape. The sweep itself never errors; an exhausted
	// sweep comes back with zero chapters and is persisted as-is.
	stageStart := c.clock.Now()
	result := c.scraper.ScrapeJurisdiction(ctx, job.JurisdictionID, opts)
	metrics.ObserveStage("scrape", c.clock.Now().Sub(stageStart))
	job.Scrape = &result
	if job.SourceURL == "" {
		job.SourceURL = result.SourceURL
	}
	job.Progress = progressScraped
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist scrape result: %w", err)
	}
	if len(result.Chapters) == 0 {
		log.Warn("sweep found no chapters, continuing with empty text",
			zap.Any("fallbacks_attempted", result.FallbacksAttempted))
	}
	c.archiveScrape(ctx, job.ID, &result, log)

	// Stage 2: county GIS enrichment, best effort.
	if c.gis != nil {
		districts := c.gis.ZoningDistrictsForJurisdiction(ctx, job.JurisdictionID)
		job.GIS = &districts
		if districts.Error != "" {
			log.Warn("gis enrichment unavailable", zap.String("reason", districts.Error))
		}
	}
	job.Progress = progressEnriched
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist gis enrichment: %w", err)
	}
	if err := c.transition(ctx, job, store.StatusExtracting); err != nil {
		return err
	}

	zoningText := zoningChapterText(result)
	permitText := permitChapterText(result)

	// Stage 3: zoning districts.
	stageStart = c.clock.Now()
	if zoningText != "" {
		zones, unparsed, err := c.extractor.ExtractZones(ctx, job.JurisdictionID, zoningText)
		if err != nil {
			return fmt.Errorf("extract zones: %w", err)
		}
		if unparsed != nil {
			log.Warn("zone extraction response unparseable, treating as empty")
		}
		job.Zones = validZones(zones, log)
	}
	if err := c.persistStage(ctx, job, progressZones, c.zoneItems(job)); err != nil {
		return err
	}
	metrics.ObserveStage("zones", c.clock.Now().Sub(stageStart))

	// Stage 4: permit requirements.
	stageStart = c.clock.Now()
	if len(permitText) >= chapterTextFloor {
		permits, unparsed, err := c.extractor.ExtractPermits(ctx, job.JurisdictionID, permitText)
		if err != nil {
			return fmt.Errorf("extract permits: %w", err)
		}
		if unparsed != nil {
			log.Warn("permit extraction response unparseable, treating as empty")
		}
		job.Permits = validPermits(permits, log)
	}
	if err := c.persistStage(ctx, job, progressPermits, c.permitItems(job.Permits, job.ID)); err != nil {
		return err
	}
	metrics.ObserveStage("permits", c.clock.Now().Sub(stageStart))

	// Stage 5: building code excerpts.
	stageStart = c.clock.Now()
	if codeText := firstPermitChapterText(result); len(codeText) >= chapterTextFloor {
		codes, unparsed, err := c.extractor.ExtractBuildingCodes(ctx, job.JurisdictionID, codeText, "local")
		if err != nil {
			return fmt.Errorf("extract building codes: %w", err)
		}
		if unparsed != nil {
			log.Warn("code extraction response unparseable, treating as empty")
		}
		job.Codes = validCodes(codes, log)
	}
	if err := c.persistStage(ctx, job, progressCodes, c.codeItems(job)); err != nil {
		return err
	}
	metrics.ObserveStage("codes", c.clock.Now().Sub(stageStart))

	// Stage 6: industry-specific permits, merged into the permit topic.
	stageStart = c.clock.Now()
	var industryMerged []store.ExtractionItem
	if len(permitText) >= chapterTextFloor {
		for _, industry := range extraction.Industries() {
			permits, unparsed, err := c.extractor.ExtractIndustryPermits(ctx, job.JurisdictionID, permitText, industry)
			if err != nil {
				return fmt.Errorf("extract %s industry permits: %w", industry, err)
			}
			if unparsed != nil {
				log.Warn("industry permit response unparseable, treating as empty",
					zap.String("industry", industry))
				continue
			}
			for _, p := range permits {
				if p.PermitType == "" {
					log.Warn("dropping industry permit without a permit type",
						zap.String("industry", industry))
					continue
				}
				job.IndustryPermits = append(job.IndustryPermits, p)
			}
		}
		industryMerged = c.industryItems(job)
	}
	if err := c.persistStage(ctx, job, progressIndustryPermits, industryMerged); err != nil {
		return err
	}
	metrics.ObserveStage("industry_permits", c.clock.Now().Sub(stageStart))

	// Stage 7: common questions, only when there is source material.
	stageStart = c.clock.Now()
	if len(job.Zones) > 0 || len(job.Permits) > 0 {
		questions, unparsed, err := c.extractor.GenerateQuestions(ctx, job.JurisdictionID, job.Zones, job.Permits)
		if err != nil {
			return fmt.Errorf("generate questions: %w", err)
		}
		if unparsed != nil {
			log.Warn("question response unparseable, treating as empty")
		}
		job.Questions = validQuestions(questions, log)
	}
	if err := c.persistStage(ctx, job, progressQuestions, c.questionItems(job)); err != nil {
		return err
	}
	metrics.ObserveStage("questions", c.clock.Now().Sub(stageStart))

	// Stage 8: aggregate scoring and handoff to review.
	job.ConfidenceScore = aggregateConfidence(job)
	job.ItemsFound = len(job.Zones) + len(job.Permits) + len(job.IndustryPermits) +
		len(job.Codes) + len(job.Questions)
	needReview, err := c.store.CountItemsNeedingReview(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("count review items: %w", err)
	}
	job.ItemsNeedReview = needReview
	job.Progress = progressComplete
	doneAt := c.clock.Now()
	job.CompletedAt = &doneAt
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist aggregate score: %w", err)
	}
	if err := c.transition(ctx, job, store.StatusReview); err != nil {
		return err
	}
	if c.notifier != nil {
		c.notifier.JobReview(ctx, job)
	}
	log.Info("job ready for review",
		zap.Int("items_found", job.ItemsFound),
		zap.Int("items_need_review", job.ItemsNeedReview),
		zap.Float64("confidence", job.ConfidenceScore))
	return nil
}

// Approve imports a reviewed job into the production tables, flips the
// jurisdiction live, and records the action. Only jobs in review status
// can be approved.
func (c *Coordinator) Approve(ctx context.Context, jobID, userID string) error {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != store.StatusReview {
		return fmt.Errorf("%w: cannot approve job in %s status", store.ErrInvalidTransition, job.Status)
	}

	log := c.logger.With(
		zap.String("job_id", job.ID),
		zap.String("jurisdiction", job.JurisdictionID))

	counts := map[string]int{}
	for _, z := range job.Zones {
		if err := c.store.UpsertZoningDistrict(ctx, zoneRecord(job.JurisdictionID, z)); err != nil {
			return fmt.Errorf("import zoning district %s: %w", z.ZoneCode, err)
		}
		counts["zones"]++
	}
	for _, p := range job.Permits {
		if err := c.store.UpsertPermitRequirement(ctx, permitRecord(job.JurisdictionID, p)); err != nil {
			return fmt.Errorf("import permit %s: %w", p.PermitType, err)
		}
		counts["permits"]++
	}
	for _, p := range job.IndustryPermits {
		if err := c.store.UpsertPermitRequirement(ctx, industryPermitRecord(job.JurisdictionID, p)); err != nil {
			return fmt.Errorf("import industry permit %s: %w", p.PermitType, err)
		}
		counts["permits"]++
	}
	for _, bc := range job.Codes {
		rec := store.BuildingCodeChunk{
			JurisdictionID: job.JurisdictionID,
			CodeType:       bc.CodeType,
			Section:        bc.Section,
			Title:          bc.Title,
			Content:        bc.Content,
		}
		if err := c.store.InsertBuildingCodeChunk(ctx, rec); err != nil {
			return fmt.Errorf("import code chunk %s: %w", bc.Section, err)
		}
		counts["codes"]++
	}
	for _, q := range job.Questions {
		rec := store.CommonQuestion{
			JurisdictionID: job.JurisdictionID,
			Question:       q.Question,
			Category:       q.Category,
			Answer:         q.Answer,
			RelatedPermits: q.RelatedPermits,
			OrdinanceRef:   q.CodeReference,
		}
		if err := c.store.InsertCommonQuestion(ctx, rec); err != nil {
			return fmt.Errorf("import question: %w", err)
		}
		counts["questions"]++
	}

	if err := c.transition(ctx, job, store.StatusApproved); err != nil {
		return err
	}
	now := c.clock.Now()
	job.ReviewedBy = userID
	job.ReviewedAt = &now
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist approval: %w", err)
	}
	if err := c.store.MarkJurisdictionLive(ctx, job.JurisdictionID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("mark jurisdiction live: %w", err)
	}

	details, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("marshal approval details: %w", err)
	}
	entry := store.ActivityLogEntry{
		UserID:     userID,
		Action:     "approved_extraction",
		TargetType: "extraction_job",
		TargetID:   job.ID,
		Details:    details,
		CreatedAt:  now,
	}
	if err := c.store.AppendActivityLog(ctx, entry); err != nil {
		return fmt.Errorf("record approval: %w", err)
	}

	if c.notifier != nil {
		c.notifier.JobApproved(ctx, job)
	}
	log.Info("job approved and imported",
		zap.String("reviewed_by", userID),
		zap.Any("imported", counts))
	return nil
}

func (c *Coordinator) transition(ctx context.Context, job *store.ExtractionJob, to store.JobStatus) error {
	if err := c.store.TransitionJob(ctx, job.ID, to); err != nil {
		return fmt.Errorf("transition to %s: %w", to, err)
	}
	job.Status = to
	metrics.ObserveTransition(string(to))
	return nil
}

// persistStage writes the stage's items and the job snapshot before the
// next stage runs.
func (c *Coordinator) persistStage(ctx context.Context, job *store.ExtractionJob, progress int, items []store.ExtractionItem) error {
	if len(items) > 0 {
		if err := c.store.AddItems(ctx, items); err != nil {
			return fmt.Errorf("persist stage items: %w", err)
		}
	}
	job.Progress = progress
	if err := c.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("persist stage snapshot: %w", err)
	}
	return nil
}

func (c *Coordinator) failJob(ctx context.Context, job *store.ExtractionJob, failure error) {
	log := c.logger.With(zap.String("job_id", job.ID))

	job.ErrorMessage = failure.Error()
	now := c.clock.Now()
	job.CompletedAt = &now
	if err := c.store.UpdateJob(ctx, job); err != nil {
		log.Error("failed to persist job error", zap.Error(err))
	}
	if err := c.store.TransitionJob(ctx, job.ID, store.StatusFailed); err != nil {
		log.Error("failed to mark job failed", zap.Error(err))
	} else {
		job.Status = store.StatusFailed
		metrics.ObserveTransition(string(store.StatusFailed))
	}
	if c.notifier != nil {
		c.notifier.JobFailed(ctx, job, failure)
	}
	log.Error("job failed", zap.Error(failure))
}

func (c *Coordinator) archiveScrape(ctx context.Context, jobID string, result *municipal.ScrapeResult, log *zap.Logger) {
	if c.archiver == nil {
		return
	}
	uri, err := c.archiver.ArchiveScrape(ctx, jobID, result)
	if err != nil {
		log.Warn("failed to archive scrape snapshot", zap.Error(err))
		return
	}
	log.Info("scrape snapshot archived", zap.String("uri", uri))
}

// itemConfidence normalizes the model's tier for persistence. Absent
// tiers are treated as medium.
func itemConfidence(conf extraction.Confidence) extraction.Confidence {
	if conf == "" {
		return extraction.ConfidenceMedium
	}
	return conf
}

func (c *Coordinator) newItem(jobID, itemType, itemKey string, payload any, conf extraction.Confidence) (store.ExtractionItem, error) {
	id, err := c.ids.NewID()
	if err != nil {
		return store.ExtractionItem{}, fmt.Errorf("generate item id: %w", err)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return store.ExtractionItem{}, fmt.Errorf("marshal item payload: %w", err)
	}
	conf = itemConfidence(conf)
	metrics.ObserveItems(itemType, string(conf), 1)
	return store.ExtractionItem{
		ID:          id,
		JobID:       jobID,
		ItemType:    itemType,
		ItemKey:     itemKey,
		Payload:     raw,
		Confidence:  conf,
		NeedsReview: conf.NeedsReview(),
		CreatedAt:   c.clock.Now(),
	}, nil
}

func (c *Coordinator) zoneItems(job *store.ExtractionJob) []store.ExtractionItem {
	var items []store.ExtractionItem
	for _, z := range job.Zones {
		item, err := c.newItem(job.ID, "zone", z.ZoneCode, z, z.Confidence)
		if err != nil {
			c.logger.Warn("skipping zone item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Coordinator) permitItems(permits []extraction.Permit, jobID string) []store.ExtractionItem {
	var items []store.ExtractionItem
	for _, p := range permits {
		item, err := c.newItem(jobID, "permit", p.PermitType, p, p.Confidence)
		if err != nil {
			c.logger.Warn("skipping permit item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Coordinator) industryItems(job *store.ExtractionJob) []store.ExtractionItem {
	var items []store.ExtractionItem
	for _, p := range job.IndustryPermits {
		item, err := c.newItem(job.ID, "permit", p.PermitType, p, p.Confidence)
		if err != nil {
			c.logger.Warn("skipping industry permit item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Coordinator) codeItems(job *store.ExtractionJob) []store.ExtractionItem {
	var items []store.ExtractionItem
	for _, bc := range job.Codes {
		item, err := c.newItem(job.ID, "code", bc.Section, bc, bc.Confidence)
		if err != nil {
			c.logger.Warn("skipping code item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

func (c *Coordinator) questionItems(job *store.ExtractionJob) []store.ExtractionItem {
	var items []store.ExtractionItem
	for _, q := range job.Questions {
		item, err := c.newItem(job.ID, "question", q.Category, q, "")
		if err != nil {
			c.logger.Warn("skipping question item", zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items
}

// aggregateConfidence is the mean tier weight across the scored topics.
// Questions carry no tier and are excluded from the mean.
func aggregateConfidence(job *store.ExtractionJob) float64 {
	var sum float64
	var n int
	for _, z := range job.Zones {
		sum += itemConfidence(z.Confidence).Weight()
		n++
	}
	for _, p := range job.Permits {
		sum += itemConfidence(p.Confidence).Weight()
		n++
	}
	for _, p := range job.IndustryPermits {
		sum += itemConfidence(p.Confidence).Weight()
		n++
	}
	for _, bc := range job.Codes {
		sum += itemConfidence(bc.Confidence).Weight()
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Round(sum/float64(n)*100) / 100
}

// zoningChapterText returns the first zoning-flagged chapter's text.
func zoningChapterText(result municipal.ScrapeResult) string {
	for _, ch := range result.Chapters {
		if ch.Info.Topics.Zoning && ch.Content.FullText != "" {
			return ch.Content.FullText
		}
	}
	return ""
}

// permitChapterText concatenates every building, business, and health
// chapter with enough text to be real code, separated so the extractor
// can see chapter boundaries.
func permitChapterText(result municipal.ScrapeResult) string {
	var parts []string
	for _, ch := range result.Chapters {
		topics := ch.Info.Topics
		if !topics.Building && !topics.Business && !topics.Health {
			continue
		}
		if len(ch.Content.FullText) > chapterTextFloor {
			parts = append(parts, ch.Content.FullText)
		}
	}
	return strings.Join(parts, chapterSeparator)
}

// firstPermitChapterText returns the first building, business, or health
// chapter text, preferring building.
func firstPermitChapterText(result municipal.ScrapeResult) string {
	var business, health string
	for _, ch := range result.Chapters {
		topics := ch.Info.Topics
		text := ch.Content.FullText
		if text == "" {
			continue
		}
		switch {
		case topics.Building:
			return text
		case topics.Business && business == "":
			business = text
		case topics.Health && health == "":
			health = text
		}
	}
	if business != "" {
		return business
	}
	return health
}

func validZones(zones []extraction.Zone, log *zap.Logger) []extraction.Zone {
	var out []extraction.Zone
	for _, z := range zones {
		if z.ZoneCode == "" {
			log.Warn("dropping zone without a zone code")
			continue
		}
		out = append(out, z)
	}
	return out
}

func validPermits(permits []extraction.Permit, log *zap.Logger) []extraction.Permit {
	var out []extraction.Permit
	for _, p := range permits {
		if p.PermitType == "" {
			log.Warn("dropping permit without a permit type")
			continue
		}
		out = append(out, p)
	}
	return out
}

func validCodes(codes []extraction.BuildingCode, log *zap.Logger) []extraction.BuildingCode {
	var out []extraction.BuildingCode
	for _, bc := range codes {
		if bc.Content == "" {
			log.Warn("dropping code chunk without content")
			continue
		}
		out = append(out, bc)
	}
	return out
}

func validQuestions(questions []extraction.Question, log *zap.Logger) []extraction.Question {
	var out []extraction.Question
	for _, q := range questions {
		if q.Question == "" || q.Answer == "" {
			log.Warn("dropping question without text")
			continue
		}
		out = append(out, q)
	}
	return out
}

func zoneRecord(jurisdictionID string, z extraction.Zone) store.ZoningDistrict {
	return store.ZoningDistrict{
		JurisdictionID: jurisdictionID,
		Code:           z.ZoneCode,
		Name:           z.ZoneName,
		Category:       z.Category,
		Description:    z.Description,
		MinLotSqft:     z.MinLotSqft,
		MaxLotCoverage: z.MaxLotCoverage,
		MaxHeightFt:    z.MaxHeightFt,
		FrontSetbackFt: z.FrontSetbackFt,
		SideSetbackFt:  z.SideSetbackFt,
		RearSetbackFt:  z.RearSetbackFt,
		AllowedUses:    z.AllowedUses,
	}
}

func permitRecord(jurisdictionID string, p extraction.Permit) store.PermitRequirement {
	return store.PermitRequirement{
		JurisdictionID:      jurisdictionID,
		ActivityType:        p.PermitType,
		Category:            p.Category,
		ActivityDescription: p.Description,
		FeeBase:             p.FeeBase,
		ProcessingDays:      p.ReviewDays,
		RequiresPlans:       p.RequiresPlans,
		RequiresInspection:  p.RequiresInspection,
		OrdinanceRef:        p.CodeSection,
	}
}

func industryPermitRecord(jurisdictionID string, p extraction.IndustryPermit) store.PermitRequirement {
	return store.PermitRequirement{
		JurisdictionID:      jurisdictionID,
		ActivityType:        p.PermitType,
		Category:            p.Category,
		ActivityDescription: p.Description,
		FeeBase:             p.FeeBase,
		ProcessingDays:      p.ReviewDays,
		OrdinanceRef:        p.CodeSection,
	}
}
