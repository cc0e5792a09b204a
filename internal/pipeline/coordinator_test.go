package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/extraction"
	"github.com/civicdata/codecrawler/internal/gis"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/sources"
	"github.com/civicdata/codecrawler/internal/store"
	"github.com/civicdata/codecrawler/internal/store/memory"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", s.n.Add(1)), nil
}

type fakeScraper struct {
	result municipal.ScrapeResult
	calls  int
}

func (f *fakeScraper) ScrapeJurisdiction(_ context.Context, jurisdictionID string, _ sources.ScrapeOptions) municipal.ScrapeResult {
	f.calls++
	out := f.result
	out.JurisdictionID = jurisdictionID
	return out
}

type fakeGIS struct {
	result gis.DistrictsResult
}

func (f *fakeGIS) ZoningDistrictsForJurisdiction(_ context.Context, _ string) gis.DistrictsResult {
	return f.result
}

type fakeArchiver struct {
	jobIDs []string
	err    error
}

func (f *fakeArchiver) ArchiveScrape(_ context.Context, jobID string, _ *municipal.ScrapeResult) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.jobIDs = append(f.jobIDs, jobID)
	return "memory://scrapes/" + jobID, nil
}

type fakeNotifier struct {
	reviews, approvals, failures int
}

func (f *fakeNotifier) JobReview(_ context.Context, _ *store.ExtractionJob)   { f.reviews++ }
func (f *fakeNotifier) JobApproved(_ context.Context, _ *store.ExtractionJob) { f.approvals++ }
func (f *fakeNotifier) JobFailed(_ context.Context, _ *store.ExtractionJob, _ error) {
	f.failures++
}

// fakeExtractor returns canned responses per topic and records the text
// it was handed.
type fakeExtractor struct {
	zones     []extraction.Zone
	permits   []extraction.Permit
	codes     []extraction.BuildingCode
	questions []extraction.Question
	industry  map[string][]extraction.IndustryPermit

	zonesErr   error
	unparsed   bool
	zoneText   string
	permitText string
	codeText   string
}

func (f *fakeExtractor) ExtractZones(_ context.Context, _ string, codeText string) ([]extraction.Zone, *extraction.Unparseable, error) {
	f.zoneText = codeText
	if f.zonesErr != nil {
		return nil, nil, f.zonesErr
	}
	if f.unparsed {
		return nil, &extraction.Unparseable{Reason: "Parse failed", Raw: "not json"}, nil
	}
	return f.zones, nil, nil
}

func (f *fakeExtractor) ExtractPermits(_ context.Context, _ string, codeText string) ([]extraction.Permit, *extraction.Unparseable, error) {
	f.permitText = codeText
	return f.permits, nil, nil
}

func (f *fakeExtractor) ExtractFees(_ context.Context, _ string, _ string) ([]extraction.Fee, *extraction.Unparseable, error) {
	return nil, nil, nil
}

func (f *fakeExtractor) ExtractBuildingCodes(_ context.Context, _ string, codeText, _ string) ([]extraction.BuildingCode, *extraction.Unparseable, error) {
	f.codeText = codeText
	return f.codes, nil, nil
}

func (f *fakeExtractor) GenerateQuestions(_ context.Context, _ string, _ []extraction.Zone, _ []extraction.Permit) ([]extraction.Question, *extraction.Unparseable, error) {
	return f.questions, nil, nil
}

func (f *fakeExtractor) ExtractIndustryPermits(_ context.Context, _ string, _ string, industry string) ([]extraction.IndustryPermit, *extraction.Unparseable, error) {
	return f.industry[industry], nil, nil
}

func longText(topic string) string {
	out := topic
	for len(out) < 200 {
		out += " " + topic + " regulations and requirements apply here"
	}
	return out
}

func scrapeFixture() municipal.ScrapeResult {
	return municipal.ScrapeResult{
		Provider:  municipal.ProviderAmLegal,
		SourceURL: "https://codelibrary.amlegal.com/codes/mason/latest/overview",
		Chapters: []municipal.Chapter{
			{
				Info:    municipal.ChapterInfo{Title: "Chapter 153: Zoning Code", Topics: municipal.TopicFlags{Zoning: true}},
				Content: municipal.ChapterContent{FullText: longText("zoning")},
			},
			{
				Info:    municipal.ChapterInfo{Title: "Chapter 150: Building Regulations", Topics: municipal.TopicFlags{Building: true}},
				Content: municipal.ChapterContent{FullText: longText("building")},
			},
			{
				Info:    municipal.ChapterInfo{Title: "Chapter 110: Business Licensing", Topics: municipal.TopicFlags{Business: true}},
				Content: municipal.ChapterContent{FullText: longText("business")},
			},
		},
		TotalCost: 15,
		ScrapedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

type fixture struct {
	coord     *Coordinator
	store     *memory.Store
	scraper   *fakeScraper
	extractor *fakeExtractor
	archiver  *fakeArchiver
	notifier  *fakeNotifier
}

func newFixture(t *testing.T, extractor *fakeExtractor) *fixture {
	t.Helper()
	f := &fixture{
		store:     memory.New(),
		scraper:   &fakeScraper{result: scrapeFixture()},
		extractor: extractor,
		archiver:  &fakeArchiver{},
		notifier:  &fakeNotifier{},
	}
	coord, err := New(Deps{
		Store:     f.store,
		Scraper:   f.scraper,
		Extractor: extractor,
		GIS:       &fakeGIS{result: gis.DistrictsResult{CountyID: "warren-oh", CountyName: "Warren County"}},
		Archiver:  f.archiver,
		Notifier:  f.notifier,
		Clock:     fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)},
		IDs:       &seqIDs{},
		Logger:    zap.NewNop(),
	})
	require.NoError(t, err)
	f.coord = coord
	return f
}

func ptr[T any](v T) *T { return &v }

func TestRunFullPipeline(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		zones: []extraction.Zone{
			{ZoneCode: "R-1", ZoneName: "Single Family", Confidence: extraction.ConfidenceHigh},
			{ZoneCode: "B-2", ZoneName: "General Business", Confidence: extraction.ConfidenceHigh},
		},
		permits: []extraction.Permit{
			{PermitType: "deck", Confidence: extraction.ConfidenceLow},
		},
		codes: []extraction.BuildingCode{
			{CodeType: "local", Section: "150.01", Title: "Scope", Content: "All construction requires a permit.", Confidence: extraction.ConfidenceMedium},
		},
		questions: []extraction.Question{
			{Question: "Do I need a permit for a deck?", Category: "deck", Answer: "Yes."},
		},
		industry: map[string][]extraction.IndustryPermit{
			"food": {{PermitType: "food_truck", Confidence: extraction.ConfidenceMedium}},
		},
	}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Scrape)
	assert.Equal(t, municipal.ProviderAmLegal, got.Scrape.Provider)
	require.NotNil(t, got.GIS)
	assert.Equal(t, "Warren County", got.GIS.CountyName)
	assert.Equal(t, "https://codelibrary.amlegal.com/codes/mason/latest/overview", got.SourceURL)
	require.NotNil(t, got.StartedAt)
	require.NotNil(t, got.CompletedAt)

	// zoning chapter feeds zones, building+business chapters feed permits
	assert.Contains(t, extractor.zoneText, "zoning")
	assert.Contains(t, extractor.permitText, "building")
	assert.Contains(t, extractor.permitText, "business")
	assert.Contains(t, extractor.permitText, "\n\n---\n\n")
	assert.Contains(t, extractor.codeText, "building")

	// 2 zones + 1 permit + 1 industry permit + 1 code + 1 question
	assert.Equal(t, 6, got.ItemsFound)
	require.Len(t, got.IndustryPermits, 1)
	assert.Equal(t, "food_truck", got.IndustryPermits[0].PermitType)

	// only the low-confidence deck permit is flagged
	assert.Equal(t, 1, got.ItemsNeedReview)

	// (1.0 + 1.0 + 0.4 + 0.7 + 0.7) / 5, questions excluded
	assert.Equal(t, 0.76, got.ConfidenceScore)

	items, err := f.store.ListItems(ctx, job.ID, false, 0)
	require.NoError(t, err)
	assert.Len(t, items, 6)

	// industry permits are persisted under the permit item type
	permitItems := 0
	for _, item := range items {
		if item.ItemType == "permit" {
			permitItems++
		}
	}
	assert.Equal(t, 2, permitItems)

	assert.Equal(t, []string{job.ID}, f.archiver.jobIDs)
	assert.Equal(t, 1, f.notifier.reviews)
	assert.Equal(t, 0, f.notifier.failures)
}

func TestRunAggregateConfidenceExample(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		zones: []extraction.Zone{
			{ZoneCode: "R-1", Confidence: extraction.ConfidenceHigh},
			{ZoneCode: "R-2", Confidence: extraction.ConfidenceHigh},
			{ZoneCode: "B-1", Confidence: extraction.ConfidenceLow},
		},
	}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 0.80, got.ConfidenceScore)
}

func TestRunEmptyScrapeStillReachesReview(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{}
	f := newFixture(t, extractor)
	f.scraper.result = municipal.ScrapeResult{
		Provider:           municipal.ProviderUnknown,
		FallbacksAttempted: municipal.PriorityOrder(),
	}
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "nowhere-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
	assert.Equal(t, 0, got.ItemsFound)
	assert.Equal(t, float64(0), got.ConfidenceScore)
	assert.Empty(t, extractor.zoneText, "no chapters means no extraction calls")
}

func TestRunUnparseableResponseDegradesToEmpty(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{unparsed: true}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
	assert.Empty(t, got.Zones)
}

func TestRunSkipsCodeExtractionBelowTextFloor(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		codes: []extraction.BuildingCode{
			{CodeType: "local", Section: "150.01", Content: "Should not be reached."},
		},
	}
	f := newFixture(t, extractor)
	f.scraper.result = municipal.ScrapeResult{
		Provider: municipal.ProviderAmLegal,
		Chapters: []municipal.Chapter{
			{
				Info:    municipal.ChapterInfo{Title: "Chapter 150: Building Regulations", Topics: municipal.TopicFlags{Building: true}},
				Content: municipal.ChapterContent{FullText: "Short building chapter text under the floor."},
			},
		},
	}
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	assert.Empty(t, extractor.codeText)
	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
	assert.Empty(t, got.Codes)
}

func TestRunTransportErrorFailsJob(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{zonesErr: errors.New("connection refused")}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	err = f.coord.Run(ctx, job.ID, sources.ScrapeOptions{})
	require.Error(t, err)

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "connection refused")
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, 1, f.notifier.failures)

	// the scrape snapshot survives the failure
	require.NotNil(t, got.Scrape)
	assert.Len(t, got.Scrape.Chapters, 3)
}

func TestRunDropsItemsWithoutNaturalKeys(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		zones: []extraction.Zone{
			{ZoneCode: "R-1", Confidence: extraction.ConfidenceHigh},
			{ZoneCode: "", ZoneName: "mystery zone"},
		},
		permits: []extraction.Permit{
			{PermitType: "", Description: "unnamed"},
		},
	}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, got.Zones, 1)
	assert.Empty(t, got.Permits)
}

func TestCreateJobRejectsConcurrentJobs(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeExtractor{})
	ctx := context.Background()

	_, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)

	_, err = f.coord.CreateJob(ctx, "mason-oh", "full")
	require.ErrorIs(t, err, ErrJobInProgress)

	// a different jurisdiction is unaffected
	_, err = f.coord.CreateJob(ctx, "oxford-oh", "full")
	require.NoError(t, err)
}

func TestApproveImportsAndFlipsLive(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		zones: []extraction.Zone{
			{ZoneCode: "R-1", ZoneName: "Single Family", Category: "residential", MinLotSqft: ptr(10000.0), Confidence: extraction.ConfidenceHigh},
		},
		permits: []extraction.Permit{
			{PermitType: "deck", Category: "building", Description: "Deck permit", FeeBase: ptr(75.0), CodeSection: ptr("150.12"), Confidence: extraction.ConfidenceHigh},
		},
		codes: []extraction.BuildingCode{
			{CodeType: "local", Section: "150.01", Title: "Scope", Content: "All construction requires a permit."},
		},
		questions: []extraction.Question{
			{Question: "Do I need a permit for a deck?", Category: "deck", Answer: "Yes.", RelatedPermits: []string{"deck"}},
		},
		industry: map[string][]extraction.IndustryPermit{
			"food": {{PermitType: "food_truck", Category: "business", Confidence: extraction.ConfidenceMedium}},
		},
	}
	f := newFixture(t, extractor)
	ctx := context.Background()

	require.NoError(t, f.store.UpsertJurisdiction(ctx, store.Jurisdiction{ID: "mason-oh", Name: "Mason", State: "OH", Status: "pending"}))

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))
	require.NoError(t, f.coord.Approve(ctx, job.ID, "admin-7"))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusApproved, got.Status)
	assert.Equal(t, "admin-7", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	zones := f.store.ZoningDistricts()
	require.Len(t, zones, 1)
	assert.Equal(t, "R-1", zones[0].Code)
	require.NotNil(t, zones[0].MinLotSqft)
	assert.Equal(t, 10000.0, *zones[0].MinLotSqft)

	// deck permit plus the merged food truck industry permit
	permits := f.store.PermitRequirements()
	require.Len(t, permits, 2)
	assert.Equal(t, "deck", permits[0].ActivityType)
	assert.Equal(t, "food_truck", permits[1].ActivityType)
	require.NotNil(t, permits[0].OrdinanceRef)
	assert.Equal(t, "150.12", *permits[0].OrdinanceRef)

	require.Len(t, f.store.BuildingCodeChunks(), 1)
	require.Len(t, f.store.CommonQuestions(), 1)

	jur, err := f.store.GetJurisdiction(ctx, "mason-oh")
	require.NoError(t, err)
	assert.Equal(t, "live", jur.Status)
	assert.Equal(t, 100, jur.DataCompleteness)

	log := f.store.ActivityLog()
	require.Len(t, log, 1)
	assert.Equal(t, "approved_extraction", log[0].Action)
	assert.Equal(t, "admin-7", log[0].UserID)
	assert.Equal(t, job.ID, log[0].TargetID)
	assert.JSONEq(t, `{"zones":1,"permits":2,"codes":1,"questions":1}`, string(log[0].Details))

	assert.Equal(t, 1, f.notifier.approvals)
}

func TestApproveRequiresReviewStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeExtractor{})
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.store.TransitionJob(ctx, job.ID, store.StatusScraping))

	err = f.coord.Approve(ctx, job.ID, "admin-7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)

	// nothing was imported
	assert.Empty(t, f.store.ZoningDistricts())
	assert.Empty(t, f.store.ActivityLog())
}

func TestApproveTwiceIsRejected(t *testing.T) {
	t.Parallel()

	extractor := &fakeExtractor{
		zones: []extraction.Zone{{ZoneCode: "R-1", Confidence: extraction.ConfidenceHigh}},
	}
	f := newFixture(t, extractor)
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))
	require.NoError(t, f.coord.Approve(ctx, job.ID, "admin-7"))

	err = f.coord.Approve(ctx, job.ID, "admin-7")
	require.ErrorIs(t, err, store.ErrInvalidTransition)
	require.Len(t, f.store.ActivityLog(), 1)
}

func TestArchiveFailureDoesNotFailJob(t *testing.T) {
	t.Parallel()

	f := newFixture(t, &fakeExtractor{})
	f.archiver.err = errors.New("bucket unavailable")
	ctx := context.Background()

	job, err := f.coord.CreateJob(ctx, "mason-oh", "full")
	require.NoError(t, err)
	require.NoError(t, f.coord.Run(ctx, job.ID, sources.ScrapeOptions{}))

	got, err := f.store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReview, got.Status)
}
