package sources

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/municipal"
)

// fakeClient serves canned bodies keyed by URL.
type fakeClient struct {
	pages map[string]string
	calls []string
}

func (c *fakeClient) Fetch(_ context.Context, url string, _ fetch.Options) fetch.Result {
	c.calls = append(c.calls, url)
	body, ok := c.pages[url]
	if !ok {
		return fetch.Result{StatusCode: 404, Error: "not found"}
	}
	return fetch.Result{Success: true, StatusCode: 200, Body: body, CostUnits: 5}
}

func testAdapter(t *testing.T, pages map[string]string) (*Adapter, *fakeClient) {
	t.Helper()
	client := &fakeClient{pages: pages}
	fetcher := fetch.New(client, fetch.Config{MaxAttempts: 1}, zap.NewNop())
	a := newAdapter(site{
		provider: municipal.ProviderMunicode,
		baseURL:  "https://codes.example.gov",
		paths:    map[string]string{"testville-oh": "/oh/testville/codes"},
		tocSelectors: []string{
			`a[href*="nodeId="]`,
		},
		contentSelectors: []string{"#codebody", "main"},
		sectionSelector:  ".section",
		sectionNumSel:    ".num",
		sectionTitleSel:  ".heading",
	}, fetcher, nil, zap.NewNop())
	return a, client
}

const tocPage = `<html><body>
	<a href="/oh/testville/codes?nodeId=1">Chapter 1 General Provisions</a>
	<a href="/oh/testville/codes?nodeId=2">Chapter 2 Zoning Code</a>
	<a href="/oh/testville/codes?nodeId=3">Chapter 3 Parks</a>
	<a href="/oh/testville/codes?nodeId=2">Chapter 2 Zoning Code</a>
	<a href="/oh/testville/codes?nodeId=4">ch</a>
	<a>No Href Entry Here</a>
</body></html>`

func TestDiscoverChaptersParsesAndDeduplicates(t *testing.T) {
	t.Parallel()

	a, _ := testAdapter(t, map[string]string{
		"https://codes.example.gov/oh/testville/codes": tocPage,
	})

	chapters, cost, err := a.DiscoverChapters(context.Background(), "testville-oh")
	require.NoError(t, err)
	assert.Equal(t, 5, cost)
	require.Len(t, chapters, 3, "duplicate, short, and href-less entries must be dropped")

	assert.Equal(t, "Chapter 1 General Provisions", chapters[0].Title)
	assert.Equal(t, "https://codes.example.gov/oh/testville/codes?nodeId=1", chapters[0].URL)
	assert.False(t, chapters[0].Relevant())

	assert.Equal(t, "Chapter 2 Zoning Code", chapters[1].Title)
	assert.True(t, chapters[1].Topics.Zoning)
	assert.True(t, chapters[1].Relevant())
}

func TestDiscoverChaptersGenericLinkFallback(t *testing.T) {
	t.Parallel()

	// no nodeId links at all: the generic pass picks up links with
	// substantial text
	a, _ := testAdapter(t, map[string]string{
		"https://codes.example.gov/oh/testville/codes": `<html><body>
			<a href="/other/page">Building Regulations Title</a>
			<a href="/nav">Menu</a>
		</body></html>`,
	})

	chapters, _, err := a.DiscoverChapters(context.Background(), "testville-oh")
	require.NoError(t, err)
	require.Len(t, chapters, 1)
	assert.Equal(t, "Building Regulations Title", chapters[0].Title)
	assert.True(t, chapters[0].Topics.Building)
}

func TestDiscoverChaptersUnknownJurisdiction(t *testing.T) {
	t.Parallel()

	a, client := testAdapter(t, nil)
	_, _, err := a.DiscoverChapters(context.Background(), "nowhere-ks")
	require.Error(t, err)
	assert.Empty(t, client.calls, "no fetch should be issued without a known path")
}

func TestExtractChapterPrefersContentSelector(t *testing.T) {
	t.Parallel()

	body := strings.Repeat("The zoning district regulations apply. ", 20)
	a, _ := testAdapter(t, map[string]string{
		"https://codes.example.gov/ch2": `<html><body>
			<script>var tracking = true;</script>
			<nav>Site navigation junk</nav>
			<div id="codebody">` + body + `
				<div class="section">
					<span class="num">153.01</span>
					<span class="heading">Purpose</span>
					This chapter establishes districts.
				</div>
			</div>
		</body></html>`,
	})

	content := a.ExtractChapter(context.Background(), "https://codes.example.gov/ch2")
	require.Empty(t, content.Error)
	assert.Equal(t, 5, content.CostUnits)
	assert.Contains(t, content.FullText, "zoning district regulations")
	assert.NotContains(t, content.FullText, "tracking")
	assert.NotContains(t, content.FullText, "navigation junk")

	require.Len(t, content.Sections, 1)
	assert.Equal(t, "153.01", content.Sections[0].Number)
	assert.Equal(t, "Purpose", content.Sections[0].Title)
}

func TestExtractChapterFetchFailureIsRecorded(t *testing.T) {
	t.Parallel()

	a, _ := testAdapter(t, nil)
	content := a.ExtractChapter(context.Background(), "https://codes.example.gov/missing")
	assert.Empty(t, content.FullText)
	assert.NotEmpty(t, content.Error)
}

func TestScrapeJurisdictionExtractsRelevantOnly(t *testing.T) {
	t.Parallel()

	chapterBody := strings.Repeat("Zoning district text. ", 40)
	a, client := testAdapter(t, map[string]string{
		"https://codes.example.gov/oh/testville/codes":          tocPage,
		"https://codes.example.gov/oh/testville/codes?nodeId=2": `<html><body><div id="codebody">` + chapterBody + `</div></body></html>`,
	})

	result, err := a.ScrapeJurisdiction(context.Background(), "testville-oh")
	require.NoError(t, err)

	assert.Equal(t, municipal.ProviderMunicode, result.Provider)
	assert.Equal(t, "https://codes.example.gov/oh/testville/codes", result.SourceURL)
	require.Len(t, result.Chapters, 3, "every discovered chapter must appear in the result")

	// only the zoning chapter carries extracted content
	var withContent int
	for _, ch := range result.Chapters {
		if ch.Content.FullText != "" {
			withContent++
			assert.Equal(t, "Chapter 2 Zoning Code", ch.Info.Title)
		}
	}
	assert.Equal(t, 1, withContent)
	assert.Equal(t, 10, result.TotalCost, "toc fetch plus one chapter fetch")
	assert.Len(t, client.calls, 2)
}

func TestScrapeJurisdictionChapterFailureDoesNotAbort(t *testing.T) {
	t.Parallel()

	a, _ := testAdapter(t, map[string]string{
		// toc resolves, chapter page does not
		"https://codes.example.gov/oh/testville/codes": tocPage,
	})

	result, err := a.ScrapeJurisdiction(context.Background(), "testville-oh")
	require.NoError(t, err)
	require.Len(t, result.Chapters, 3)

	for _, ch := range result.Chapters {
		if ch.Info.Title == "Chapter 2 Zoning Code" {
			assert.NotEmpty(t, ch.Content.Error)
			assert.Empty(t, ch.Content.FullText)
		}
	}
}

func TestSelectForExtractionFallsBackToLeadingChapters(t *testing.T) {
	t.Parallel()

	toc := []municipal.ChapterInfo{
		{Title: "Table of Contents"},
		{Title: "Home"},
		{Title: "Chapter 1 Administration"},
		{Title: "Chapter 2 Streets"},
	}
	selected := selectForExtraction(toc, 0)
	require.Len(t, selected, 2)
	assert.Equal(t, "Chapter 1 Administration", selected[0].Title)
	assert.Equal(t, "Chapter 2 Streets", selected[1].Title)
}

func TestSelectForExtractionCapsFallback(t *testing.T) {
	t.Parallel()

	var toc []municipal.ChapterInfo
	for i := 0; i < 30; i++ {
		toc = append(toc, municipal.ChapterInfo{Title: strings.Repeat("x", 10+i)})
	}
	assert.Len(t, selectForExtraction(toc, 0), fallbackChapterCap)
}

func TestSelectForExtractionKeepsAllRelevant(t *testing.T) {
	t.Parallel()

	var toc []municipal.ChapterInfo
	for i := 0; i < 20; i++ {
		toc = append(toc, municipal.ChapterInfo{
			Title:  fmt.Sprintf("Chapter %d Zoning", i+1),
			Topics: municipal.TopicFlags{Zoning: true},
		})
	}
	assert.Len(t, selectForExtraction(toc, fallbackChapterCap), 20)
}
