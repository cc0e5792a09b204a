// Package sources contains one adapter per code-hosting platform plus
// the unified orchestrator that sequences them. Adapters share a single
// extraction engine; each platform contributes its URL map and the
// structural selectors its pages use.
package sources

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/metrics"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
)

const (
	maxChapterText     = 100000
	maxSectionText     = 5000
	minContentLength   = 500
	minTitleLength     = 3
	genericLinkMinText = 12
	fallbackChapterCap = 15
)

// site describes the platform-specific shape of a code library.
type site struct {
	provider municipal.Provider
	baseURL  string
	// paths maps jurisdiction IDs to site-relative source paths.
	paths map[string]string
	// tocSelectors are tried in priority order; a generic "any link
	// with substantial text" pass runs last.
	tocSelectors []string
	// contentSelectors are candidate body containers, best first.
	contentSelectors []string
	sectionSelector  string
	sectionNumSel    string
	sectionTitleSel  string
	renderWait       time.Duration
	chapterCap       int
}

// Option tunes an adapter beyond its platform defaults.
type Option func(*site)

// WithChapterCap bounds the leading-chapter fallback used when a TOC
// yields no topic matches. Topic-matched chapters are never capped.
func WithChapterCap(n int) Option {
	return func(s *site) {
		if n > 0 {
			s.chapterCap = n
		}
	}
}

// WithRenderWait overrides the in-page settle wait used for full-tier
// fetches.
func WithRenderWait(d time.Duration) Option {
	return func(s *site) {
		if d > 0 {
			s.renderWait = d
		}
	}
}

// Adapter implements municipal.Scraper for one platform.
type Adapter struct {
	site    site
	fetcher *fetch.Fetcher
	pacer   *ratelimit.Limiter
	logger  *zap.Logger
}

func newAdapter(s site, fetcher *fetch.Fetcher, pacer *ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	for _, opt := range opts {
		opt(&s)
	}
	if s.renderWait <= 0 {
		s.renderWait = 3 * time.Second
	}
	if s.chapterCap <= 0 {
		s.chapterCap = fallbackChapterCap
	}
	return &Adapter{
		site:    s,
		fetcher: fetcher,
		pacer:   pacer,
		logger:  logger.Named(string(s.provider)),
	}
}

// Provider identifies the platform this adapter targets.
func (a *Adapter) Provider() municipal.Provider {
	return a.site.provider
}

// ResolveURL maps a jurisdiction to its source URL on this platform.
func (a *Adapter) ResolveURL(jurisdictionID string) (string, bool) {
	path, ok := a.site.paths[jurisdictionID]
	if !ok {
		return "", false
	}
	return a.site.baseURL + path, true
}

// DiscoverChapters fetches the table of contents and parses it into
// classified, title-deduplicated entries.
func (a *Adapter) DiscoverChapters(ctx context.Context, jurisdictionID string) ([]municipal.ChapterInfo, int, error) {
	tocURL, ok := a.ResolveURL(jurisdictionID)
	if !ok {
		return nil, 0, fmt.Errorf("no %s source for jurisdiction %q", a.site.provider, jurisdictionID)
	}

	result := a.fetcher.Fetch(ctx, tocURL, fetch.Options{Tier: fetch.TierFull, Wait: a.site.renderWait})
	if !result.Success {
		return nil, result.CostUnits, fmt.Errorf("fetch toc for %s: %s", jurisdictionID, result.Error)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Body))
	if err != nil {
		return nil, result.CostUnits, fmt.Errorf("parse toc html: %w", err)
	}

	chapters := a.parseTOC(doc)
	a.logger.Info("toc discovered",
		zap.String("jurisdiction", jurisdictionID),
		zap.Int("chapters", len(chapters)),
		zap.Int("relevant", countRelevant(chapters)),
	)
	return chapters, result.CostUnits, nil
}

func (a *Adapter) parseTOC(doc *goquery.Document) []municipal.ChapterInfo {
	var chapters []municipal.ChapterInfo
	seen := make(map[string]bool)

	collect := func(sel *goquery.Selection, minText int) {
		sel.Each(func(_ int, el *goquery.Selection) {
			title := strings.TrimSpace(el.Text())
			href, hasHref := el.Attr("href")
			if !hasHref || len(title) < minText {
				return
			}
			// first occurrence of a title wins
			if seen[title] {
				return
			}
			seen[title] = true
			chapters = append(chapters, municipal.ChapterInfo{
				Title:  title,
				URL:    a.absoluteURL(href),
				Topics: municipal.Classify(title),
			})
		})
	}

	for _, selector := range a.site.tocSelectors {
		collect(doc.Find(selector), minTitleLength)
		if len(chapters) > 0 {
			return chapters
		}
	}
	// structural selectors found nothing: take any link with
	// substantial text
	collect(doc.Find("a"), genericLinkMinText)
	return chapters
}

// ExtractChapter fetches one chapter page and pulls out its body text
// and best-effort sub-sections. Failures are recorded on the returned
// content rather than raised so a sweep can continue past them.
func (a *Adapter) ExtractChapter(ctx context.Context, chapterURL string) municipal.ChapterContent {
	content := municipal.ChapterContent{
		URL:       chapterURL,
		ScrapedAt: time.Now().UTC(),
	}

	result := a.fetcher.Fetch(ctx, chapterURL, fetch.Options{Tier: fetch.TierFull, Wait: a.site.renderWait})
	content.CostUnits = result.CostUnits
	if !result.Success {
		content.Error = result.Error
		return content
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(result.Body))
	if err != nil {
		content.Error = fmt.Sprintf("parse chapter html: %v", err)
		return content
	}
	doc.Find("script, style, noscript, nav, header, footer").Remove()

	content.FullText = truncateText(a.extractBody(doc), maxChapterText)
	content.Sections = a.extractSections(doc)
	return content
}

func (a *Adapter) extractBody(doc *goquery.Document) string {
	for _, selector := range a.site.contentSelectors {
		sel := doc.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		text := normalizeWhitespace(sel.Text())
		if len(text) > minContentLength {
			return text
		}
	}
	return normalizeWhitespace(doc.Find("body").Text())
}

func (a *Adapter) extractSections(doc *goquery.Document) []municipal.Section {
	if a.site.sectionSelector == "" {
		return nil
	}
	var sections []municipal.Section
	doc.Find(a.site.sectionSelector).Each(func(_ int, el *goquery.Selection) {
		num := strings.TrimSpace(el.Find(a.site.sectionNumSel).First().Text())
		title := strings.TrimSpace(el.Find(a.site.sectionTitleSel).First().Text())
		text := normalizeWhitespace(el.Text())
		if num == "" && title == "" && len(text) <= 50 {
			return
		}
		sections = append(sections, municipal.Section{
			Number: num,
			Title:  title,
			Text:   truncateText(text, maxSectionText),
		})
	})
	return sections
}

// ScrapeJurisdiction runs TOC discovery and then extracts the selected
// chapters sequentially, pacing between requests. Per-chapter failures
// are captured on the chapter record and never abort the sweep.
func (a *Adapter) ScrapeJurisdiction(ctx context.Context, jurisdictionID string) (municipal.ScrapeResult, error) {
	sourceURL, _ := a.ResolveURL(jurisdictionID)
	result := municipal.ScrapeResult{
		JurisdictionID: jurisdictionID,
		Provider:       a.site.provider,
		SourceURL:      sourceURL,
		ScrapedAt:      time.Now().UTC(),
	}

	toc, tocCost, err := a.DiscoverChapters(ctx, jurisdictionID)
	result.TotalCost = tocCost
	if err != nil {
		return result, err
	}

	selected := selectForExtraction(toc, a.site.chapterCap)
	if !a.fetcher.CheckBalance(ctx, len(selected)+1) {
		return result, fmt.Errorf("insufficient fetch balance for %d chapters of %s", len(selected), jurisdictionID)
	}

	extracted := make(map[string]municipal.ChapterContent, len(selected))
	for _, info := range selected {
		if err := a.pace(ctx, info.URL); err != nil {
			return result, err
		}
		content := a.ExtractChapter(ctx, info.URL)
		result.TotalCost += content.CostUnits
		if content.Error == "" {
			metrics.ObserveChapter(string(a.site.provider), "success")
		} else {
			metrics.ObserveChapter(string(a.site.provider), "failure")
			a.logger.Warn("chapter extraction failed",
				zap.String("jurisdiction", jurisdictionID),
				zap.String("chapter", info.Title),
				zap.String("error", content.Error),
			)
		}
		extracted[info.URL] = content
	}

	for _, info := range toc {
		ch := municipal.Chapter{Info: info}
		if content, ok := extracted[info.URL]; ok {
			ch.Content = content
		}
		result.Chapters = append(result.Chapters, ch)
	}
	return result, nil
}

func (a *Adapter) pace(ctx context.Context, url string) error {
	if a.pacer == nil {
		return nil
	}
	if err := a.pacer.Wait(ctx, url); err != nil {
		return fmt.Errorf("pace chapter fetch: %w", err)
	}
	return nil
}

// selectForExtraction picks the chapters worth the cost of a full
// fetch: every topic match, else the leading slice of the TOC minus
// obvious navigation entries, capped at limit.
func selectForExtraction(toc []municipal.ChapterInfo, limit int) []municipal.ChapterInfo {
	if limit <= 0 {
		limit = fallbackChapterCap
	}
	var relevant []municipal.ChapterInfo
	for _, ch := range toc {
		if ch.Relevant() {
			relevant = append(relevant, ch)
		}
	}
	if len(relevant) > 0 || len(toc) == 0 {
		return relevant
	}

	var fallback []municipal.ChapterInfo
	for _, ch := range toc {
		lower := strings.ToLower(ch.Title)
		if strings.Contains(lower, "table of contents") || strings.Contains(lower, "home") {
			continue
		}
		if len(ch.Title) <= minTitleLength {
			continue
		}
		fallback = append(fallback, ch)
		if len(fallback) == limit {
			break
		}
	}
	return fallback
}

func (a *Adapter) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base, err := url.Parse(a.site.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func countRelevant(chapters []municipal.ChapterInfo) int {
	n := 0
	for _, ch := range chapters {
		if ch.Relevant() {
			n++
		}
	}
	return n
}
