package municipal

import "context"

// Scraper is the three-operation contract every provider adapter
// implements, plus the whole-jurisdiction sweep built on top of them.
type Scraper interface {
	// Provider identifies the platform this adapter targets.
	Provider() Provider

	// ResolveURL maps a jurisdiction to its source URL on this platform.
	// ok is false when the provider is not applicable to the jurisdiction.
	ResolveURL(jurisdictionID string) (url string, ok bool)

	// DiscoverChapters fetches and parses the jurisdiction's table of
	// contents, returning classified, title-deduplicated entries.
	DiscoverChapters(ctx context.Context, jurisdictionID string) ([]ChapterInfo, int, error)

	// ExtractChapter fetches a chapter page and extracts its body text
	// and sub-sections. Failures are recorded on the returned content,
	// never raised.
	ExtractChapter(ctx context.Context, url string) ChapterContent

	// ScrapeJurisdiction runs discovery plus sequential chapter
	// extraction with courtesy pacing between requests.
	ScrapeJurisdiction(ctx context.Context, jurisdictionID string) (ScrapeResult, error)
}
