// Package municipal defines the core types shared across the ingestion
// pipeline: hosting providers, discovered chapters, extracted chapter
// content, and sweep results.
package municipal

import "time"

// Provider identifies a third-party platform hosting a jurisdiction's
// published legal code. The set is closed; supporting a new platform
// means adding a constant and an adapter, never branching on free-form
// strings inside business logic.
type Provider string

// Known hosting platforms, in global fallback priority order.
const (
	ProviderMunicode Provider = "municode"
	ProviderAmLegal  Provider = "amlegal"
	ProviderECode360 Provider = "ecode360"
	ProviderSterling Provider = "sterling"
	ProviderUnknown  Provider = "unknown"
)

// PriorityOrder returns the fixed global trial order used when no
// preference or mapping narrows the candidate set.
func PriorityOrder() []Provider {
	return []Provider{ProviderMunicode, ProviderAmLegal, ProviderECode360, ProviderSterling}
}

// TopicFlags tags a chapter title with the fixed set of regulatory topics.
type TopicFlags struct {
	Zoning        bool `json:"zoning"`
	Building      bool `json:"building"`
	Business      bool `json:"business"`
	Health        bool `json:"health"`
	AnimalControl bool `json:"animal_control"`
}

// Relevant reports whether any topic flag is set.
func (f TopicFlags) Relevant() bool {
	return f.Zoning || f.Building || f.Business || f.Health || f.AnimalControl
}

// ChapterInfo describes one table-of-contents entry. It is immutable
// once produced by TOC discovery.
type ChapterInfo struct {
	Title  string     `json:"title"`
	URL    string     `json:"url"`
	Topics TopicFlags `json:"topics"`
}

// Relevant reports whether the chapter matched any topic.
func (c ChapterInfo) Relevant() bool {
	return c.Topics.Relevant()
}

// Section is one sub-division extracted from a chapter body. Extraction
// is best effort; an empty section list is a valid result.
type Section struct {
	Number string `json:"number"`
	Title  string `json:"title"`
	Text   string `json:"text"`
}

// ChapterContent holds the extracted body of a single chapter page.
// A failed extraction carries Error and empty text instead of aborting
// the surrounding sweep.
type ChapterContent struct {
	URL       string    `json:"url"`
	FullText  string    `json:"full_text"`
	Sections  []Section `json:"sections,omitempty"`
	CostUnits int       `json:"cost_units"`
	ScrapedAt time.Time `json:"scraped_at"`
	Error     string    `json:"error,omitempty"`
}

// Chapter pairs a TOC entry with its extracted content. Content is the
// zero value for TOC-only results.
type Chapter struct {
	Info    ChapterInfo    `json:"info"`
	Content ChapterContent `json:"content"`
}

// ScrapeResult is the outcome of a whole-jurisdiction sweep. An empty
// Chapters slice with a populated FallbacksAttempted list is a valid,
// observable outcome, not a fault.
type ScrapeResult struct {
	JurisdictionID     string     `json:"jurisdiction_id"`
	Provider           Provider   `json:"provider"`
	SourceURL          string     `json:"source_url,omitempty"`
	Chapters           []Chapter  `json:"chapters"`
	TotalCost          int        `json:"total_cost"`
	ScrapedAt          time.Time  `json:"scraped_at"`
	FallbacksAttempted []Provider `json:"fallbacks_attempted,omitempty"`
}

// RelevantChapters returns the chapters whose TOC entry matched a topic.
func (r ScrapeResult) RelevantChapters() []Chapter {
	var out []Chapter
	for _, ch := range r.Chapters {
		if ch.Info.Relevant() {
			out = append(out, ch)
		}
	}
	return out
}

// TOCResult is the outcome of a TOC-only availability check against the
// jurisdiction's statically known provider.
type TOCResult struct {
	Provider Provider      `json:"provider"`
	Chapters []ChapterInfo `json:"chapters"`
	Cost     int           `json:"cost"`
}

// Availability reports whether a jurisdiction has a known hosting
// platform and where its code lives.
type Availability struct {
	JurisdictionID string   `json:"jurisdiction_id,omitempty"`
	HasSource      bool     `json:"has_source"`
	Provider       Provider `json:"provider"`
	SourceURL      string   `json:"source_url,omitempty"`
}
