package sources

import (
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
)

// sterlingPaths lists the jurisdictions still served from Sterling
// Codifiers codebooks. Sterling was acquired by CivicPlus, so some of
// these may redirect.
var sterlingPaths = map[string]string{
	"loveland-oh": "/codebook/index.php?book_id=591",
	"milford-oh":  "/codebook/index.php?book_id=634",
	"batavia-oh":  "/codebook/index.php?book_id=54",
	"monroe-oh":   "/codebook/index.php?book_id=643",
	"franklin-oh": "/codebook/index.php?book_id=305",
}

// NewSterling builds the adapter for sterlingcodifiers.com.
func NewSterling(fetcher *fetch.Fetcher, pacer *ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Adapter {
	return newAdapter(site{
		provider: municipal.ProviderSterling,
		baseURL:  "https://sterlingcodifiers.com",
		paths:    sterlingPaths,
		tocSelectors: []string{
			`a[href*="chapter_id"], a[href*="title_id"]`,
			".toc a, .nav-tree a, #toc a",
		},
		contentSelectors: []string{
			"#content",
			".content-area",
			".code-content",
			"main",
			"article",
		},
		sectionSelector: ".section, [data-section], .code-section",
		sectionNumSel:   ".section-number, .num",
		sectionTitleSel: ".section-title, .heading",
		renderWait:      3 * time.Second,
	}, fetcher, pacer, logger, opts...)
}
