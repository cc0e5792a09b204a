package sources

import (
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
)

// ecode360Paths lists the jurisdictions hosted on eCode360 (General
// Code). Paths are the platform's short library codes.
var ecode360Paths = map[string]string{
	"blue-ash-oh":         "/BL2597",
	"reading-oh":          "/RE2626",
	"deer-park-oh":        "/DE2603",
	"sharonville-oh":      "/SH2627",
	"norwood-oh":          "/NO2619",
	"montgomery-oh":       "/MO2616",
	"madeira-oh":          "/MA2611",
	"silverton-oh":        "/SI2629",
	"wyoming-oh":          "/WY2638",
	"mariemont-oh":        "/MA2612",
	"indian-hill-oh":      "/IN2608",
	"evendale-oh":         "/EV2604",
	"glendale-oh":         "/GL2606",
	"golf-manor-oh":       "/GO2607",
	"amberley-village-oh": "/AM2594",
	"lockland-oh":         "/LO2610",
	"lincoln-heights-oh":  "/LI2609",
	"woodlawn-oh":         "/WO2637",
	"springdale-oh":       "/SP2630",
	"forest-park-oh":      "/FO2605",
}

// NewEcode360 builds the adapter for ecode360.com.
func NewEcode360(fetcher *fetch.Fetcher, pacer *ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Adapter {
	return newAdapter(site{
		provider: municipal.ProviderECode360,
		baseURL:  "https://ecode360.com",
		paths:    ecode360Paths,
		tocSelectors: []string{
			`a.toc-link, a[href*="/index.html#"], .toc-item a`,
			`a[href*="Chapter"], a[href*="Article"]`,
		},
		contentSelectors: []string{
			".content-area",
			".ecode-content",
			"#content",
			".document-content",
			"main",
			"article",
		},
		sectionSelector: ".section, .ecode-section, [data-section]",
		sectionNumSel:   ".section-number, .num, .sec-num",
		sectionTitleSel: ".section-title, .heading, .sec-title",
		renderWait:      3 * time.Second,
	}, fetcher, pacer, logger, opts...)
}
