package sources

import (
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
)

// amlegalPaths lists the jurisdictions hosted by American Legal
// Publishing. Path format is /codes/{city_code}/latest/overview.
var amlegalPaths = map[string]string{
	"covington-ky":        "/codes/covington/latest/overview",
	"newport-ky":          "/codes/newportky/latest/overview",
	"erlanger-ky":         "/codes/erlanger/latest/overview",
	"fort-thomas-ky":      "/codes/fortthomas/latest/overview",
	"independence-ky":     "/codes/independence/latest/overview",
	"florence-ky":         "/codes/florence/latest/overview",
	"fort-mitchell-ky":    "/codes/fortmitchell/latest/overview",
	"bellevue-ky":         "/codes/bellevue/latest/overview",
	"dayton-ky":           "/codes/dayton/latest/overview",
	"southgate-ky":        "/codes/southgate/latest/overview",
	"cold-spring-ky":      "/codes/coldspring/latest/overview",
	"highland-heights-ky": "/codes/highlandheights/latest/overview",
	"taylor-mill-ky":      "/codes/taylormill/latest/overview",
	"alexandria-ky":       "/codes/alexandria/latest/overview",
	"union-ky":            "/codes/union/latest/overview",
	"walton-ky":           "/codes/walton/latest/overview",
	"edgewood-ky":         "/codes/edgewood/latest/overview",
	"elsmere-ky":          "/codes/elsmere/latest/overview",
	"villa-hills-ky":      "/codes/villahills/latest/overview",
	"lakeside-park-ky":    "/codes/lakesidepark/latest/overview",
	"crestview-hills-ky":  "/codes/crestviewhills/latest/overview",
	"hamilton-oh":         "/codes/hamilton/latest/overview",
	"middletown-oh":       "/codes/middletown/latest/overview",
	"fairfield-oh":        "/codes/fairfield/latest/overview",
	"lebanon-oh":          "/codes/lebanon/latest/overview",
	"mason-oh":            "/codes/mason/latest/overview",
	"oxford-oh":           "/codes/oxford/latest/overview",
	"springboro-oh":       "/codes/springboro/latest/overview",
	"trenton-oh":          "/codes/trenton/latest/overview",
	"blue-ash-oh":         "/codes/blueash/latest/overview",
	"reading-oh":          "/codes/reading/latest/overview",
	"deer-park-oh":        "/codes/deerpark/latest/overview",
	"sharonville-oh":      "/codes/sharonville/latest/overview",
	"norwood-oh":          "/codes/norwood/latest/overview",
	"montgomery-oh":       "/codes/montgomery/latest/overview",
	"madeira-oh":          "/codes/madeira/latest/overview",
	"silverton-oh":        "/codes/silverton/latest/overview",
	"wyoming-oh":          "/codes/wyoming/latest/overview",
	"mariemont-oh":        "/codes/mariemont/latest/overview",
	"indian-hill-oh":      "/codes/indianhill/latest/overview",
	"evendale-oh":         "/codes/evendale/latest/overview",
	"glendale-oh":         "/codes/glendale/latest/overview",
	"golf-manor-oh":       "/codes/golfmanor/latest/overview",
	"amberley-village-oh": "/codes/amberley/latest/overview",
	"lockland-oh":         "/codes/lockland/latest/overview",
	"lincoln-heights-oh":  "/codes/lincolnheights/latest/overview",
	"woodlawn-oh":         "/codes/woodlawn/latest/overview",
	"springdale-oh":       "/codes/springdale/latest/overview",
	"forest-park-oh":      "/codes/forestpark/latest/overview",
	"loveland-oh":         "/codes/loveland/latest/overview",
	"milford-oh":          "/codes/milford/latest/overview",
	"batavia-oh":          "/codes/batavia/latest/overview",
	"monroe-oh":           "/codes/monroe/latest/overview",
	"franklin-oh":         "/codes/franklin/latest/overview",
}

// NewAmlegal builds the adapter for codelibrary.amlegal.com. Content
// pages organize body text into .chunk blocks.
func NewAmlegal(fetcher *fetch.Fetcher, pacer *ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Adapter {
	return newAdapter(site{
		provider: municipal.ProviderAmLegal,
		baseURL:  "https://codelibrary.amlegal.com",
		paths:    amlegalPaths,
		tocSelectors: []string{
			`a[href*="/codes/"]`,
			".toc-node a, .tocTree a, .nav-tree a",
		},
		contentSelectors: []string{
			".chunk",
			".chunk-content",
			".code-chunk",
			".codenav__content",
			".code-body",
			".content-body",
			".code-content",
			".document-content",
			"#content-area",
			"#content",
			"main",
			"article",
		},
		sectionSelector: ".section, .code-section, [data-section]",
		sectionNumSel:   ".section-number, .num",
		sectionTitleSel: ".section-title, .heading",
		renderWait:      3 * time.Second,
	}, fetcher, pacer, logger, opts...)
}
