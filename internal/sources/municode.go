package sources

import (
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
)

// municodePaths lists the jurisdictions whose code of ordinances is
// hosted on the Municode library.
var municodePaths = map[string]string{
	"cincinnati-oh":       "/oh/cincinnati/codes/code_of_ordinances",
	"covington-ky":        "/ky/covington/codes/code_of_ordinances",
	"newport-ky":          "/ky/newport/codes/code_of_ordinances",
	"florence-ky":         "/ky/florence/codes/code_of_ordinances",
	"mason-oh":            "/oh/mason/codes/code_of_ordinances",
	"fairfield-oh":        "/oh/fairfield/codes/code_of_ordinances",
	"hamilton-oh":         "/oh/hamilton/codes/code_of_ordinances",
	"blue-ash-oh":         "/oh/blue_ash/codes/code_of_ordinances",
	"norwood-oh":          "/oh/norwood/codes/code_of_ordinances",
	"sharonville-oh":      "/oh/sharonville/codes/code_of_ordinances",
	"montgomery-oh":       "/oh/montgomery/codes/code_of_ordinances",
	"madeira-oh":          "/oh/madeira/codes/code_of_ordinances",
	"loveland-oh":         "/oh/loveland/codes/code_of_ordinances",
	"milford-oh":          "/oh/milford/codes/code_of_ordinances",
	"reading-oh":          "/oh/reading/codes/code_of_ordinances",
	"deer-park-oh":        "/oh/deer_park/codes/code_of_ordinances",
	"erlanger-ky":         "/ky/erlanger/codes/code_of_ordinances",
	"fort-mitchell-ky":    "/ky/fort_mitchell/codes/code_of_ordinances",
	"fort-thomas-ky":      "/ky/fort_thomas/codes/code_of_ordinances",
	"independence-ky":     "/ky/independence/codes/code_of_ordinances",
	"middletown-oh":       "/oh/middletown/codes/code_of_ordinances",
	"lebanon-oh":          "/oh/lebanon/codes/code_of_ordinances",
	"springdale-oh":       "/oh/springdale/codes/code_of_ordinances",
	"forest-park-oh":      "/oh/forest_park/codes/code_of_ordinances",
	"wyoming-oh":          "/oh/wyoming/codes/code_of_ordinances",
	"indian-hill-oh":      "/oh/indian_hill/codes/code_of_ordinances",
	"mariemont-oh":        "/oh/mariemont/codes/code_of_ordinances",
	"evendale-oh":         "/oh/evendale/codes/code_of_ordinances",
	"glendale-oh":         "/oh/glendale/codes/code_of_ordinances",
	"woodlawn-oh":         "/oh/woodlawn/codes/code_of_ordinances",
	"lincoln-heights-oh":  "/oh/lincoln_heights/codes/code_of_ordinances",
	"lockland-oh":         "/oh/lockland/codes/code_of_ordinances",
	"silverton-oh":        "/oh/silverton/codes/code_of_ordinances",
	"golf-manor-oh":       "/oh/golf_manor/codes/code_of_ordinances",
	"amberley-village-oh": "/oh/amberley_village/codes/code_of_ordinances",
	"springboro-oh":       "/oh/springboro/codes/code_of_ordinances",
	"trenton-oh":          "/oh/trenton/codes/code_of_ordinances",
	"monroe-oh":           "/oh/monroe/codes/code_of_ordinances",
	"oxford-oh":           "/oh/oxford/codes/code_of_ordinances",
	"batavia-oh":          "/oh/batavia/codes/code_of_ordinances",
	"franklin-oh":         "/oh/franklin/codes/code_of_ordinances",
	"elsmere-ky":          "/ky/elsmere/codes/code_of_ordinances",
	"edgewood-ky":         "/ky/edgewood/codes/code_of_ordinances",
	"crestview-hills-ky":  "/ky/crestview_hills/codes/code_of_ordinances",
	"villa-hills-ky":      "/ky/villa_hills/codes/code_of_ordinances",
	"lakeside-park-ky":    "/ky/lakeside_park/codes/code_of_ordinances",
	"taylor-mill-ky":      "/ky/taylor_mill/codes/code_of_ordinances",
	"cold-spring-ky":      "/ky/cold_spring/codes/code_of_ordinances",
	"highland-heights-ky": "/ky/highland_heights/codes/code_of_ordinances",
	"bellevue-ky":         "/ky/bellevue/codes/code_of_ordinances",
	"dayton-ky":           "/ky/dayton/codes/code_of_ordinances",
	"southgate-ky":        "/ky/southgate/codes/code_of_ordinances",
	"alexandria-ky":       "/ky/alexandria/codes/code_of_ordinances",
	"union-ky":            "/ky/union/codes/code_of_ordinances",
	"walton-ky":           "/ky/walton/codes/code_of_ordinances",
}

// NewMunicode builds the adapter for library.municode.com. Municode is
// an Angular app, so TOC pages need the longest render wait of any
// platform before chapter links exist in the DOM.
func NewMunicode(fetcher *fetch.Fetcher, pacer *ratelimit.Limiter, logger *zap.Logger, opts ...Option) *Adapter {
	return newAdapter(site{
		provider: municipal.ProviderMunicode,
		baseURL:  "https://library.municode.com",
		paths:    municodePaths,
		tocSelectors: []string{
			`a[href*="nodeId="]`,
			`a[href*="/codes/code_of_ordinances"]`,
		},
		contentSelectors: []string{
			"#codebody",
			".codes-content",
			".chunk-content",
			".code-content",
			".main-content",
			`[role="main"]`,
			"main",
			"article",
		},
		sectionSelector: ".section, [data-section], .chunk",
		sectionNumSel:   ".num, .section-number, .secnum",
		sectionTitleSel: ".heading, .section-title, .sectitle",
		renderWait:      5 * time.Second,
	}, fetcher, pacer, logger, opts...)
}
