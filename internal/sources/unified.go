package sources

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/municipal"
)

// DefaultJurisdictionProviders records the verified hosting platform
// per jurisdiction. Cincinnati itself is on Municode; nearly every
// other metro city publishes through American Legal.
var DefaultJurisdictionProviders = map[string]municipal.Provider{
	"cincinnati-oh": municipal.ProviderMunicode,

	"hamilton-oh":         municipal.ProviderAmLegal,
	"middletown-oh":       municipal.ProviderAmLegal,
	"fairfield-oh":        municipal.ProviderAmLegal,
	"lebanon-oh":          municipal.ProviderAmLegal,
	"mason-oh":            municipal.ProviderAmLegal,
	"oxford-oh":           municipal.ProviderAmLegal,
	"springboro-oh":       municipal.ProviderAmLegal,
	"trenton-oh":          municipal.ProviderAmLegal,
	"blue-ash-oh":         municipal.ProviderAmLegal,
	"reading-oh":          municipal.ProviderAmLegal,
	"deer-park-oh":        municipal.ProviderAmLegal,
	"sharonville-oh":      municipal.ProviderAmLegal,
	"norwood-oh":          municipal.ProviderAmLegal,
	"montgomery-oh":       municipal.ProviderAmLegal,
	"madeira-oh":          municipal.ProviderAmLegal,
	"silverton-oh":        municipal.ProviderAmLegal,
	"wyoming-oh":          municipal.ProviderAmLegal,
	"mariemont-oh":        municipal.ProviderAmLegal,
	"indian-hill-oh":      municipal.ProviderAmLegal,
	"evendale-oh":         municipal.ProviderAmLegal,
	"glendale-oh":         municipal.ProviderAmLegal,
	"golf-manor-oh":       municipal.ProviderAmLegal,
	"amberley-village-oh": municipal.ProviderAmLegal,
	"lockland-oh":         municipal.ProviderAmLegal,
	"lincoln-heights-oh":  municipal.ProviderAmLegal,
	"woodlawn-oh":         municipal.ProviderAmLegal,
	"springdale-oh":       municipal.ProviderAmLegal,
	"forest-park-oh":      municipal.ProviderAmLegal,
	"loveland-oh":         municipal.ProviderAmLegal,
	"milford-oh":          municipal.ProviderAmLegal,
	"batavia-oh":          municipal.ProviderAmLegal,
	"monroe-oh":           municipal.ProviderAmLegal,
	"franklin-oh":         municipal.ProviderAmLegal,

	"covington-ky":        municipal.ProviderAmLegal,
	"newport-ky":          municipal.ProviderAmLegal,
	"erlanger-ky":         municipal.ProviderAmLegal,
	"fort-thomas-ky":      municipal.ProviderAmLegal,
	"independence-ky":     municipal.ProviderAmLegal,
	"florence-ky":         municipal.ProviderAmLegal,
	"fort-mitchell-ky":    municipal.ProviderAmLegal,
	"bellevue-ky":         municipal.ProviderAmLegal,
	"dayton-ky":           municipal.ProviderAmLegal,
	"southgate-ky":        municipal.ProviderAmLegal,
	"cold-spring-ky":      municipal.ProviderAmLegal,
	"highland-heights-ky": municipal.ProviderAmLegal,
	"taylor-mill-ky":      municipal.ProviderAmLegal,
	"alexandria-ky":       municipal.ProviderAmLegal,
	"union-ky":            municipal.ProviderAmLegal,
	"walton-ky":           municipal.ProviderAmLegal,
	"edgewood-ky":         municipal.ProviderAmLegal,
	"elsmere-ky":          municipal.ProviderAmLegal,
	"villa-hills-ky":      municipal.ProviderAmLegal,
	"lakeside-park-ky":    municipal.ProviderAmLegal,
	"crestview-hills-ky":  municipal.ProviderAmLegal,
}

// ScrapeOptions tune a single orchestrated sweep.
type ScrapeOptions struct {
	// PreferredProvider is tried first when set.
	PreferredProvider municipal.Provider
	// SkipFallbacks limits the sweep to the first candidate only.
	SkipFallbacks bool
}

// Orchestrator sequences provider adapters: it tries candidates in
// order and returns the first sweep that yields chapters. A sweep
// where every candidate comes up empty is a valid outcome carried in
// the result, never an error.
type Orchestrator struct {
	scrapers  map[municipal.Provider]municipal.Scraper
	providers map[string]municipal.Provider
	logger    *zap.Logger
}

// NewOrchestrator wires the given adapters under the default
// jurisdiction-to-provider mapping.
func NewOrchestrator(scrapers []municipal.Scraper, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	byProvider := make(map[municipal.Provider]municipal.Scraper, len(scrapers))
	for _, s := range scrapers {
		byProvider[s.Provider()] = s
	}
	return &Orchestrator{
		scrapers:  byProvider,
		providers: DefaultJurisdictionProviders,
		logger:    logger.Named("unified"),
	}
}

// KnownProvider returns the statically verified platform for a
// jurisdiction, or ProviderUnknown.
func (o *Orchestrator) KnownProvider(jurisdictionID string) municipal.Provider {
	if p, ok := o.providers[jurisdictionID]; ok {
		return p
	}
	return municipal.ProviderUnknown
}

// SourceURL resolves the jurisdiction's code URL on its known platform.
func (o *Orchestrator) SourceURL(jurisdictionID string) string {
	provider := o.KnownProvider(jurisdictionID)
	scraper, ok := o.scrapers[provider]
	if !ok {
		return ""
	}
	url, _ := scraper.ResolveURL(jurisdictionID)
	return url
}

// Availability reports whether the jurisdiction has a known, resolvable
// code source without issuing any fetches.
func (o *Orchestrator) Availability(jurisdictionID string) municipal.Availability {
	provider := o.KnownProvider(jurisdictionID)
	return municipal.Availability{
		HasSource: provider != municipal.ProviderUnknown,
		Provider:  provider,
		SourceURL: o.SourceURL(jurisdictionID),
	}
}

// trialOrder decides which providers to attempt and in what sequence.
func (o *Orchestrator) trialOrder(jurisdictionID string, opts ScrapeOptions) []municipal.Provider {
	if opts.PreferredProvider != "" && opts.PreferredProvider != municipal.ProviderUnknown {
		order := []municipal.Provider{opts.PreferredProvider}
		if opts.SkipFallbacks {
			return order
		}
		for _, p := range municipal.PriorityOrder() {
			if p != opts.PreferredProvider {
				order = append(order, p)
			}
		}
		return order
	}

	if known := o.KnownProvider(jurisdictionID); known != municipal.ProviderUnknown {
		order := []municipal.Provider{known}
		if opts.SkipFallbacks {
			return order
		}
		for _, p := range municipal.PriorityOrder() {
			if p != known {
				order = append(order, p)
			}
		}
		return order
	}

	return municipal.PriorityOrder()
}

// ScrapeJurisdiction tries each candidate provider until one yields
// chapters. Failed candidates are accumulated in FallbacksAttempted;
// the all-failed outcome reports ProviderUnknown with the cost of the
// attempts made.
func (o *Orchestrator) ScrapeJurisdiction(ctx context.Context, jurisdictionID string, opts ScrapeOptions) municipal.ScrapeResult {
	order := o.trialOrder(jurisdictionID, opts)
	o.logger.Info("sweep starting",
		zap.String("jurisdiction", jurisdictionID),
		zap.Any("trial_order", order),
	)

	var attempted []municipal.Provider
	totalCost := 0
	for _, provider := range order {
		scraper, ok := o.scrapers[provider]
		if !ok {
			attempted = append(attempted, provider)
			continue
		}

		result, err := scraper.ScrapeJurisdiction(ctx, jurisdictionID)
		totalCost += result.TotalCost
		if err != nil {
			o.logger.Warn("provider failed",
				zap.String("jurisdiction", jurisdictionID),
				zap.String("provider", string(provider)),
				zap.Error(err),
			)
			attempted = append(attempted, provider)
			continue
		}
		if len(result.Chapters) == 0 {
			o.logger.Info("provider returned no chapters",
				zap.String("jurisdiction", jurisdictionID),
				zap.String("provider", string(provider)),
			)
			attempted = append(attempted, provider)
			continue
		}

		result.FallbacksAttempted = attempted
		o.logger.Info("sweep succeeded",
			zap.String("jurisdiction", jurisdictionID),
			zap.String("provider", string(provider)),
			zap.Int("chapters", len(result.Chapters)),
			zap.Int("cost_units", result.TotalCost),
		)
		return result
	}

	o.logger.Warn("all providers exhausted",
		zap.String("jurisdiction", jurisdictionID),
		zap.Int("attempts", len(attempted)),
	)
	return municipal.ScrapeResult{
		JurisdictionID:     jurisdictionID,
		Provider:           municipal.ProviderUnknown,
		TotalCost:          totalCost,
		ScrapedAt:          time.Now().UTC(),
		FallbacksAttempted: attempted,
	}
}

// ScrapeTOC runs TOC discovery against the jurisdiction's known
// provider only. An unknown jurisdiction or a failed discovery yields
// an empty result rather than an error.
func (o *Orchestrator) ScrapeTOC(ctx context.Context, jurisdictionID string) municipal.TOCResult {
	provider := o.KnownProvider(jurisdictionID)
	scraper, ok := o.scrapers[provider]
	if !ok {
		return municipal.TOCResult{Provider: municipal.ProviderUnknown}
	}

	chapters, cost, err := scraper.DiscoverChapters(ctx, jurisdictionID)
	if err != nil {
		o.logger.Warn("toc discovery failed",
			zap.String("jurisdiction", jurisdictionID),
			zap.String("provider", string(provider)),
			zap.Error(err),
		)
		return municipal.TOCResult{Provider: municipal.ProviderUnknown, Cost: cost}
	}
	return municipal.TOCResult{Provider: provider, Chapters: chapters, Cost: cost}
}

// SupportedJurisdictions lists every jurisdiction with a verified
// provider mapping and its resolved source URL.
func (o *Orchestrator) SupportedJurisdictions() []municipal.Availability {
	out := make([]municipal.Availability, 0, len(o.providers))
	for id := range o.providers {
		av := o.Availability(id)
		av.JurisdictionID = id
		out = append(out, av)
	}
	return out
}
