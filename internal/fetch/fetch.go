// Package fetch defines the document retrieval contract: a two-tier
// fetch against a headless-rendering backend, with retry, smart
// escalation, and cost accounting layered on top.
package fetch

import (
	"context"
	"time"
)

// Tier selects how much work the backend performs for a request.
type Tier string

const (
	// TierLight fetches without script execution. Cheap, and sufficient
	// for statically rendered pages.
	TierLight Tier = "light"
	// TierFull executes scripts and waits for the page to render.
	// Required for single-page-app code libraries.
	TierFull Tier = "full"
)

// Options tune a single fetch request.
type Options struct {
	Tier Tier
	// Wait is the render wait budget applied on the full tier.
	Wait time.Duration
	// Country routes the request through a proxy in the given country.
	Country      string
	PremiumProxy bool
}

// Result is the outcome of a fetch. Failures are data, not panics: a
// Result with Success=false carries the last underlying error message
// and callers treat it as a per-locator, non-fatal event.
type Result struct {
	Success    bool
	StatusCode int
	Body       string
	CostUnits  int
	Error      string
}

// Client performs one fetch attempt against a rendering backend.
// Implementations hold no session state across calls.
type Client interface {
	Fetch(ctx context.Context, url string, opts Options) Result
}

// BalanceChecker reports the remaining credit balance of a metered
// backend. Backends without metering return a negative value, meaning
// "unlimited".
type BalanceChecker interface {
	Balance(ctx context.Context) (int, error)
}
