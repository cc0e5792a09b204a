package fetch

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/metrics"
)

// Config controls the hardened fetch wrapper.
type Config struct {
	// MaxAttempts bounds retries per locator. Defaults to 3.
	MaxAttempts int
	// BackoffBase is multiplied by 2^attempt between retries.
	// Defaults to 1s.
	BackoffBase time.Duration
	// MinViableLength is the body length below which a light-tier
	// result is considered not rendered and Smart escalates to the
	// full tier. Defaults to 500.
	MinViableLength int
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MinViableLength <= 0 {
		c.MinViableLength = 500
	}
	return c
}

// Fetcher wraps a Client with retry, smart tier escalation, and
// pre-flight balance checks. It is the only fetch surface the adapters
// see.
type Fetcher struct {
	client Client
	cfg    Config
	logger *zap.Logger
}

// New builds a Fetcher around the given backend client.
func New(client Client, cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Fetcher{
		client: client,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Fetch runs one locator through the retry loop. Transient failures
// back off exponentially (2^attempt) before the next try; the final
// failure is returned as a tagged Result, never an error.
func (f *Fetcher) Fetch(ctx context.Context, url string, opts Options) Result {
	var last Result
	for attempt := 1; attempt <= f.cfg.MaxAttempts; attempt++ {
		last = f.client.Fetch(ctx, url, opts)
		if last.Success {
			metrics.ObserveFetch(string(opts.Tier), "success", last.CostUnits)
			return last
		}
		metrics.ObserveFetch(string(opts.Tier), "failure", last.CostUnits)
		f.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.String("tier", string(opts.Tier)),
			zap.Int("attempt", attempt),
			zap.String("error", last.Error),
		)
		if attempt == f.cfg.MaxAttempts {
			break
		}
		if err := f.backoff(ctx, attempt); err != nil {
			last.Error = err.Error()
			break
		}
	}
	return Result{
		Success:   false,
		CostUnits: last.CostUnits,
		Error:     fmt.Sprintf("failed after %d attempts: %s", f.cfg.MaxAttempts, last.Error),
	}
}

// Smart first attempts the light tier and escalates to the full tier
// when the returned text is too short to be a rendered document. The
// escalated result wins whenever it carries content; cost units from
// both attempts are accounted.
func (f *Fetcher) Smart(ctx context.Context, url string, opts Options) Result {
	lightOpts := opts
	lightOpts.Tier = TierLight
	light := f.Fetch(ctx, url, lightOpts)
	if light.Success && len(light.Body) >= f.cfg.MinViableLength {
		return light
	}

	f.logger.Debug("escalating to full tier",
		zap.String("url", url),
		zap.Int("light_len", len(light.Body)),
	)
	fullOpts := opts
	fullOpts.Tier = TierFull
	full := f.Fetch(ctx, url, fullOpts)
	full.CostUnits += light.CostUnits
	if full.Success && full.Body != "" {
		return full
	}
	if light.Success && light.Body != "" {
		light.CostUnits = full.CostUnits
		return light
	}
	return full
}

// CheckBalance reports whether the backend holds enough credits for a
// projected batch. An unmetered backend or a failed balance lookup both
// mean "proceed": only a confirmed shortfall should abort the batch.
func (f *Fetcher) CheckBalance(ctx context.Context, estimated int) bool {
	checker, ok := f.client.(BalanceChecker)
	if !ok {
		return true
	}
	remaining, err := checker.Balance(ctx)
	if err != nil {
		f.logger.Warn("balance check failed", zap.Error(err))
		return true
	}
	if remaining < 0 {
		return true
	}
	if remaining < estimated {
		f.logger.Error("insufficient credit balance",
			zap.Int("remaining", remaining),
			zap.Int("estimated", estimated),
		)
		return false
	}
	return true
}

func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	delay := time.Duration(math.Pow(2, float64(attempt))) * f.cfg.BackoffBase
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch backoff canceled: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
