// Package renderapi implements fetch.Client against a hosted
// headless-rendering HTTP service. It is the sole caller of that
// service.
package renderapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/fetch"
)

// Config captures the render service connection parameters.
type Config struct {
	// Endpoint is the fetch entry point, e.g. https://render.example.com/api/v1/.
	Endpoint string
	// UsageEndpoint reports remaining credit balance.
	UsageEndpoint string
	APIKey        string
	// CostHeader names the response header carrying per-request cost
	// units. Defaults to "Spb-Cost".
	CostHeader string
	// DefaultCost is assumed when the service omits the cost header.
	DefaultCost int
	// Timeout is the outer HTTP budget per request, covering the
	// backend's own render wait.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.CostHeader == "" {
		c.CostHeader = "Spb-Cost"
	}
	if c.DefaultCost <= 0 {
		c.DefaultCost = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	return c
}

// Client calls the external rendering service. It holds no cookie or
// session state across calls.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a Client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("render endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("render api key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}, nil
}

// Fetch performs one request at the given tier. Failures of any kind
// come back as a tagged Result.
func (c *Client) Fetch(ctx context.Context, target string, opts fetch.Options) fetch.Result {
	reqURL, err := c.buildURL(target, opts)
	if err != nil {
		return fetch.Result{Error: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fetch.Result{Error: fmt.Sprintf("build request: %v", err)}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fetch.Result{Error: fmt.Sprintf("render request: %v", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fetch.Result{StatusCode: resp.StatusCode, Error: fmt.Sprintf("read body: %v", err)}
	}

	cost := c.cfg.DefaultCost
	if raw := resp.Header.Get(c.cfg.CostHeader); raw != "" {
		if parsed, perr := strconv.Atoi(raw); perr == nil {
			cost = parsed
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fetch.Result{
			StatusCode: resp.StatusCode,
			CostUnits:  cost,
			Error:      fmt.Sprintf("render service returned %d: %s", resp.StatusCode, truncate(string(body), 200)),
		}
	}

	return fetch.Result{
		Success:    true,
		StatusCode: resp.StatusCode,
		Body:       string(body),
		CostUnits:  cost,
	}
}

// Balance queries the usage endpoint for remaining credits. A missing
// usage endpoint means the backend is treated as unmetered.
func (c *Client) Balance(ctx context.Context) (int, error) {
	if c.cfg.UsageEndpoint == "" {
		return -1, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.UsageEndpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build usage request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("usage request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("usage endpoint returned %d", resp.StatusCode)
	}

	var usage struct {
		CreditsRemaining int `json:"credits_remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&usage); err != nil {
		return 0, fmt.Errorf("decode usage response: %w", err)
	}
	return usage.CreditsRemaining, nil
}

func (c *Client) buildURL(target string, opts fetch.Options) (string, error) {
	base, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return "", fmt.Errorf("parse render endpoint: %w", err)
	}
	q := base.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("url", target)
	q.Set("render_js", strconv.FormatBool(opts.Tier == fetch.TierFull))
	if opts.Tier == fetch.TierFull && opts.Wait > 0 {
		q.Set("wait", strconv.FormatInt(opts.Wait.Milliseconds(), 10))
	}
	country := opts.Country
	if country == "" {
		country = "us"
	}
	q.Set("country_code", country)
	if opts.PremiumProxy {
		q.Set("premium_proxy", "true")
	}
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n]) + "..."
}
