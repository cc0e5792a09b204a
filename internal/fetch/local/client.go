// Package local implements fetch.Client without an external rendering
// service: the light tier uses a plain Colly collector and the full
// tier drives a headless browser via chromedp. It exists so sweeps can
// run in development and CI without burning paid credits.
package local

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"

	"github.com/civicdata/codecrawler/internal/fetch"
)

// Config controls both tiers of the local client.
type Config struct {
	UserAgent         string
	LightTimeout      time.Duration
	NavigationTimeout time.Duration
}

// Client is a caller-owned resource: acquire one per process or per
// sweep and release it with Close on every exit path. It is never a
// package-level singleton.
type Client struct {
	cfg         Config
	collector   *colly.Collector
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New builds a local client and boots the browser allocator.
func New(cfg Config) *Client {
	if cfg.LightTimeout <= 0 {
		cfg.LightTimeout = 15 * time.Second
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = false
	c.SetRequestTimeout(cfg.LightTimeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Client{
		cfg:         cfg,
		collector:   c,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}
}

// Close releases the browser allocator.
func (c *Client) Close() {
	c.allocCancel()
}

// Fetch dispatches to the light or full tier. Local fetches carry zero
// cost units.
func (c *Client) Fetch(ctx context.Context, url string, opts fetch.Options) fetch.Result {
	if opts.Tier == fetch.TierFull {
		return c.fetchRendered(ctx, url, opts.Wait)
	}
	return c.fetchPlain(ctx, url)
}

// Balance marks the local backend as unmetered.
func (c *Client) Balance(_ context.Context) (int, error) {
	return -1, nil
}

func (c *Client) fetchPlain(ctx context.Context, url string) fetch.Result {
	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector := c.collector.Clone()
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fetch.Result{Error: fmt.Sprintf("light fetch canceled: %v", ctx.Err())}
	case err := <-done:
		if err != nil {
			return fetch.Result{StatusCode: statusCode, Error: fmt.Sprintf("light fetch: %v", err)}
		}
		if fetchErr != nil {
			return fetch.Result{StatusCode: statusCode, Error: fmt.Sprintf("light fetch: %v", fetchErr)}
		}
	}
	return fetch.Result{
		Success:    true,
		StatusCode: statusCode,
		Body:       string(body),
	}
}

func (c *Client) fetchRendered(ctx context.Context, url string, wait time.Duration) fetch.Result {
	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.cfg.NavigationTimeout)
	defer cancel()

	// honor caller cancellation on top of the navigation budget
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-taskCtx.Done():
		}
	}()

	if wait <= 0 {
		wait = 3 * time.Second
	}

	var html string
	actions := []chromedp.Action{
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if c.cfg.UserAgent != "" {
		actions = append([]chromedp.Action{
			chromedp.ActionFunc(func(actionCtx context.Context) error {
				if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(actionCtx); err != nil {
					return fmt.Errorf("set user-agent: %w", err)
				}
				return nil
			}),
		}, actions...)
	}

	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return fetch.Result{Error: fmt.Sprintf("render fetch: %v", err)}
	}
	if strings.TrimSpace(html) == "" {
		return fetch.Result{Error: "render fetch: empty document"}
	}
	return fetch.Result{
		Success:    true,
		StatusCode: http.StatusOK,
		Body:       html,
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
