// Package main wires together the codecrawler service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/civicdata/codecrawler/internal/api"
	"github.com/civicdata/codecrawler/internal/archive"
	archivegcs "github.com/civicdata/codecrawler/internal/archive/gcs"
	archivelocal "github.com/civicdata/codecrawler/internal/archive/local"
	archivememory "github.com/civicdata/codecrawler/internal/archive/memory"
	"github.com/civicdata/codecrawler/internal/clock/system"
	"github.com/civicdata/codecrawler/internal/config"
	"github.com/civicdata/codecrawler/internal/extraction"
	"github.com/civicdata/codecrawler/internal/extraction/llm"
	"github.com/civicdata/codecrawler/internal/fetch"
	fetchlocal "github.com/civicdata/codecrawler/internal/fetch/local"
	"github.com/civicdata/codecrawler/internal/fetch/renderapi"
	"github.com/civicdata/codecrawler/internal/gis"
	"github.com/civicdata/codecrawler/internal/id/uuid"
	"github.com/civicdata/codecrawler/internal/logging"
	"github.com/civicdata/codecrawler/internal/municipal"
	"github.com/civicdata/codecrawler/internal/notify"
	notifypubsub "github.com/civicdata/codecrawler/internal/notify/pubsub"
	"github.com/civicdata/codecrawler/internal/pipeline"
	"github.com/civicdata/codecrawler/internal/policy/ratelimit"
	"github.com/civicdata/codecrawler/internal/sources"
	"github.com/civicdata/codecrawler/internal/store"
	storememory "github.com/civicdata/codecrawler/internal/store/memory"
	storepostgres "github.com/civicdata/codecrawler/internal/store/postgres"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("service failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	st, closeStore, err := buildStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}
	defer closeStore()

	fetcher, closeFetch, err := buildFetcher(cfg, logger)
	if err != nil {
		return fmt.Errorf("build fetcher: %w", err)
	}
	defer closeFetch()

	if cfg.Scrape.MinCostBalance > 0 && !fetcher.CheckBalance(ctx, cfg.Scrape.MinCostBalance) {
		logger.Warn("fetch balance below configured minimum",
			zap.Int("min_cost_balance", cfg.Scrape.MinCostBalance))
	}

	pacer := ratelimit.NewFixedDelay(cfg.ScrapeDelay())
	tuning := []sources.Option{sources.WithChapterCap(cfg.Scrape.MaxChapters)}
	if cfg.Scrape.RenderWaitMsMax > 0 {
		tuning = append(tuning,
			sources.WithRenderWait(time.Duration(cfg.Scrape.RenderWaitMsMax)*time.Millisecond))
	}
	orchestrator := sources.NewOrchestrator([]municipal.Scraper{
		sources.NewMunicode(fetcher, pacer, logger, tuning...),
		sources.NewAmlegal(fetcher, pacer, logger, tuning...),
		sources.NewEcode360(fetcher, pacer, logger, tuning...),
		sources.NewSterling(fetcher, pacer, logger, tuning...),
	}, logger)

	llmClient, err := llm.New(llm.Config{
		Endpoint: cfg.Extraction.Endpoint,
		Model:    cfg.Extraction.Model,
		APIKey:   cfg.Extraction.APIKey,
		Timeout:  cfg.ExtractionTimeout(),
	})
	if err != nil {
		return fmt.Errorf("build llm client: %w", err)
	}
	extractor := extraction.NewAIExtractor(llmClient, logger)

	archiver, closeArchive, err := buildArchiver(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build archiver: %w", err)
	}
	defer closeArchive()

	notifier, closeNotify, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("build notifier: %w", err)
	}
	defer closeNotify()

	deps := pipeline.Deps{
		Store:     st,
		Scraper:   orchestrator,
		Extractor: extractor,
		GIS:       gis.New(logger),
		Notifier:  notifier,
		Clock:     system.New(),
		IDs:       uuid.New(),
		Logger:    logger,
	}
	if archiver != nil {
		deps.Archiver = archiver
	}
	coordinator, err := pipeline.New(deps)
	if err != nil {
		return fmt.Errorf("build coordinator: %w", err)
	}

	apiServer := api.NewServer(st, coordinator, orchestrator, cfg, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}

// buildStore selects Postgres when a DSN is configured and falls back
// to the in-memory store for local development.
func buildStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (store.Store, func(), error) {
	if cfg.DB.DSN == "" {
		logger.Warn("no database configured, using in-memory store")
		return storememory.New(), func() {}, nil
	}
	pg, err := storepostgres.New(ctx, storepostgres.Config{
		DSN:             cfg.DB.DSN,
		MaxConns:        int32(cfg.DB.MaxConns),
		MinConns:        int32(cfg.DB.MinConns),
		MaxConnLifetime: time.Duration(cfg.DB.ConnLifetimeMin) * time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	return pg, pg.Close, nil
}

// buildFetcher prefers the metered render API and falls back to the
// local colly/chromedp client when no API key is configured.
func buildFetcher(cfg config.Config, logger *zap.Logger) (*fetch.Fetcher, func(), error) {
	fetchCfg := fetch.Config{
		MaxAttempts:     cfg.Fetch.MaxRetries,
		BackoffBase:     cfg.FetchBackoff(),
		MinViableLength: cfg.Fetch.MinViableLength,
	}
	if cfg.Fetch.RenderAPIKey != "" {
		client, err := renderapi.New(renderapi.Config{
			Endpoint:      cfg.Fetch.RenderEndpoint,
			UsageEndpoint: cfg.Fetch.RenderUsageEndpoint,
			APIKey:        cfg.Fetch.RenderAPIKey,
			Timeout:       cfg.FetchTimeout(),
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return fetch.New(client, fetchCfg, logger), func() {}, nil
	}
	logger.Warn("no render API key configured, using local fetch client")
	client := fetchlocal.New(fetchlocal.Config{
		UserAgent:         cfg.Fetch.UserAgent,
		NavigationTimeout: cfg.FetchTimeout(),
	})
	return fetch.New(client, fetchCfg, logger), client.Close, nil
}

func buildArchiver(ctx context.Context, cfg config.Config) (*archive.Archiver, func(), error) {
	noop := func() {}
	switch cfg.Archive.Backend {
	case "":
		return nil, noop, nil
	case "memory":
		arch, err := archive.New(archivememory.NewBlobStore())
		return arch, noop, err
	case "local":
		blobs, err := archivelocal.New(archivelocal.Config{BaseDir: cfg.Archive.LocalDir})
		if err != nil {
			return nil, nil, err
		}
		arch, err := archive.New(blobs)
		return arch, noop, err
	case "gcs":
		client, err := gcpstorage.NewClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		blobs, err := archivegcs.New(client, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		arch, err := archive.New(blobs)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return arch, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}
}

// buildNotifier is a no-op emitter unless a Pub/Sub project is
// configured.
func buildNotifier(ctx context.Context, cfg config.Config, logger *zap.Logger) (*notify.Notifier, func(), error) {
	if cfg.PubSub.ProjectID == "" {
		return notify.New(nil, cfg.PubSub.TopicName, logger), func() {}, nil
	}
	client, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	pub, err := notifypubsub.New(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return notify.New(pub, cfg.PubSub.TopicName, logger), func() { _ = client.Close() }, nil
}
