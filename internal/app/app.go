// Package app initializes and holds long-lived application services, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	archgcs "github.com/parlwatch/parliament-monitor/internal/archive/gcs"
	archlocal "github.com/parlwatch/parliament-monitor/internal/archive/local"
	archnoop "github.com/parlwatch/parliament-monitor/internal/archive/noop"
	"github.com/parlwatch/parliament-monitor/internal/classify"
	"github.com/parlwatch/parliament-monitor/internal/clock/system"
	"github.com/parlwatch/parliament-monitor/internal/config"
	"github.com/parlwatch/parliament-monitor/internal/content"
	"github.com/parlwatch/parliament-monitor/internal/extract"
	collyfetcher "github.com/parlwatch/parliament-monitor/internal/fetcher/colly"
	"github.com/parlwatch/parliament-monitor/internal/fingerprint"
	"github.com/parlwatch/parliament-monitor/internal/metrics"
	"github.com/parlwatch/parliament-monitor/internal/monitor"
	notifynoop "github.com/parlwatch/parliament-monitor/internal/notify/noop"
	"github.com/parlwatch/parliament-monitor/internal/notify/telegram"
	"github.com/parlwatch/parliament-monitor/internal/pipeline"
	pubmemory "github.com/parlwatch/parliament-monitor/internal/publisher/memory"
	"github.com/parlwatch/parliament-monitor/internal/publisher/pubsub"
	"github.com/parlwatch/parliament-monitor/internal/scheduler"
	storememory "github.com/parlwatch/parliament-monitor/internal/store/memory"
	"github.com/parlwatch/parliament-monitor/internal/store/postgres"
	"github.com/parlwatch/parliament-monitor/internal/store/sqlite"
)

// App holds all the shared, long-lived services for the application.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     monitor.DocumentStore
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler
	Sources   []monitor.Source
}

// NewApp builds every service from configuration, failing fast when a
// required provider cannot be initialized.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	metrics.Init()

	sources, skipped := cfg.SourceRegistry()
	for _, name := range skipped {
		logger.Warn("skipping source with unknown layout", zap.String("source", name))
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no usable sources configured")
	}

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clk := system.New()

	notifier, err := newNotifier(cfg, clk, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	publisher, err := newPublisher(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	archive, err := newArchive(ctx, cfg)
	if err != nil {
		store.Close()
		return nil, err
	}

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Scraping.UserAgent,
		Timeout:       cfg.Timeout(),
		RetryAttempts: cfg.Scraping.RetryAttempts,
		RetryDelay:    cfg.RetryDelay(),
		IgnoreRobots:  cfg.Scraping.IgnoreRobots,
	}, logger)

	loader := content.New(fetcher, cfg.Classification.FetchHTMLBody, logger)
	classifier := classify.New(
		cfg.Keywords,
		cfg.Alerts.CriticalKeywords,
		cfg.Alerts.HighPrioritySources,
		loader,
		logger,
	)

	pipe := pipeline.New(pipeline.Deps{
		Sources:       sources,
		Fetcher:       fetcher,
		Extractor:     extract.New(logger),
		Fingerprinter: fingerprint.New(),
		Classifier:    classifier,
		Store:         store,
		Notifier:      notifier,
		Publisher:     publisher,
		Archive:       archive,
		Clock:         clk,
		Logger:        logger,
		AlertTopic:    cfg.Publisher.Topic,
		ArchivePrefix: cfg.Archive.Prefix,
	})

	sched := scheduler.New(pipe, sources, kindFrequencies(cfg), cfg.FullCycleInterval(), logger)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Pipeline:  pipe,
		Scheduler: sched,
		Sources:   sources,
	}, nil
}

// Close gracefully shuts down the app's services.
func (a *App) Close() {
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("error closing store", zap.Error(err))
	}
	_ = a.Logger.Sync()
}

func newStore(ctx context.Context, cfg config.Config) (monitor.DocumentStore, error) {
	switch cfg.Database.Provider {
	case "sqlite":
		s, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("initialize sqlite store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := postgres.New(ctx, postgres.Config{
			DSN:      cfg.Database.DSN,
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize postgres store: %w", err)
		}
		return s, nil
	case "memory":
		return storememory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database provider: %s", cfg.Database.Provider)
	}
}

func newNotifier(cfg config.Config, clk monitor.Clock, logger *zap.Logger) (monitor.Notifier, error) {
	if !cfg.Notifications.Enabled {
		return notifynoop.New(logger), nil
	}
	switch cfg.Notifications.Transport {
	case "telegram":
		n, err := telegram.New(cfg.Notifications.Telegram.Token, cfg.Notifications.Telegram.ChatID, clk, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize telegram notifier: %w", err)
		}
		return n, nil
	case "noop":
		return notifynoop.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown notification transport: %s", cfg.Notifications.Transport)
	}
}

func newPublisher(ctx context.Context, cfg config.Config) (monitor.Publisher, error) {
	switch cfg.Publisher.Provider {
	case "pubsub":
		p, err := pubsub.New(ctx, cfg.Publisher.ProjectID, cfg.Publisher.Topic)
		if err != nil {
			return nil, fmt.Errorf("initialize pubsub publisher: %w", err)
		}
		return p, nil
	case "memory":
		return pubmemory.New(), nil
	default:
		return nil, fmt.Errorf("unknown publisher provider: %s", cfg.Publisher.Provider)
	}
}

func newArchive(ctx context.Context, cfg config.Config) (monitor.BlobStore, error) {
	switch cfg.Archive.Provider {
	case "local":
		a, err := archlocal.New(cfg.Archive.Dir)
		if err != nil {
			return nil, fmt.Errorf("initialize local archive: %w", err)
		}
		return a, nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs client: %w", err)
		}
		a, err := archgcs.New(client, cfg.Archive.Bucket)
		if err != nil {
			return nil, fmt.Errorf("initialize gcs archive: %w", err)
		}
		return a, nil
	case "noop", "":
		return archnoop.New(), nil
	default:
		return nil, fmt.Errorf("unknown archive provider: %s", cfg.Archive.Provider)
	}
}

// kindFrequencies maps source kinds onto the configured interval groups.
func kindFrequencies(cfg config.Config) scheduler.Frequencies {
	return func(kind monitor.SourceKind) time.Duration {
		switch kind {
		case monitor.KindTabledPapers:
			return cfg.Frequency("tabled_papers")
		case monitor.KindBills:
			return cfg.Frequency("bills")
		case monitor.KindCommittees:
			return cfg.Frequency("committees")
		}
		return 0
	}
}
