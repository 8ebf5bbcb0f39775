package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/latvis980/adu/internal/config"
	"github.com/latvis980/adu/internal/infrastructure/browser"
	"github.com/latvis980/adu/internal/infrastructure/enrich"
	"github.com/latvis980/adu/internal/infrastructure/llm"
	"github.com/latvis980/adu/internal/infrastructure/metrics"
	"github.com/latvis980/adu/internal/infrastructure/parser"
	"github.com/latvis980/adu/internal/infrastructure/scheduler"
	"github.com/latvis980/adu/internal/infrastructure/storage"
	"github.com/latvis980/adu/internal/infrastructure/telegram"
	"github.com/latvis980/adu/internal/logging"
	"github.com/latvis980/adu/internal/ports"
	"github.com/latvis980/adu/internal/scanner"
	"github.com/latvis980/adu/internal/sources"
	"github.com/latvis980/adu/internal/usecase"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Application wires configuration into the discovery pipeline and owns the
// process lifecycle: run once or on a schedule, then release the tracker.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	tracker  *storage.Tracker
	pipeline *usecase.Pipeline
}

// New assembles the full object graph from configuration. The AI-dependent
// pieces degrade gracefully: without an API key the pattern strategy skips
// triage and vision sources fail their runs individually.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	registry := sources.NewRegistry(descriptorsFrom(cfg.Sources))

	tracker := storage.NewTracker(cfg.Database.DSN, cfg.Tracker.TestMode, logging.Component(baseLogger, "tracker"))

	var model ports.ChatModel
	if cfg.OpenAI.APIKey != "" {
		model = llm.NewClient(cfg.OpenAI)
	}

	strategies := scanner.NewRegistry()
	strategies.Register(parser.NewFeedStrategy(logging.Component(baseLogger, "strategy.feed")))
	strategies.Register(parser.NewPatternStrategy(nil, model, logging.Component(baseLogger, "strategy.pattern")))
	strategies.Register(parser.NewVisionStrategy(
		browser.NewScreenshotter(browserUserAgent),
		llm.NewClient(cfg.OpenAI),
		nil,
		logging.Component(baseLogger, "strategy.vision"),
	))

	assignments := make(map[string]string, len(cfg.Sources))
	for _, src := range cfg.Sources {
		assignments[src.ID] = src.Strategy
	}
	bound, err := strategies.Bind(assignments)
	if err != nil {
		return nil, fmt.Errorf("bind strategies: %w", err)
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram); tg.Configured() {
		notifier = tg
	}

	var enricher ports.Enricher
	if cfg.Enrichment.Endpoint != "" {
		enricher = enrich.NewClient(cfg.Enrichment)
	}

	pipeline := &usecase.Pipeline{
		Tracker:    tracker,
		Strategies: bound,
		Sources:    cfg.Sources,
		Registry:   registry,
		Enricher:   enricher,
		Notifier:   notifier,
		Metrics:    metrics.NewLogSink(logging.Component(baseLogger, "metrics")),
		Logger:     logging.Component(baseLogger, "pipeline"),
	}

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		tracker:  tracker,
		pipeline: pipeline,
	}, nil
}

// Run executes the pipeline once, or on the configured interval until the
// context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		if err := a.tracker.Close(); err != nil {
			a.logger.Warn("tracker close", "error", err)
		}
	}()

	if a.cfg.Scheduler.Interval <= 0 {
		return a.pipeline.Run(ctx)
	}

	sched := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
	if err := sched.Start(ctx, func(t time.Time) {
		a.logger.Info("discovery pass starting", "at", t)
		if err := a.pipeline.Run(ctx); err != nil {
			a.logger.Error("discovery pass failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	<-ctx.Done()
	return sched.Stop(context.Background())
}

func descriptorsFrom(srcs []config.SourceConfig) []sources.Descriptor {
	descriptors := make([]sources.Descriptor, 0, len(srcs))
	for _, src := range srcs {
		descriptors = append(descriptors, sources.Descriptor{
			ID:            src.ID,
			Name:          src.Name,
			Domains:       src.Domains,
			FeedURL:       src.FeedURL,
			ScrapeTimeout: src.ScrapeTimeout,
		})
	}
	return descriptors
}
