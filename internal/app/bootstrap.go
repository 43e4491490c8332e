// internal/app/bootstrap.go
package app

import (
	"context"
	"fmt"
	"time"

	"analytics-assistant/internal/api"
	"analytics-assistant/internal/assistant"
	"analytics-assistant/internal/budget"
	"analytics-assistant/internal/common/aws"
	"analytics-assistant/internal/common/config"
	"analytics-assistant/internal/common/database"
	"analytics-assistant/internal/common/logger"
	"analytics-assistant/internal/common/observability"
	"analytics-assistant/internal/llm"
	"analytics-assistant/internal/models"
	"analytics-assistant/internal/planning"
	"analytics-assistant/internal/routing"
	"analytics-assistant/internal/sources"
	"analytics-assistant/internal/sources/cache"
	"analytics-assistant/internal/sources/historical"
	"analytics-assistant/internal/sources/historical/queries"
	"analytics-assistant/internal/sources/live"
	"analytics-assistant/internal/sources/snapshot"
)

// App holds every component built from one Config. Backends that are not
// configured stay nil; their sources then fail as BackendUnavailable and the
// pipeline falls back.
type App struct {
	Config    *config.Config
	Postgres  *database.PostgresClient
	ES        *database.ElasticsearchClient
	Redis     *database.RedisClient
	Provider  llm.Provider
	Router    *routing.Router
	Modes     *planning.ModeDetector
	Planner   *planning.Planner
	Fetchers  *sources.Registry
	Estimator *budget.Estimator
	Invoker   *llm.Invoker
	Service   *assistant.Service

	closers []func() error
}

// Options swap collaborators, mainly for tests and the CLI.
type Options struct {
	Provider llm.Provider
	Metrics  *observability.Observability
	Notifier assistant.Notifier
}

// Build connects the configured backends and wires the pipeline.
func Build(ctx context.Context, cfg *config.Config, opts Options, log logger.Logger) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Database.Postgres.Host != "" {
		pg, err := database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		a.Postgres = pg
		a.closers = append(a.closers, pg.Close)
	}
	if cfg.Database.Elasticsearch.GetURL() != "" {
		es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.ES = es
	}
	if cfg.Database.Redis.Address != "" {
		a.Redis = database.NewRedis(cfg.Database.Redis)
		a.closers = append(a.closers, a.Redis.Close)
	}

	a.Estimator = budget.NewEstimator(cfg.Budget.TokenDivisor)
	pricing := llm.PricingFromConfig(cfg.Models)

	a.Provider = opts.Provider
	if a.Provider == nil {
		a.Provider = llm.NewChatProvider(&llm.ProviderConfig{
			BaseURL:    cfg.APIs.ModelProvider.BaseURL,
			APIKey:     cfg.APIs.ModelProvider.APIKey,
			Timeout:    config.GetDuration(cfg.APIs.ModelProvider.Timeout),
			MaxRetries: cfg.APIs.ModelProvider.MaxRetries,
			AppName:    cfg.App.Name,
		}, log)
	}

	a.Router = routing.NewRouter(&routing.Config{
		Model:        cfg.Routing.RouterModel,
		Timeout:      config.GetDuration(cfg.Routing.RouterTimeoutMs),
		MaxTokens:    cfg.Routing.RouterMaxTokens,
		Temperature:  cfg.Routing.RouterTemperature,
		SnapshotTopN: cfg.Routing.SnapshotTopN,
	}, a.Provider, pricing, log)

	a.Modes = planning.NewModeDetector(cfg.Mode)

	var resolver planning.AccessResolver = planning.StaticResolver{}
	if a.Postgres != nil {
		resolver = planning.NewPostgresResolver(a.Postgres.DB, cfg.Mode.MaxLimit)
	}
	a.Planner = planning.NewPlanner(planning.PlannerConfig{
		MaxLimit:      cfg.Mode.MaxLimit,
		LiveResultCap: cfg.APIs.Live.ResultCap,
	}, resolver, log)

	a.Fetchers = a.buildFetchers(cfg, log)
	a.Invoker = llm.NewInvoker(a.Provider, pricing, invokerConfig(cfg), log)

	var outages *assistant.OutageTracker
	if a.Redis != nil {
		notifier := opts.Notifier
		if notifier == nil && cfg.Alerts.Enabled {
			sns, err := aws.NewSNSClient(ctx, cfg.Alerts.Region, cfg.Alerts.TopicARN)
			if err != nil {
				a.Close()
				return nil, fmt.Errorf("alerts: %w", err)
			}
			notifier = sns
		}
		outages = assistant.NewOutageTracker(a.Redis.Client, notifier, assistant.OutageConfig{
			Threshold: cfg.Alerts.OutageThreshold,
			Window:    config.GetDuration(cfg.Alerts.WindowMs),
		}, log)
	}

	a.Service = assistant.NewService(&assistant.Config{
		MaxSnapshotList:     cfg.Routing.SnapshotMaxList,
		MaxSnapshotPoints:   cfg.Routing.SnapshotMaxPoints,
		PromptReserveTokens: cfg.Mode.PromptReserveTokens,
		DefaultModels:       cfg.Models.IDs(),
	}, assistant.Dependencies{
		Router:    a.Router,
		Modes:     a.Modes,
		Planner:   a.Planner,
		Fetchers:  a.Fetchers,
		Snapshots: snapshot.NewReader(a.Estimator),
		Estimator: a.Estimator,
		Invoker:   a.Invoker,
		Outages:   outages,
		Metrics:   opts.Metrics,
	}, log)

	return a, nil
}

func (a *App) buildFetchers(cfg *config.Config, log logger.Logger) *sources.Registry {
	backends := &queries.Backends{EngageIndex: cfg.Database.Elasticsearch.EngageIndex}
	if a.Postgres != nil {
		backends.DB = a.Postgres.DB
	}
	if a.ES != nil {
		backends.ES = a.ES.Client
	}

	var hist sources.Fetcher = historical.NewExecutor(backends, a.Estimator, log)
	if cfg.Cache.Enabled && a.Redis != nil {
		hist = cache.NewCachedFetcher(hist, a.Redis.Client, cache.Config{
			TTL:       config.GetDuration(cfg.Cache.TTLMs),
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, log)
	}

	liveClient := live.NewClient(live.Config{
		BaseURL:       cfg.APIs.Live.BaseURL,
		APIKey:        cfg.APIs.Live.APIKey,
		Timeout:       config.GetDuration(cfg.APIs.Live.Timeout),
		RatePerSecond: cfg.APIs.Live.RatePerSecond,
		Burst:         cfg.APIs.Live.Burst,
		ResultCap:     cfg.APIs.Live.ResultCap,
	}, a.Estimator, log)

	return sources.NewRegistry(log).
		Register(models.SourceHistorical, hist).
		Register(models.SourceLive, liveClient)
}

func invokerConfig(cfg *config.Config) llm.InvokerConfig {
	ic := llm.InvokerConfig{
		MaxTokens:      cfg.Models.MaxTokens,
		Temperature:    cfg.Models.Temperature,
		AttemptTimeout: config.GetDuration(cfg.APIs.ModelProvider.Timeout),
		ModelTimeouts:  map[string]time.Duration{},
		NoReprompt:     map[string]bool{},
	}
	for _, m := range cfg.Models.Ranked {
		if m.TimeoutMs > 0 {
			ic.ModelTimeouts[m.ID] = config.GetDuration(m.TimeoutMs)
		}
		if m.DisableReprompting {
			ic.NoReprompt[m.ID] = true
		}
	}
	return ic
}

// ReadinessChecks returns one check per configured backend.
func (a *App) ReadinessChecks() map[string]api.ReadinessCheck {
	checks := map[string]api.ReadinessCheck{}
	if a.Postgres != nil {
		checks["postgres"] = a.Postgres.Ping
	}
	if a.ES != nil {
		checks["elasticsearch"] = a.ES.Ping
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Ping
	}
	return checks
}

// Close releases backends in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
