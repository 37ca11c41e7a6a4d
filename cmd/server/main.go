package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-planner/internal/ai"
	"github.com/p-n-ai/pai-planner/internal/api"
	"github.com/p-n-ai/pai-planner/internal/assessment"
	"github.com/p-n-ai/pai-planner/internal/audit"
	"github.com/p-n-ai/pai-planner/internal/catalog"
	"github.com/p-n-ai/pai-planner/internal/course"
	"github.com/p-n-ai/pai-planner/internal/guidance"
	"github.com/p-n-ai/pai-planner/internal/insight"
	"github.com/p-n-ai/pai-planner/internal/plan"
	"github.com/p-n-ai/pai-planner/internal/platform/cache"
	"github.com/p-n-ai/pai-planner/internal/platform/config"
	"github.com/p-n-ai/pai-planner/internal/platform/database"
	"github.com/p-n-ai/pai-planner/internal/platform/metrics"
	"github.com/p-n-ai/pai-planner/internal/progress"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(os.Stdout, cfg.Log))
	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer st.close()

	loader, err := catalog.NewLoader(cfg.Planner.CatalogPath)
	if err != nil {
		slog.Error("failed to load catalog", "path", cfg.Planner.CatalogPath, "error", err)
		os.Exit(1)
	}

	adapter, err := newAdapter(cfg, loader)
	if err != nil {
		slog.Error("failed to configure generator", "error", err)
		os.Exit(1)
	}
	if !cfg.HasAIProvider() {
		slog.Warn("no networked AI provider configured, plans come from the catalog or fallback builder")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newServer(cfg, st, adapter, loader).Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "catalog_templates", len(loader.Templates()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// stores groups the persistence layer.
type stores struct {
	courses   course.Store
	plans     plan.Store
	progress  progress.Store
	documents insight.Store
	events    audit.Logger
	cache     *cache.Cache
	checks    map[string]api.HealthChecker
	closers   []func()
}

func (s *stores) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func memoryStores() *stores {
	return &stores{
		courses:   course.NewMemoryStore(),
		plans:     plan.NewMemoryStore(),
		progress:  progress.NewMemoryStore(),
		documents: insight.NewMemoryStore(),
		events:    audit.NewMemory(),
		checks:    map[string]api.HealthChecker{},
	}
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	st := memoryStores()

	if !cfg.Database.Enabled {
		slog.Warn("database disabled, using in-memory stores")
	} else {
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return nil, err
		}
		st.closers = append(st.closers, db.Close)
		st.checks["database"] = db

		if cfg.Database.Migrate {
			if err := db.Migrate(ctx); err != nil {
				st.close()
				return nil, err
			}
		}

		if st.courses, err = course.NewPostgresStore(db.Pool); err != nil {
			st.close()
			return nil, err
		}
		if st.plans, err = plan.NewPostgresStore(db.Pool); err != nil {
			st.close()
			return nil, err
		}
		if st.progress, err = progress.NewPostgresStore(db.Pool); err != nil {
			st.close()
			return nil, err
		}
		if st.documents, err = insight.NewPostgresStore(db.Pool); err != nil {
			st.close()
			return nil, err
		}
		st.events = audit.NewPostgres(db.Pool)
	}

	if cfg.Cache.Enabled {
		c, err := cache.New(ctx, cfg.Cache.URL, cfg.Cache.TTL)
		if err != nil {
			st.close()
			return nil, err
		}
		st.cache = c
		st.closers = append(st.closers, func() {
			if err := c.Close(); err != nil {
				slog.Warn("cache close failed", "error", err)
			}
		})
		st.checks["cache"] = c
	}
	return st, nil
}

// newAdapter registers the configured provider for each backend slot.
func newAdapter(cfg *config.Config, loader *catalog.Loader) (*ai.Adapter, error) {
	adapter := ai.NewAdapter(ai.WithTimeout(cfg.AI.Timeout))
	slots := []struct {
		backend ai.Backend
		name    string
	}{
		{ai.BackendPrimary, cfg.AI.Primary},
		{ai.BackendSecondary, cfg.AI.Secondary},
		{ai.BackendTertiary, cfg.AI.Tertiary},
	}
	for _, s := range slots {
		p, err := newProvider(s.name, cfg.AI, loader)
		if err != nil {
			return nil, fmt.Errorf("%s backend: %w", s.backend, err)
		}
		if p == nil {
			slog.Info("backend slot not configured", "backend", s.backend.String(), "provider", s.name)
			continue
		}
		adapter.Register(s.backend, s.name, p)
		if cfg.AI.RatePerMinute > 0 && s.name != config.ProviderStatic {
			adapter.SetRateLimit(s.backend, cfg.AI.RatePerMinute, cfg.AI.RatePerMinute)
		}
	}
	return adapter, nil
}

// newProvider returns nil, nil when the provider has no credentials.
func newProvider(name string, cfg config.AIConfig, loader *catalog.Loader) (ai.Provider, error) {
	switch name {
	case config.ProviderStatic:
		return catalog.NewResponder(loader), nil
	case config.ProviderGoogle:
		if cfg.Google.APIKey == "" {
			return nil, nil
		}
		var opts []ai.GoogleOption
		if cfg.Google.Model != "" {
			opts = append(opts, ai.WithGoogleModel(cfg.Google.Model))
		}
		return ai.NewGoogleProvider(cfg.Google.APIKey, opts...), nil
	case config.ProviderAnthropic:
		if cfg.Anthropic.APIKey == "" {
			return nil, nil
		}
		var opts []ai.AnthropicOption
		if cfg.Anthropic.Model != "" {
			opts = append(opts, ai.WithAnthropicModel(cfg.Anthropic.Model))
		}
		return ai.NewAnthropicProvider(cfg.Anthropic.APIKey, opts...)
	case config.ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			return nil, nil
		}
		return ai.NewOpenAIProvider(cfg.OpenAI.APIKey, modelOpts(cfg.OpenAI.Model)...), nil
	case config.ProviderDeepSeek:
		if cfg.DeepSeek.APIKey == "" {
			return nil, nil
		}
		return ai.NewDeepSeekProvider(cfg.DeepSeek.APIKey, modelOpts(cfg.DeepSeek.Model)...), nil
	case config.ProviderOpenRouter:
		if cfg.OpenRouter.APIKey == "" {
			return nil, nil
		}
		return ai.NewOpenRouterProvider(cfg.OpenRouter.APIKey, modelOpts(cfg.OpenRouter.Model)...), nil
	case config.ProviderOllama:
		if !cfg.Ollama.Enabled {
			return nil, nil
		}
		return ai.NewOllamaProvider(cfg.Ollama.URL, modelOpts(cfg.Ollama.Model)...), nil
	}
	return nil, fmt.Errorf("unknown provider %q", name)
}

func modelOpts(model string) []ai.OpenAIOption {
	if model == "" {
		return nil
	}
	return []ai.OpenAIOption{ai.WithModel(model)}
}

func newServer(cfg *config.Config, st *stores, adapter *ai.Adapter, loader *catalog.Loader) *api.Server {
	// Validate has already checked these names.
	defaultBackend, _ := ai.ParseBackend(cfg.Planner.DefaultBackend)
	insightBackend, _ := ai.ParseBackend(cfg.Planner.InsightBackend)
	strategy, _ := assessment.ParseStrategy(cfg.Planner.Scoring)

	synthOpts := []plan.SynthesizerOption{
		plan.WithDefaultBackend(defaultBackend),
		plan.WithActivityPrefixLen(cfg.Planner.ActivityPrefixLen),
		plan.WithAuditLogger(st.events),
	}
	if st.cache != nil {
		synthOpts = append(synthOpts, plan.WithResponseCache(st.cache))
	}
	synth := plan.NewSynthesizer(adapter, st.plans, synthOpts...)

	return api.New(api.Deps{
		Courses:     st.courses,
		Plans:       st.plans,
		Synthesizer: synth,
		Tracker: progress.NewTracker(st.progress,
			progress.WithPlans(st.plans, synth.PrefixLen()),
			progress.WithAuditLogger(st.events),
		),
		Evaluator: assessment.NewEvaluator(st.courses, st.plans,
			assessment.WithStrategy(strategy),
			assessment.WithAuditLogger(st.events),
		),
		Documents: st.documents,
		Annotator: insight.NewGenerator(adapter, st.documents,
			insight.WithBackend(insightBackend),
			insight.WithAuditLogger(st.events),
		),
		Guidance: guidance.NewBuilder(loader),
		Checks:   st.checks,
	})
}
