package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"foodsafe-backend/internal/history"
	"foodsafe-backend/internal/hybrid"
	"foodsafe-backend/internal/jobs"
	"foodsafe-backend/internal/llm"
	openai "foodsafe-backend/internal/llm/openai"
	"foodsafe-backend/internal/products"
	"foodsafe-backend/internal/profiles"
	"foodsafe-backend/internal/scoring/local"
	"foodsafe-backend/internal/scoring/remote"
	"foodsafe-backend/internal/services/health"
	"foodsafe-backend/internal/shared/config"
	"foodsafe-backend/internal/shared/server"
	"foodsafe-backend/internal/shared/storage/db"
	"foodsafe-backend/internal/shared/telemetry"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Redis           *redis.Client
	Local           *local.Classifier
	Remote          *remote.Scorer
	Hybrid          *hybrid.Router
	Queue           *jobs.Queue
	Products        products.Lookup
	ProfilesService *profiles.Service
	HistoryService  *history.Service
	JobHandler      *jobs.Handler
	ProfileHandler  *profiles.Handler
	HistoryHandler  *history.Handler
	Health          *health.Service
}

// Build prepares every dependency and the HTTP router. The queue is not
// started; callers run App.Queue.Run alongside the server.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, DB: sqlDB}

	if err := buildScoring(ctx, app); err != nil {
		app.Close()
		return nil, err
	}
	if err := buildServices(app); err != nil {
		app.Close()
		return nil, err
	}

	app.Health = buildHealth(app)
	app.Router = server.NewRouter(server.RouterDeps{
		Config:         app.Config,
		JobHandler:     app.JobHandler,
		ProfileHandler: app.ProfileHandler,
		HistoryHandler: app.HistoryHandler,
		Health:         app.Health,
	})
	return app, nil
}

// Close releases the database and Redis connections.
func (a *App) Close() {
	if a.DB != nil {
		_ = a.DB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
			err = fmt.Errorf("run migrations: %w", err)
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db.memory", map[string]any{"reason": err.Error()})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildScoring(ctx context.Context, app *App) error {
	cfg := app.Config

	model, err := loadModel(cfg.LocalModelPath)
	if err != nil {
		// The router falls back to the remote scorer when the classifier has no model.
		telemetry.Error("bootstrap.local_model.failed", map[string]any{
			"path":  cfg.LocalModelPath,
			"error": err.Error(),
		})
		app.Local = local.New()
	} else {
		app.Local = local.NewWithModel(model)
	}

	cache, err := buildCache(ctx, app)
	if err != nil {
		return err
	}

	client, err := buildLLMClient(cfg)
	if err != nil {
		return err
	}
	app.Remote, err = remote.New(llm.WithRetry(client), remote.Config{
		Timeout:       cfg.RemoteTimeout,
		RatePerSec:    cfg.RemoteRatePerSec,
		Burst:         cfg.RemoteBurst,
		CacheTTL:      cfg.RemoteCacheTTL,
		PromptVersion: cfg.PromptVersion,
	}, cache)
	if err != nil {
		return fmt.Errorf("remote scorer: %w", err)
	}

	app.Hybrid, err = hybrid.New(app.Local, app.Remote, cfg.Thresholds(),
		hybrid.WithDegradeOnHybridFailure(cfg.DegradeOnHybridFailure))
	if err != nil {
		return fmt.Errorf("hybrid router: %w", err)
	}

	telemetry.Info("bootstrap.scoring", map[string]any{
		"local_available":   app.Local.IsAvailable(),
		"local_version":     app.Local.Version(),
		"llm_provider":      cfg.LLMProvider,
		"high_confidence":   cfg.HighConfidence,
		"medium_confidence": cfg.MediumConfidence,
	})
	return nil
}

func loadModel(path string) (*local.Model, error) {
	if strings.TrimSpace(path) == "" {
		return local.DefaultModel()
	}
	return local.LoadModelFile(path)
}

func buildCache(ctx context.Context, app *App) (remote.Cache, error) {
	if strings.TrimSpace(app.Config.RedisURL) == "" {
		return remote.NewMemoryCache(nil), nil
	}
	client, err := remote.OpenRedis(ctx, app.Config.RedisURL)
	if err != nil {
		if isDevLike(app.Config.Env) {
			telemetry.Warn("bootstrap.redis.memory", map[string]any{"reason": err.Error()})
			return remote.NewMemoryCache(nil), nil
		}
		return nil, err
	}
	app.Redis = client
	return remote.NewRedisCache(client, ""), nil
}

func buildLLMClient(cfg config.Config) (llm.Client, error) {
	switch cfg.LLMProvider {
	case "openai":
		if strings.TrimSpace(cfg.OpenAIAPIKey) == "" && isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.llm.placeholder", map[string]any{"reason": "OPENAI_API_KEY empty"})
			return llm.PlaceholderClient{}, nil
		}
		return openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel)
	case "", "none":
		return llm.PlaceholderClient{}, nil
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", cfg.LLMProvider)
	}
}

func buildServices(app *App) error {
	var profileRepo profiles.Repo
	var historyRepo history.Repo
	if app.DB != nil {
		profileRepo = &profiles.PGRepo{DB: app.DB}
		historyRepo = &history.PGRepo{DB: app.DB}
	} else {
		profileRepo = profiles.NewMemoryRepo()
		historyRepo = history.NewMemoryRepo()
	}
	app.ProfilesService = &profiles.Service{Repo: profileRepo}
	app.HistoryService = &history.Service{Repo: historyRepo}

	if strings.TrimSpace(app.Config.ProductLookupURL) != "" {
		app.Products = products.NewOpenFoodFactsClient(app.Config.ProductLookupURL, app.Config.ProductLookupTimeout)
	} else {
		app.Products = products.NewMemoryCatalog()
	}

	queue, err := jobs.NewQueue(app.Hybrid, jobs.Config{
		Workers:         app.Config.JobWorkers,
		QueueSize:       app.Config.JobQueueSize,
		Retention:       app.Config.JobRetention,
		CleanupInterval: app.Config.JobCleanupInterval,
	},
		jobs.WithEnricher(app.ProfilesService),
		jobs.WithCompletionHook(app.HistoryService.Record),
	)
	if err != nil {
		return fmt.Errorf("job queue: %w", err)
	}
	app.Queue = queue

	app.JobHandler = jobs.NewHandler(queue, app.Products)
	app.ProfileHandler = profiles.NewHandler(app.ProfilesService)
	app.HistoryHandler = history.NewHandler(app.HistoryService)

	if app.JobHandler == nil || app.ProfileHandler == nil || app.HistoryHandler == nil {
		return errors.New("failed to initialize handlers")
	}
	return nil
}

func buildHealth(app *App) *health.Service {
	svc := health.NewService(app.Local.IsAvailable)
	if app.DB != nil {
		svc.Register("postgres", app.DB)
	}
	if app.Redis != nil {
		client := app.Redis
		svc.Register("redis", health.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}))
	}
	return svc
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
