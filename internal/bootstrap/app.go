package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	googleauth "portfolio-backend/internal/auth"
	"portfolio-backend/internal/dispatch"
	"portfolio-backend/internal/ingest"
	"portfolio-backend/internal/portfolio"
	"portfolio-backend/internal/results"
	"portfolio-backend/internal/services/health"
	"portfolio-backend/internal/shared/auth"
	"portfolio-backend/internal/shared/config"
	"portfolio-backend/internal/shared/server"
	"portfolio-backend/internal/shared/server/middleware"
	"portfolio-backend/internal/shared/storage/db"
	"portfolio-backend/internal/shared/storage/object"
	localstore "portfolio-backend/internal/shared/storage/object/local"
	miniostore "portfolio-backend/internal/shared/storage/object/minio"
	s3store "portfolio-backend/internal/shared/storage/object/s3"
	"portfolio-backend/internal/shared/telemetry"
	"portfolio-backend/internal/shell"
	"portfolio-backend/internal/users"
)

const redisPingTimeout = 3 * time.Second

// App holds shared dependencies and the wired router.
type App struct {
	Config      config.Config
	Router      *gin.Engine
	DB          *sql.DB
	Redis       redis.UniversalClient
	Store       object.ObjectStore
	Signer      *auth.Signer
	Revocations auth.RevocationList

	Notifier         results.Notifier
	ResultsService   *results.Service
	Simulator        *results.Simulator
	Pipeline         *portfolio.Pipeline
	UsersService     *users.Service
	GoogleAuth       *googleauth.GoogleService
	UsersHandler     *users.Handler
	PortfolioHandler *portfolio.Handler
	ResultsHandler   *results.Handler
	ShellHandler     *shell.Handler
	Ingest           http.Handler
	Health           *health.Service

	redisNotifier *results.RedisNotifier
}

// Build prepares every dependency and wires the router.
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := buildRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.SessionTTL, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Redis:  redisClient,
		Store:  store,
		Signer: signer,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:           cfg,
		Signer:           app.Signer,
		Revocations:      app.Revocations,
		GoogleAuth:       app.GoogleAuth,
		UsersHandler:     app.UsersHandler,
		PortfolioHandler: app.PortfolioHandler,
		ResultsHandler:   app.ResultsHandler,
		ShellHandler:     app.ShellHandler,
		Ingest:           app.Ingest,
		RateLimiter:      middleware.NewRateLimiter(nil),
		Health:           app.Health,
	})

	return app, nil
}

// Start runs background loops until ctx is cancelled.
func (a *App) Start(ctx context.Context) {
	if a.redisNotifier == nil {
		return
	}
	go func() {
		for {
			err := a.redisNotifier.Run(ctx)
			if ctx.Err() != nil {
				return
			}
			telemetry.Warn("results.notifier_stopped", map[string]any{"err": err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
		}
	}()
}

// Shutdown ends open streams, waits for in-flight dispatches and closes connections.
func (a *App) Shutdown(ctx context.Context) error {
	if a.ResultsHandler != nil {
		a.ResultsHandler.Stop()
	}
	var errs []error
	if a.Pipeline != nil {
		if err := a.Pipeline.Wait(ctx); err != nil {
			errs = append(errs, fmt.Errorf("wait for dispatches: %w", err))
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_unconfigured", map[string]any{"fallback": "memory"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
	if err == nil {
		err = db.RunMigrations(ctx, sqlDB)
		if err != nil {
			_ = sqlDB.Close()
		}
	}
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.db_unavailable", map[string]any{"fallback": "memory", "err": err})
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	case "minio":
		return miniostore.New(ctx, miniostore.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			Region:    cfg.AWSRegion,
			UseSSL:    cfg.MinioUseSSL,
		})
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildRedis(ctx context.Context, cfg config.Config) (redis.UniversalClient, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.redis_unavailable", map[string]any{"fallback": "memory", "err": err})
			return nil, nil
		}
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func buildServices(app *App) {
	var (
		resultsRepo results.Repo
		userRepo    users.Repo
	)
	if app.DB != nil {
		resultsRepo = &results.PGRepo{DB: app.DB}
		userRepo = &users.PGRepo{DB: app.DB}
	} else {
		resultsRepo = results.NewMemoryRepo()
		userRepo = users.NewMemoryRepo()
	}

	hub := results.NewHub()
	app.Notifier = hub
	app.Revocations = auth.NewMemoryRevocationList()
	if app.Redis != nil {
		app.redisNotifier = results.NewRedisNotifier(app.Redis, hub)
		app.Notifier = app.redisNotifier
		app.Revocations = auth.NewRedisRevocationList(app.Redis)
	}

	cfg := app.Config
	app.ResultsService = results.NewService(resultsRepo, app.Notifier)
	app.Simulator = results.NewSimulator(app.ResultsService, cfg.SimulateDelay)
	app.Pipeline = portfolio.NewPipeline(app.Store, dispatch.NewWebhook(cfg.WebhookURL, cfg.WebhookTimeout))
	app.UsersService = users.NewService(userRepo)

	app.GoogleAuth = googleauth.NewGoogleService(googleauth.GoogleConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		UIRedirect:   cfg.UIRedirectURL,
		SecureCookie: !isDevLike(cfg.Env),
	}, app.Signer, app.Revocations, app.UsersService)
	app.UsersHandler = users.NewHandler(app.UsersService)
	app.PortfolioHandler = portfolio.NewHandler(app.Pipeline)
	app.ResultsHandler = results.NewHandler(app.ResultsService, app.Simulator)
	app.ShellHandler = shell.NewHandler(app.UsersHandler.Current, server.APIPrefix)
	app.Ingest = NewIngestHandler(cfg, app.ResultsService)

	app.Health = health.NewService()
	if app.DB != nil {
		app.Health.Add("database", app.DB.PingContext)
	}
	if app.Redis != nil {
		app.Health.Add("redis", func(ctx context.Context) error { return app.Redis.Ping(ctx).Err() })
	}
}

// NewIngestHandler builds the result ingestion endpoint from config.
func NewIngestHandler(cfg config.Config, writer ingest.ResultsWriter) http.Handler {
	return ingest.NewHandler(writer,
		ingest.WithSharedSecret(cfg.IngestSharedSecret),
		ingest.WithMaxBodyBytes(cfg.IngestMaxBodyBytes),
	)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
