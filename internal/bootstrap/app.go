package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"docsum-backend/internal/analysis"
	"docsum-backend/internal/documents"
	"docsum-backend/internal/extract"
	"docsum-backend/internal/llm"
	"docsum-backend/internal/llm/openai"
	"docsum-backend/internal/services/health"
	"docsum-backend/internal/shared/config"
	"docsum-backend/internal/shared/server"
	"docsum-backend/internal/shared/storage/db"
	"docsum-backend/internal/shared/storage/object"
	localstore "docsum-backend/internal/shared/storage/object/local"
	s3store "docsum-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies and owns their lifecycle.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Store            *object.FallbackStore
	LLM              llm.Client
	DocumentsRepo    documents.Repo
	DocumentsService *documents.Service
	DocumentsHandler *documents.Handler
	Health           *health.Service
}

// Build constructs every dependency and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	llmClient, err := buildLLM(cfg)
	if err != nil {
		closeDB(sqlDB)
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		LLM:    llmClient,
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		DocumentHandler: app.DocumentsHandler,
		Health:          app.Health,
	})
	return app, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	err := a.DB.Close()
	a.DB = nil
	return err
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repository")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL, db.ServerPool().WithEnv())
	if err != nil {
		if cfg.IsDevLike() {
			log.Printf("bootstrap: database connect failed; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		sqlDB.Close()
		if cfg.IsDevLike() {
			log.Printf("bootstrap: migrations failed; using in-memory repository: %v", err)
			return nil, nil
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (*object.FallbackStore, error) {
	local, err := localstore.New(cfg.UploadsDir)
	if err != nil {
		return nil, err
	}
	if !cfg.ObjectStoreEnabled() {
		return object.NewFallbackStore(local, nil, cfg.S3PublicURL, nil), nil
	}

	remote, err := s3store.New(ctx, s3store.Options{
		Endpoint:        cfg.S3Endpoint,
		Region:          cfg.S3Region,
		Bucket:          cfg.S3Bucket,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		PublicURL:       cfg.S3PublicURL,
	})
	if err != nil {
		log.Printf("bootstrap: object storage unavailable; storing locally: %v", err)
		return object.NewFallbackStore(local, nil, cfg.S3PublicURL, nil), nil
	}
	return object.NewFallbackStore(local, remote, cfg.S3PublicURL, nil), nil
}

func buildLLM(cfg config.Config) (llm.Client, error) {
	if strings.TrimSpace(cfg.LLMAPIKey) == "" {
		log.Printf("bootstrap: OPENROUTER_API_KEY empty; analysis requests will fail")
		return llm.Unconfigured{Reason: "OPENROUTER_API_KEY is not set"}, nil
	}
	client, err := openai.NewClient(openai.Options{
		APIKey:  cfg.LLMAPIKey,
		URL:     cfg.LLMURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return client, nil
}

func buildServices(app *App) {
	var repo documents.Repo
	if app.DB != nil {
		repo = &documents.PGRepo{DB: app.DB}
	} else {
		repo = documents.NewMemoryRepo()
	}

	cfg := app.Config
	svc := &documents.Service{
		Store:      app.Store,
		Repo:       repo,
		Extractor:  extract.New(),
		Analyzer:   analysis.NewClient(app.LLM),
		Guard:      documents.NewFillGuard(cfg.ReadAnalysisCooldown, nil),
		PresignTTL: cfg.S3PresignTTL,
	}
	if app.Store.RemoteEnabled() {
		svc.BrowserLink = func(key string) string {
			return object.BrowserLink(cfg.S3PublicURL, cfg.S3Endpoint, cfg.S3Bucket, key)
		}
	}

	_, unconfigured := app.LLM.(llm.Unconfigured)

	app.DocumentsRepo = repo
	app.DocumentsService = svc
	app.DocumentsHandler = documents.NewHandler(svc)
	app.Health = health.NewService(app.DB, app.Store.RemoteEnabled(), !unconfigured)
}

func closeDB(sqlDB *sql.DB) {
	if sqlDB == nil {
		return
	}
	if err := sqlDB.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		log.Printf("bootstrap: close database: %v", err)
	}
}
