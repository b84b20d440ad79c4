package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reconquery/reconquery/internal/api"
	"github.com/reconquery/reconquery/internal/classify"
	"github.com/reconquery/reconquery/internal/config"
	"github.com/reconquery/reconquery/internal/export"
	"github.com/reconquery/reconquery/internal/llm"
	"github.com/reconquery/reconquery/internal/observability"
	"github.com/reconquery/reconquery/internal/pipeline"
	"github.com/reconquery/reconquery/internal/respond"
	"github.com/reconquery/reconquery/internal/sqlgen"
	s3store "github.com/reconquery/reconquery/internal/storage/s3"
	"github.com/reconquery/reconquery/internal/store"
	duckdbengine "github.com/reconquery/reconquery/internal/store/duckdb"
	postgresengine "github.com/reconquery/reconquery/internal/store/postgres"
)

func main() {
	cfg, err := config.LoadFromEnv("reconquery-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)

	engine, err := openEngine(context.Background(), cfg)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	introspectCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	desc, err := engine.Introspect(introspectCtx)
	cancel()
	if err != nil {
		logger.Error("failed to introspect schema", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("introspected database schema", slog.Int("tables", len(desc.Tables)))

	objectStore, err := s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	oracle, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL:     cfg.Oracle.BaseURL,
		APIKey:      cfg.Oracle.APIKey,
		Model:       cfg.Oracle.Model,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.Oracle.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize oracle client", slog.Any("error", err))
		os.Exit(1)
	}

	exporter := export.New(objectStore, export.Config{
		Format:        export.Format(cfg.Export.Format),
		PublicBaseURL: cfg.ObjectStore.PublicBaseURL,
		PresignExpiry: cfg.ObjectStore.PresignExpiry,
	})

	ask := pipeline.New(
		classify.New(oracle, desc, cfg.Pipeline.ListKeywords),
		sqlgen.New(oracle, desc, cfg.Pipeline.ListRowCap),
		engine,
		exporter,
		respond.New(oracle, cfg.Pipeline.SummaryRows),
		logger,
		cfg.Pipeline.StageTimeout,
	)

	handler := api.NewHandler(cfg, api.Dependencies{
		Logger:    logger,
		Pipeline:  ask,
		Schema:    desc,
		Artifacts: objectStore,
		Readiness: api.CombineReadinessChecks(
			api.CheckEngine(engine),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	})

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openEngine(ctx context.Context, cfg config.Config) (store.Engine, error) {
	switch cfg.Database.Driver {
	case "duckdb":
		return duckdbengine.Open(ctx, duckdbengine.Config{
			Path:         cfg.Database.DSN,
			QueryTimeout: cfg.Database.QueryTimeout,
			MaxRows:      cfg.Pipeline.MaxResultRows,
		})
	default:
		return postgresengine.Open(ctx, postgresengine.Config{
			DSN:             cfg.Database.DSN,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			QueryTimeout:    cfg.Database.QueryTimeout,
			MaxRows:         cfg.Pipeline.MaxResultRows,
		})
	}
}
