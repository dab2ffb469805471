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

	"github.com/artevida/askql/internal/api"
	"github.com/artevida/askql/internal/auth"
	"github.com/artevida/askql/internal/catalog"
	catalogpostgres "github.com/artevida/askql/internal/catalog/postgres"
	catalogredis "github.com/artevida/askql/internal/catalog/redis"
	"github.com/artevida/askql/internal/config"
	"github.com/artevida/askql/internal/dataset"
	"github.com/artevida/askql/internal/entities"
	"github.com/artevida/askql/internal/heuristics"
	"github.com/artevida/askql/internal/nl2sql"
	"github.com/artevida/askql/internal/observability"
	"github.com/artevida/askql/internal/pipeline"
	"github.com/artevida/askql/internal/query"
	duckdbengine "github.com/artevida/askql/internal/query/duckdb"
	postgresengine "github.com/artevida/askql/internal/query/postgres"
	"github.com/artevida/askql/internal/sqlguard"
	"github.com/artevida/askql/internal/storage"
	s3store "github.com/artevida/askql/internal/storage/s3"
)

// backend is the query engine plus what the rest of the wiring can borrow
// from it.
type backend struct {
	engine query.Engine
	ping   func(ctx context.Context) error
	lookup heuristics.Lookup
	loader catalog.ColumnLoader
	close  func()
}

func main() {
	cfg, err := config.LoadFromEnv("askql-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx := context.Background()

	var be backend
	switch cfg.Query.Engine {
	case config.EngineDuckDB:
		be, err = openDuckDB(ctx, cfg, logger)
	default:
		be, err = openPostgres(ctx, cfg)
	}
	if err != nil {
		logger.Error("failed to open query engine", slog.String("engine", string(cfg.Query.Engine)), slog.Any("error", err))
		os.Exit(1)
	}
	defer be.close()

	cat := catalog.Default()
	validator := sqlguard.New(cat,
		sqlguard.WithDefaultLimit(cfg.Query.DefaultLimit),
		sqlguard.WithLogger(logger),
	)

	schemaOpts := []catalog.SchemaCacheOption{
		catalog.WithTTL(cfg.SchemaCache.TTL),
		catalog.WithLogger(logger),
	}
	if cfg.Redis.Addr != "" {
		rdb, err := catalogredis.Open(ctx, catalogredis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Warn("schema summary sharing disabled", slog.Any("error", err))
		} else {
			defer func() { _ = rdb.Close() }()
			shared, err := catalogredis.NewStore(rdb, catalogredis.DefaultKey)
			if err != nil {
				logger.Error("failed to initialize schema summary store", slog.Any("error", err))
				os.Exit(1)
			}
			schemaOpts = append(schemaOpts, catalog.WithSharedStore(shared))
		}
	}
	schema := catalog.NewSchemaCache(cat, be.loader, schemaOpts...)

	var generator nl2sql.Generator = nl2sql.RuleGenerator{}
	summarizer := nl2sql.Summarizer(nl2sql.FallbackSummarizer{})
	if cfg.AI.Enabled {
		aiConfig := nl2sql.OpenAIConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}
		openaiGenerator, err := nl2sql.NewOpenAIGenerator(aiConfig)
		if err != nil {
			logger.Error("failed to initialize sql generator", slog.Any("error", err))
			os.Exit(1)
		}
		openaiSummarizer, err := nl2sql.NewOpenAISummarizer(aiConfig)
		if err != nil {
			logger.Error("failed to initialize summarizer", slog.Any("error", err))
			os.Exit(1)
		}
		generator = nl2sql.FallbackGenerator{Primary: openaiGenerator, Secondary: nl2sql.RuleGenerator{}}
		summarizer = nl2sql.ChainSummarizer{Primary: openaiSummarizer, Secondary: nl2sql.FallbackSummarizer{}}
	}

	orchestrator, err := pipeline.New(pipeline.Dependencies{
		Resolver:   heuristics.New(be.lookup, logger),
		Generator:  generator,
		Validator:  validator,
		Engine:     be.engine,
		Summarizer: summarizer,
		Schema:     schema,
	},
		pipeline.WithMaxRepairs(cfg.Pipeline.MaxRepairs),
		pipeline.WithRequestTimeout(cfg.Pipeline.RequestTimeout),
		pipeline.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to build pipeline", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(api.CheckDatabase(be.ping)),
		DependencyTimeout: 2 * time.Second,
		Asker:             orchestrator,
		Validator:         validator,
		Engine:            be.engine,
		RateLimiter:       api.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}
	if cfg.Auth.Required {
		keys, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, keys)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("engine", string(cfg.Query.Engine)),
			slog.Bool("ai_enabled", cfg.AI.Enabled),
		)
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

func openPostgres(ctx context.Context, cfg config.Config) (backend, error) {
	db, err := catalogpostgres.Open(ctx, catalogpostgres.DBConfig{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ApplicationName: cfg.Service.Name,
		ReadOnly:        true,
	})
	if err != nil {
		return backend{}, err
	}
	engine := postgresengine.NewEngine(db, cfg.Query.Timeout)
	return backend{
		engine: engine,
		ping:   engine.Ping,
		lookup: entities.NewStore(db, cfg.Query.LookupTimeout),
		loader: catalogpostgres.NewRepository(db),
		close:  func() { _ = db.Close() },
	}, nil
}

// openDuckDB serves the Parquet snapshot from the object store. Without an
// endpoint it publishes a freshly generated dataset into memory, which is
// enough for local runs and demos.
func openDuckDB(ctx context.Context, cfg config.Config, logger *slog.Logger) (backend, error) {
	var store storage.ObjectStore
	if cfg.ObjectStore.Enabled() {
		s3, err := s3store.New(ctx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			return backend{}, err
		}
		store = s3
	} else {
		memory := storage.NewMemoryStore()
		now := time.Now().UTC()
		opts := dataset.DefaultOptions()
		opts.Now = now
		manifest, err := dataset.Publish(ctx, memory, cfg.ObjectStore.DatasetPrefix, dataset.Generate(opts), now)
		if err != nil {
			return backend{}, err
		}
		logger.Info("published in-memory demo dataset",
			slog.String("dataset", manifest.Dataset),
			slog.Int64("seed", manifest.Seed),
		)
		store = memory
	}

	engine := duckdbengine.NewEngine(store, cfg.ObjectStore.DatasetPrefix, cfg.Query.Timeout)
	return backend{
		engine: engine,
		ping: func(ctx context.Context) error {
			if err := storage.Ping(ctx, store); err != nil {
				return err
			}
			return engine.Ping(ctx)
		},
		close:  func() { _ = engine.Close() },
	}, nil
}
