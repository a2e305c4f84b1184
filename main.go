package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource/api"
	_ "github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource/csv"
	_ "github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource/sheets"
	"github.com/ekaya-inc/ekaya-insights/pkg/config"
	"github.com/ekaya-inc/ekaya-insights/pkg/database"
	"github.com/ekaya-inc/ekaya-insights/pkg/handlers"
	"github.com/ekaya-inc/ekaya-insights/pkg/llm"
	"github.com/ekaya-inc/ekaya-insights/pkg/logging"
	"github.com/ekaya-inc/ekaya-insights/pkg/mcp"
	"github.com/ekaya-inc/ekaya-insights/pkg/middleware"
	"github.com/ekaya-inc/ekaya-insights/pkg/repositories"
	"github.com/ekaya-inc/ekaya-insights/pkg/schemacache"
	"github.com/ekaya-inc/ekaya-insights/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

// adapterHTTPTimeout bounds every request the API and spreadsheet adapters make.
const adapterHTTPTimeout = 30 * time.Second

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Ignoring unreadable .env: %v", err)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("addr", cfg.Addr()),
		zap.String("storage", cfg.Database.Backend),
		zap.Bool("ai_enabled", cfg.AI.Enabled()),
		zap.Bool("mcp_enabled", cfg.MCP.Enabled),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pools := datasource.NewPoolManager(datasource.PoolManagerConfig{
		PoolMaxConns: cfg.Datasource.PoolMaxConns,
		PoolMinConns: cfg.Datasource.PoolMinConns,
	}, logger)
	defer func() {
		if err := pools.Close(); err != nil {
			logger.Warn("Failed to close data source pools", zap.Error(err))
		}
	}()

	adapters := datasource.NewAdapterFactory(datasource.Deps{
		Pools:      pools,
		HTTPClient: &http.Client{Timeout: adapterHTTPTimeout},
		Logger:     logger,
	})
	schemas := schemacache.New(schemacache.Config{
		TTL:          cfg.SchemaCache.TTL,
		FetchTimeout: cfg.SchemaCache.FetchTimeout,
	}, logger)

	ai, err := llm.NewProvider(llm.ProviderConfig{
		Provider:    cfg.AI.Provider,
		Endpoint:    cfg.AI.Endpoint,
		Model:       cfg.AI.Model,
		APIKey:      cfg.AI.APIKey,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Breaker:     llm.DefaultCircuitBreakerConfig(),
	}, logger)
	if err != nil {
		return err
	}

	queryService := services.NewQueryService(store, adapters, schemas, ai, logger)
	dataSourceService := services.NewDataSourceService(store, adapters, schemas, logger)
	conversationService := services.NewConversationService(store, queryService, ai, logger)
	historyService := services.NewQueryHistoryService(store, logger)

	if cfg.Sync.Schedule != "" {
		scheduler, err := services.NewSyncScheduler(cfg.Sync.Schedule, store, adapters, schemas, logger)
		if err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	mux := http.NewServeMux()
	handlers.NewHealthHandler(cfg, pools, ai != nil, logger).RegisterRoutes(mux)
	handlers.NewDataSourcesHandler(dataSourceService, logger).RegisterRoutes(mux)
	handlers.NewConversationsHandler(conversationService, logger).RegisterRoutes(mux)
	handlers.NewQueriesHandler(historyService, logger).RegisterRoutes(mux)
	handlers.NewExportHandler(logger).RegisterRoutes(mux)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewInsightsServer(cfg.Version, mcp.ToolDeps{
			QueryService:      queryService,
			DataSourceService: dataSourceService,
			AIEnabled:         ai != nil,
		}, logger)
		handlers.NewMCPHandler(mcpServer, logger).RegisterRoutes(mux)
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.RequestLogger(logger)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-insights",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		logger.Info("Shutting down", zap.String("signal", s.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Graceful shutdown did not complete", zap.Error(err))
	}
	return nil
}

// openStore returns the configured storage backend and its cleanup.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repositories.Store, func(), error) {
	if cfg.Database.Backend == config.StorageMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return repositories.NewInMemoryStore(), func() {}, nil
	}

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            cfg.ConnectionString(),
		MaxConnections: cfg.Database.MaxConnections,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.RunMigrations(db, cfg.Database.MigrationsPath, logger); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Connected to PostgreSQL storage",
		zap.String("database", logging.SanitizeConnectionString(cfg.ConnectionString())))
	return repositories.NewStore(db), db.Close, nil
}
