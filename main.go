package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/schemasense/engine/pkg/adapters/datasource"
	_ "github.com/schemasense/engine/pkg/adapters/datasource/mssql"    // register mssql adapter
	_ "github.com/schemasense/engine/pkg/adapters/datasource/mysql"    // register mysql adapter
	_ "github.com/schemasense/engine/pkg/adapters/datasource/postgres" // register postgres adapter
	"github.com/schemasense/engine/pkg/config"
	"github.com/schemasense/engine/pkg/database"
	"github.com/schemasense/engine/pkg/execrunner"
	engmcp "github.com/schemasense/engine/pkg/mcp"
	mcptools "github.com/schemasense/engine/pkg/mcp/tools"
	"github.com/schemasense/engine/pkg/sqlintel"
)

// Version is set at build time via ldflags.
var Version = "dev"

const serviceName = "schemasense-engine"

func main() {
	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	dialect := cfg.Dialect
	if dialect == "" {
		dialect = detectDialect(cfg.DatabaseURL)
	}
	if !datasource.IsRegistered(dialect) {
		logger.Fatal("unsupported or undetected database dialect",
			zap.String("dialect", dialect),
			zap.Strings("registered", dialectNames()),
		)
	}

	logger.Info("configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("bind_addr", cfg.BindAddr),
		zap.String("port", cfg.Port),
		zap.String("dialect", dialect),
		zap.String("embedding_backend", cfg.Embedding.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cardStore := setupCardStore(ctx, cfg, logger)
	if cardStore != nil {
		defer cardStore.Close()
	}

	initMgr := sqlintel.NewInitManager(cfg, dialect, logger, cardStore)
	initMgr.Start(ctx)
	defer initMgr.Shutdown()

	executor, err := datasource.NewQueryExecutor(ctx, dialect, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to create query executor", zap.Error(err))
	}
	defer func() {
		if err := executor.Close(); err != nil {
			logger.Warn("error closing query executor", zap.Error(err))
		}
	}()
	runner := execrunner.New(executor, dialect, cfg.Execution.RowLimit, cfg.Execution.MaxCellChars, logger)

	server := engmcp.NewServer(serviceName, cfg.Version, logger)
	mcptools.RegisterAll(server.MCP(), &mcptools.Deps{
		InitMgr: initMgr,
		Runner:  runner,
		Config:  cfg,
		Logger:  logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(initMgr))
	mux.Handle("/mcp", server.NewStreamableHTTPServer())

	addr := fmt.Sprintf("%s:%s", cfg.BindAddr, cfg.Port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		var serveErr error
		if cfg.TLSCertPath != "" {
			serveErr = httpServer.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			serveErr = httpServer.ListenAndServe()
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			logger.Error("http server exited with error", zap.Error(serveErr))
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("error during http server shutdown", zap.Error(err))
	}
}

// setupCardStore wires the engine's own metadata database, used only to
// persist SchemaCards and their embedding vectors across restarts. It is
// entirely optional: an empty MetadataDatabaseURL (the default) means no
// metadata database is configured, and the service runs exactly as it would
// without this feature. A failure to migrate or connect is logged and
// treated the same way (nil store), never fatal to the rest of startup.
func setupCardStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) *sqlintel.CardStore {
	if cfg.MetadataDatabaseURL == "" {
		return nil
	}

	migrationConn, err := sql.Open("pgx", cfg.MetadataDatabaseURL)
	if err != nil {
		logger.Warn("metadata database: failed to open migration connection, persistence disabled", zap.Error(err))
		return nil
	}
	defer migrationConn.Close()

	if err := database.RunMigrations(migrationConn, "pkg/database/migrations"); err != nil {
		logger.Warn("metadata database: migrations failed, persistence disabled", zap.Error(err))
		return nil
	}

	store, err := sqlintel.NewCardStore(ctx, cfg.MetadataDatabaseURL, logger)
	if err != nil {
		logger.Warn("metadata database: connection failed, persistence disabled", zap.Error(err))
		return nil
	}
	logger.Info("metadata database ready, schema card persistence enabled")
	return store
}

// detectDialect infers a dialect from the database URL's scheme when
// Config.Dialect is not set explicitly.
func detectDialect(databaseURL string) string {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(databaseURL, "mysql://"):
		return "mysql"
	case strings.HasPrefix(databaseURL, "sqlserver://"):
		return "mssql"
	default:
		return ""
	}
}

func dialectNames() []string {
	infos := datasource.RegisteredDialects()
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Dialect)
	}
	return names
}

// healthHandler reports process liveness plus the schema index's current
// lifecycle phase, so a caller can distinguish "up but still reflecting"
// from "up and ready".
func healthHandler(initMgr *sqlintel.InitManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := initMgr.Status()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":       "healthy",
			"service":      serviceName,
			"schema_phase": state.Phase,
		})
	}
}
