package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/JonMunkholm/shelf/internal/airtable/client"
	_ "github.com/JonMunkholm/shelf/internal/airtable/schemas" // Register all schemas
	"github.com/JonMunkholm/shelf/internal/config"
	"github.com/JonMunkholm/shelf/internal/core"
	"github.com/JonMunkholm/shelf/internal/logging"
	"github.com/JonMunkholm/shelf/internal/openlibrary"
	"github.com/JonMunkholm/shelf/internal/store"
	"github.com/JonMunkholm/shelf/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	schema, ok := airtable.GetSchema(cfg.Catalog.Schema)
	if !ok {
		names := lo.Map(airtable.Schemas(), func(s airtable.Schema, _ int) string { return s.Name })
		slog.Error("unknown schema", "schema", cfg.Catalog.Schema, "registered", names)
		os.Exit(1)
	}
	slog.Info("schema selected", "schema", schema.Name, "tables", schema.Tables)

	at, err := client.New(client.Config{
		BaseURL:  cfg.Airtable.BaseURL,
		BaseID:   cfg.Airtable.BaseID,
		APIKey:   cfg.Airtable.APIKey,
		Timeout:  cfg.Airtable.Timeout,
		PageSize: cfg.Airtable.PageSize,
	})
	if err != nil {
		slog.Error("failed to create airtable client", "error", err)
		os.Exit(1)
	}

	opts := core.Options{
		Schema:        schema,
		DefaultLocale: cfg.Catalog.DefaultLocale,
		Workers:       cfg.Catalog.Workers,
		KeepSnapshots: cfg.Catalog.KeepSnapshots,
		CustomerID:    cfg.Catalog.CustomerID,
		MaxImports:    cfg.Catalog.MaxImports,
		Books: openlibrary.New(openlibrary.Config{
			BaseURL:   cfg.OpenLibrary.BaseURL,
			CoversURL: cfg.OpenLibrary.CoversURL,
			Timeout:   cfg.OpenLibrary.Timeout,
		}),
	}

	ctx := context.Background()

	if cfg.Database.Enabled() {
		pool, err := connectDB(ctx, &cfg.Database)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to migrate snapshot tables", "error", err)
			os.Exit(1)
		}
		opts.Store = st
	} else {
		slog.Info("snapshot archive disabled (DATABASE_URL not set)")
	}

	service, err := core.NewService(at, opts)
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// Initial load; fall back to the last archived dataset when Airtable is down
	if info, err := service.Refresh(ctx); err != nil {
		slog.Warn("initial refresh failed, restoring snapshot", "error", err)
		if info, err := service.Restore(ctx); err != nil {
			slog.Warn("no dataset available yet, serving 503 until the next refresh", "error", err)
		} else {
			slog.Info("dataset restored", "snapshot", info.SnapshotID, "records", info.RecordCount)
		}
	} else {
		slog.Info("dataset loaded", "records", info.RecordCount, "tables", len(info.Tables))
	}

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	if cfg.Catalog.RefreshEnabled() {
		go func() {
			if err := service.StartRefreshScheduler(jobCtx, cfg.Catalog.RefreshSchedule); err != nil {
				slog.Error("refresh scheduler failed", "error", err)
			}
		}()
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ImportStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// connectDB opens and verifies the snapshot database pool.
func connectDB(ctx context.Context, cfg *config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}
