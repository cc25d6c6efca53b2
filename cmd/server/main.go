package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/partlog/internal/auth"
	"github.com/JonMunkholm/partlog/internal/config"
	"github.com/JonMunkholm/partlog/internal/inventory"
	"github.com/JonMunkholm/partlog/internal/logging"
	"github.com/JonMunkholm/partlog/internal/store"
	"github.com/JonMunkholm/partlog/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"store_driver", cfg.Store.Driver,
		"timezone", cfg.Locale.Timezone,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	loc, err := cfg.Locale.Location()
	if err != nil {
		slog.Error("failed to load timezone", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	var (
		gateway store.Gateway
		authn   store.Authenticator
	)
	switch cfg.Store.Driver {
	case config.DriverREST:
		rest := store.NewREST(cfg.Store.RESTURL, cfg.Store.APIKey, cfg.Store.RESTTimeout)
		gateway, authn = rest, rest
		slog.Info("using managed store", "url", cfg.Store.RESTURL)

	default:
		pool, err := openPool(ctx, cfg.Store)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			slog.Error("failed to create token verifier", "error", err)
			os.Exit(1)
		}

		db := stdlib.OpenDBFromPool(pool)
		defer db.Close()
		gateway = store.NewPostgres(db, verifier)
	}

	service := inventory.NewService(gateway, loc).
		WithImportLimits(cfg.Import.MaxConcurrent, cfg.Import.MaxWait)
	server := web.NewServer(service, authn, cfg)

	// Graceful shutdown on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Let running imports finish their inserts
	drain := func(ctx context.Context) {
		status := service.ImportStatus()
		if status.Active == 0 {
			return
		}
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := service.WaitForImports(ctx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
	}

	if err := server.Run(ctx, cfg.Server.Addr(), drain); err != nil {
		slog.Error("server stopped", "error", err)
		return
	}
	slog.Info("server stopped")
}

// openPool connects to PostgreSQL with the pool settings from cfg and checks
// the connection.
func openPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
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
