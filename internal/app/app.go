package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/sundayezeilo/tasklinks/internal/config"
	"github.com/sundayezeilo/tasklinks/internal/qrcode"
	"github.com/sundayezeilo/tasklinks/internal/server"
	"github.com/sundayezeilo/tasklinks/internal/shortener"
	"github.com/sundayezeilo/tasklinks/internal/store"
	"github.com/sundayezeilo/tasklinks/internal/todo"
)

// App holds the application dependencies and configuration.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Server   *server.Server
	stores   *stores
}

// stores holds whichever database handle the configured driver opened.
type stores struct {
	sqlite *sql.DB
	pg     *pgxpool.Pool
}

func (s *stores) ping(ctx context.Context) error {
	if s.pg != nil {
		return s.pg.Ping(ctx)
	}
	return s.sqlite.PingContext(ctx)
}

func (s *stores) close() error {
	if s.pg != nil {
		s.pg.Close()
		return nil
	}
	return s.sqlite.Close()
}

// NewShortener wires the URL shortener: store, code generation, QR rendering and routes.
func NewShortener(ctx context.Context) (*App, error) {
	a, err := bootstrap(ctx, config.LoadShortener)
	if err != nil {
		return nil, err
	}

	repoCfg := &shortener.RepositoryConfig{}
	var repo shortener.Repository
	if a.stores.pg != nil {
		repo, err = shortener.NewPostgresRepository(ctx, a.stores.pg, repoCfg)
	} else {
		repo, err = shortener.NewSQLiteRepository(ctx, a.stores.sqlite, repoCfg)
	}
	if err != nil {
		_ = a.stores.close()
		return nil, fmt.Errorf("failed to prepare link store: %w", err)
	}

	cfg := a.Config
	svc := shortener.NewService(repo, &shortener.ServiceConfig{
		CodeLength:      cfg.Shortener.CodeLength,
		CodeMaxAttempts: cfg.Shortener.CodeMaxAttempts,
		DedupeTargets:   cfg.Shortener.DedupeTargets,
		Metrics:         shortener.NewMetrics(a.Registry),
	})

	if sum, err := svc.Summary(ctx); err != nil {
		a.Logger.Warn("failed to summarise link store", "error", err.Error())
	} else {
		a.Logger.Info("link store loaded",
			"links", sum.Links,
			"visits", sum.Visits,
		)
	}

	handler := shortener.NewHandler(shortener.HandlerConfig{
		Service:  svc,
		Renderer: qrcode.NewPNGRenderer(cfg.Shortener.QRSize),
		Logger:   a.Logger,
		BaseURL:  cfg.Server.BaseURL,
	})

	a.Server = server.New(cfg, a.Logger, a.serverOptions(), handler)
	a.Logger.Info("application initialized",
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"code_length", cfg.Shortener.CodeLength,
		"dedupe_targets", cfg.Shortener.DedupeTargets,
	)
	return a, nil
}

// NewTodo wires the task-list service.
func NewTodo(ctx context.Context) (*App, error) {
	a, err := bootstrap(ctx, config.LoadTodo)
	if err != nil {
		return nil, err
	}

	var repo todo.Repository
	if a.stores.pg != nil {
		repo, err = todo.NewPostgresRepository(ctx, a.stores.pg, nil)
	} else {
		repo, err = todo.NewSQLiteRepository(ctx, a.stores.sqlite, nil)
	}
	if err != nil {
		_ = a.stores.close()
		return nil, fmt.Errorf("failed to prepare task store: %w", err)
	}

	handler := todo.NewHandler(todo.NewService(repo), a.Logger)

	a.Server = server.New(a.Config, a.Logger, a.serverOptions(), handler)
	a.Logger.Info("application initialized", "port", a.Config.Server.Port)
	return a, nil
}

// bootstrap loads configuration, builds the logger and metrics registry, and
// opens the configured store.
func bootstrap(ctx context.Context, load func() (*config.Config, error)) (*App, error) {
	envFile, err := loadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(cfg.App.LogLevel).With("service", cfg.Observability.ServiceName)
	logger.Info("starting application",
		"env", cfg.App.Environment,
		"version", cfg.Observability.ServiceVersion,
		"db_driver", cfg.Database.Driver,
	)
	if envFile != "" {
		logger.Debug("loaded environment file", "path", envFile)
	}

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		stores:   st,
	}, nil
}

func (a *App) serverOptions() server.Options {
	return server.Options{
		Registry: a.Registry,
		Ping:     a.stores.ping,
	}
}

// Start starts the application server and blocks until it stops.
func (a *App) Start(ctx context.Context) error {
	if err := a.Server.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown releases the database handle.
func (a *App) Shutdown() error {
	a.Logger.Info("shutting down application")

	if a.stores != nil {
		if err := a.stores.close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
		a.Logger.Info("database connection closed")
	}
	return nil
}

// loadEnv loads .env outside production. Variables already set win.
// It returns the file it loaded, or "" when there was none.
func loadEnv() (string, error) {
	env := os.Getenv("APP_ENV")
	if env != "" && env != "development" && env != "test" {
		return "", nil
	}

	const path = ".env"
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return path, nil
}

// setupLogger creates a structured logger based on the log level.
func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}

// openStores opens the store selected by cfg.Database.Driver.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Database.Driver == config.DriverPostgres {
		pool, err := store.OpenPostgres(ctx, store.PostgresOptions{
			DSN:      cfg.Database.ConnectionString(),
			MaxConns: cfg.Database.MaxConns,
			MinConns: cfg.Database.MinConns,
		}, logger)
		if err != nil {
			return nil, err
		}
		return &stores{pg: pool}, nil
	}

	db, err := store.OpenSQLite(ctx, cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	return &stores{sqlite: db}, nil
}
