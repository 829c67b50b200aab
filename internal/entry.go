// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/mindweave/internal/api"
	"github.com/starford/mindweave/internal/graph"
	"github.com/starford/mindweave/internal/graphexport"
	"github.com/starford/mindweave/internal/mcpserver"
	"github.com/starford/mindweave/internal/mirror"
	"github.com/starford/mindweave/internal/noteservice"
	"github.com/starford/mindweave/internal/sse"
	"github.com/starford/mindweave/internal/storage"
	"github.com/starford/mindweave/internal/store"
	"github.com/starford/mindweave/internal/taskservice"
)

const shutdownTimeout = 10 * time.Second

func newApplication(opts []Option) (*application, error) {
	app := &application{version: "dev", logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// openMirror prepares the vault directory. It returns nil when mirroring is off.
func openMirror(cfg VaultConfig, logger *slog.Logger) (*mirror.Mirror, error) {
	if !cfg.Mirror {
		return nil, nil
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}
	fs, err := storage.NewFS(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return mirror.New(fs, fs.Root(), logger), nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOutput, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.Bool("vault_mirror", cfg.Vault.Mirror),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	broker := sse.NewBroker(cfg.Events.GraphThrottle)
	defer broker.Close()

	vault, err := openMirror(cfg.Vault, logger)
	if err != nil {
		return err
	}

	noteOpts := []noteservice.Option{
		noteservice.WithNotifier(broker),
		noteservice.WithLogger(logger),
	}
	if vault != nil {
		noteOpts = append(noteOpts, noteservice.WithMirror(vault))
	}
	notes := noteservice.NewService(db, noteOpts...)
	tasks := taskservice.NewService(db, taskservice.WithNotifier(broker))

	if vault != nil {
		if err := vault.Sync(ctx, notes); err != nil {
			logger.Warn("initial vault sync failed", slog.String("error", err.Error()))
		}
	}

	apiRouter := api.NewRouter(notes, tasks, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.Ping(r.Context()); err != nil {
			logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	if vault != nil {
		g.Go(func() error {
			return vault.Watch(gCtx, notes, func(res mirror.ImportResult, title string) {
				logger.Debug("vault file imported",
					slog.String("title", title),
					slog.String("result", res.String()))
			})
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		// SSE streams end with the broker; close it first so Shutdown does not wait on them.
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown cancels the group so the watcher stops with the server.
var errShutdown = errors.New("shutdown")

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOutput, cfg.App.LogLevel)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	vault, err := openMirror(cfg.Vault, logger)
	if err != nil {
		return err
	}
	noteOpts := []noteservice.Option{noteservice.WithLogger(logger)}
	if vault != nil {
		noteOpts = append(noteOpts, noteservice.WithMirror(vault))
	}

	srv := mcpserver.New(noteservice.NewService(db, noteOpts...), taskservice.NewService(db), app.version)
	logger.Info("MCP server starting", slog.String("sqlite_path", cfg.SQLite.Path))
	if err := srv.ServeStdio(); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

// RunGraphExport pushes the current note graph to the configured Neo4j.
func RunGraphExport(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(app.logOutput, cfg.App.LogLevel)

	if !cfg.Neo4j.Enabled() {
		return fmt.Errorf("graph export: neo4j.uri is not configured")
	}

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	g, err := noteservice.NewService(db, noteservice.WithLogger(logger)).
		Graph(ctx, graph.Options{IncludeTags: true})
	if err != nil {
		return fmt.Errorf("graph export: build graph: %w", err)
	}

	target, err := graphexport.Connect(ctx, graphexport.Config{
		URI:      cfg.Neo4j.URI,
		Username: cfg.Neo4j.Username,
		Password: cfg.Neo4j.Password,
		Database: cfg.Neo4j.Database,
	})
	if err != nil {
		return err
	}
	defer target.Close(context.Background())

	if _, err := graphexport.NewExporter(target, logger).Export(ctx, g); err != nil {
		return err
	}
	return nil
}
