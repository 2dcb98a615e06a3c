// main is the entry point of the Registration API.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Start the deadline gate (refuses everything once registration closes)
//  4. Open the draft store and the persistence backend chosen in config
//  5. Register all HTTP routes
//  6. Start the HTTP server in a separate goroutine
//  7. Block until an OS signal (Ctrl+C / kill) arrives, then shut down
//
// RUNNING THE SERVER:
//
//	go run ./cmd/registration-api --config=config/local.yaml
//
// or (with the environment variable):
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/registration-api
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aanand-mishra/registration-api/internal/chat"
	"github.com/aanand-mishra/registration-api/internal/config"
	"github.com/aanand-mishra/registration-api/internal/deadline"
	"github.com/aanand-mishra/registration-api/internal/draft"
	"github.com/aanand-mishra/registration-api/internal/http/handlers/assistant"
	"github.com/aanand-mishra/registration-api/internal/http/handlers/form"
	"github.com/aanand-mishra/registration-api/internal/metrics"
	"github.com/aanand-mishra/registration-api/internal/registration"
	"github.com/aanand-mishra/registration-api/internal/storage"
	"github.com/aanand-mishra/registration-api/internal/storage/postgres"
	"github.com/aanand-mishra/registration-api/internal/storage/redis"
	"github.com/aanand-mishra/registration-api/internal/storage/rest"
	"github.com/aanand-mishra/registration-api/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Handlers log through slog's package-level functions, so the
	// configured logger also becomes the default.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting registration-api",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── 3. Deadline Gate ──────────────────────────────────────────────────
	// Config validation already parsed the deadline once.
	deadlineAt, _ := cfg.DeadlineTime()
	gate := deadline.New(deadlineAt, time.Now, log)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	m.SetOpen(!gate.Closed())

	go func() {
		gate.Run(ctx)
		m.SetOpen(!gate.Closed())
	}()

	log.Info("deadline gate ready",
		slog.String("deadline", deadlineAt.Format(time.RFC3339)),
		slog.Bool("closed", gate.Closed()))

	// ── 4. Storage ────────────────────────────────────────────────────────
	// Both stores are picked by config. Everything above this point only
	// sees the draft.Backend and storage.Caller interfaces.
	var closers []io.Closer

	var local *sqlite.SQLite
	openSQLite := func() (*sqlite.SQLite, error) {
		if local != nil {
			return local, nil
		}
		if err := os.MkdirAll(filepath.Dir(cfg.StoragePath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		db, err := sqlite.New(cfg.StoragePath)
		if err != nil {
			return nil, err
		}
		local = db
		closers = append(closers, db)
		log.Info("sqlite storage initialised", slog.String("path", cfg.StoragePath))
		return db, nil
	}

	backend, err := openDraftBackend(ctx, cfg, openSQLite, &closers)
	if err != nil {
		log.Error("failed to initialise draft store",
			slog.String("driver", cfg.Drafts.Driver),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	caller, err := openCaller(ctx, cfg, openSQLite, &closers)
	if err != nil {
		log.Error("failed to initialise persistence",
			slog.String("driver", cfg.Persistence.Driver),
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised",
		slog.String("drafts", cfg.Drafts.Driver),
		slog.String("persistence", cfg.Persistence.Driver))

	svc := registration.New(registration.Deps{
		Drafts:        draft.New(backend, log),
		Submitter:     storage.NewAdapter(caller, log),
		Gate:          gate,
		Metrics:       m,
		Log:           log,
		SessionTTL:    cfg.SessionTTL,
		SubmitTimeout: cfg.Persistence.Timeout,
	})

	chatClient := chat.New(chat.Config{
		BaseURL: cfg.Chat.BaseURL,
		Model:   cfg.Chat.Model,
		APIKey:  cfg.Chat.APIKey,
		Timeout: cfg.Chat.Timeout,
	}, log)

	// ── 5. Register HTTP Routes ───────────────────────────────────────────
	// Route table:
	//   POST   /api/registrations                   → start or resume
	//   GET    /api/registrations/{id}              → current form view
	//   PATCH  /api/registrations/{id}/fields       → edit one field
	//   POST   /api/registrations/{id}/next         → validate phase, advance
	//   POST   /api/registrations/{id}/previous     → go back
	//   POST   /api/registrations/{id}/review       → full validation, summary
	//   POST   /api/registrations/{id}/review-again → close the summary
	//   POST   /api/registrations/{id}/confirm      → submit
	//   GET    /api/deadline                        → countdown
	//   GET    /api/countries                       → country select options
	//   POST   /api/chat                            → program assistant
	//   GET    /metrics                             → Prometheus
	router := http.NewServeMux()

	router.HandleFunc("POST /api/registrations", form.New(svc))
	router.HandleFunc("GET /api/registrations/{id}", form.GetByID(svc))
	router.HandleFunc("PATCH /api/registrations/{id}/fields", form.EditField(svc))
	router.HandleFunc("POST /api/registrations/{id}/next", form.Next(svc))
	router.HandleFunc("POST /api/registrations/{id}/previous", form.Previous(svc))
	router.HandleFunc("POST /api/registrations/{id}/review", form.Review(svc))
	router.HandleFunc("POST /api/registrations/{id}/review-again", form.ReviewAgain(svc))
	router.HandleFunc("POST /api/registrations/{id}/confirm", form.Confirm(svc))
	router.HandleFunc("GET /api/deadline", form.Deadline(gate))
	router.HandleFunc("GET /api/countries", form.Countries())
	router.HandleFunc("POST /api/chat", assistant.New(chatClient, m.IncrementChatFailures))
	router.Handle("GET /metrics", m.Handler())

	// ── 6. Create and Start the HTTP Server ───────────────────────────────
	// The write timeout leaves room for a slow persistence call on confirm
	// and a slow assistant answer.
	writeTimeout := max(cfg.Persistence.Timeout, cfg.Chat.Timeout) + 5*time.Second

	server := &http.Server{
		Addr:         cfg.HTTPServer.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.HTTPServer.Addr))

		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")
	cancel()

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// In-flight confirmations get the persistence timeout to finish.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Persistence.Timeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			log.Warn("failed to close storage", slog.String("error", err.Error()))
		}
	}

	log.Info("server stopped gracefully")
}

// openDraftBackend returns the draft.Backend named by cfg.Drafts.Driver.
func openDraftBackend(ctx context.Context, cfg *config.Config, openSQLite func() (*sqlite.SQLite, error), closers *[]io.Closer) (draft.Backend, error) {
	switch cfg.Drafts.Driver {
	case config.DriverMemory:
		return draft.NewMemory(), nil
	case config.DriverRedis:
		client, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, client)
		return client, nil
	default:
		return openSQLite()
	}
}

// openCaller returns the storage.Caller named by cfg.Persistence.Driver.
func openCaller(ctx context.Context, cfg *config.Config, openSQLite func() (*sqlite.SQLite, error), closers *[]io.Closer) (storage.Caller, error) {
	switch cfg.Persistence.Driver {
	case config.DriverPostgres:
		pg, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, pg)
		if cfg.Postgres.Migrate {
			if err := pg.Migrate(ctx); err != nil {
				return nil, err
			}
		}
		return pg, nil
	case config.DriverRest:
		return rest.New(cfg.Rest.URL, cfg.Rest.APIKey, cfg.Persistence.Timeout), nil
	default:
		return openSQLite()
	}
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Staging: JSON at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
