// main is the entry point of the student records admin app.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger and metrics
//  3. Build the store client, session store and handlers
//  4. Register all HTTP routes behind CSRF protection
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-admin --config=config/local.yaml
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

	"github.com/gorilla/csrf"
	"github.com/gorilla/mux"

	"github.com/aanand-mishra/students-admin/internal/auth"
	"github.com/aanand-mishra/students-admin/internal/config"
	"github.com/aanand-mishra/students-admin/internal/http/handlers/admin"
	"github.com/aanand-mishra/students-admin/internal/metrics"
	"github.com/aanand-mishra/students-admin/internal/storeclient"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger and Metrics ──────────────────────────────────

	log := config.NewLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-admin",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
		slog.String("store", cfg.Admin.StoreURL),
	)

	storeMetrics := metrics.NewStore()

	// ── 3. Build Dependencies ─────────────────────────────────────────────
	// Store calls are counted on storeMetrics. The cookie store backs
	// both the access flag and the demo user record.
	store, err := storeclient.New(cfg.Admin.StoreURL,
		storeclient.WithTimeout(cfg.Admin.StoreTimeout),
		storeclient.WithMetrics(storeMetrics),
	)
	if err != nil {
		log.Error("failed to build store client",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	sessions := auth.NewCookieStore([]byte(cfg.Admin.SessionKey), cfg.Admin.SecureCookies)
	gate := auth.New(sessions, log)

	views := admin.NewViews(store, log,
		admin.WithMaxViews(cfg.Admin.MaxViews),
		admin.WithViewTTL(cfg.Admin.ViewTTL),
	)

	handler, err := admin.New(gate, views, log)
	if err != nil {
		log.Error("failed to initialise handlers",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	// /metrics sits on the same router, so it is behind CSRF too; that
	// only affects unsafe methods and /metrics is GET-only.
	router := mux.NewRouter()
	router.Handle("/metrics", storeMetrics.Handler()).Methods(http.MethodGet)
	handler.Routes(router)

	protect := csrf.Protect([]byte(cfg.Admin.CSRFKey),
		csrf.Secure(cfg.Admin.SecureCookies),
		csrf.Path("/"),
		csrf.SameSite(csrf.SameSiteLaxMode),
	)

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	server := &http.Server{
		Addr:    cfg.Admin.Addr,
		Handler: protect(router),

		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	go func() {
		log.Info("server started", slog.String("address", cfg.Admin.Addr))

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

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}
