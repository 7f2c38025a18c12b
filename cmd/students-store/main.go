// main is the entry point of the development student store: a small JSON
// REST service the admin app can be pointed at locally.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file
//  2. Initialise the logger
//  3. Open (and set up) the SQLite database
//  4. Register all HTTP routes
//  5. Start the HTTP server in a separate goroutine
//  6. Block until an OS signal (Ctrl+C / kill) arrives
//  7. Gracefully shut down: finish in-flight requests, then exit
//
// RUNNING THE SERVER:
//
//	go run ./cmd/students-store --config=config/local.yaml
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aanand-mishra/students-admin/internal/config"
	"github.com/aanand-mishra/students-admin/internal/http/handlers/student"
	"github.com/aanand-mishra/students-admin/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	// MustLoad exits the process on a bad or missing file, so from here
	// on cfg is known to be complete.
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Text output in dev, JSON in staging and prod. SetDefault makes
	// packages that fall back to slog.Default() log the same way.
	log := config.NewLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting students-store",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage (Database) ──────────────────────────────────
	// SQLite will not create missing parent directories for the .db file.
	if err := os.MkdirAll(filepath.Dir(cfg.Store.StoragePath), 0o750); err != nil {
		log.Error("failed to create storage directory",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	// The rest of the code only knows about storage.Storage, so swapping
	// the backend only requires changing this one line.
	storage, err := sqlite.New(cfg.Store.StoragePath)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	log.Info("storage initialised",
		slog.String("path", cfg.Store.StoragePath))

	// ── 4. Register HTTP Routes ───────────────────────────────────────────
	// student.Register wires the handler factories onto a Go 1.22
	// ServeMux using METHOD + pattern routes.
	//
	// Route table:
	//   POST   /students        → create a new student
	//   GET    /students        → list all students
	//   GET    /students/{id}   → get one student by id
	//   PUT    /students/{id}   → update a student
	//   DELETE /students/{id}   → delete a student
	router := http.NewServeMux()
	student.Register(router, storage)

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	server := &http.Server{
		Addr:    cfg.Store.Addr,
		Handler: router,

		// Timeouts keep slow clients from holding connections open.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ── 6. Start Server in a Goroutine ────────────────────────────────────
	// ListenAndServe blocks, so it runs on its own goroutine and main
	// moves on to wait for a signal.
	go func() {
		log.Info("server started", slog.String("address", cfg.Store.Addr))

		// ListenAndServe returns http.ErrServerClosed when Shutdown() is
		// called. That's expected, not an error.
		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 7. Wait for Shutdown Signal ───────────────────────────────────────
	// Buffered so a signal sent before <-done is reached is not lost.
	//   os.Interrupt    = Ctrl+C (SIGINT)
	//   syscall.SIGTERM = kill <pid>, or a container runtime stopping us
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	// ── 8. Graceful Shutdown ──────────────────────────────────────────────
	// Shutdown stops accepting connections and waits up to 5 seconds for
	// in-flight requests. The deferred storage.Close runs after it.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}
