package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"llm_router/internal/config"
	"llm_router/internal/httpapi"
	"llm_router/internal/logging"
)

func main() {
	// .env is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.Warningf("Failed to read .env file: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatalf("Failed to load config: %v", err)
	}
	logging.Configure(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatalf("Router exited with error: %v", err)
	}
	logging.Infof("Router exited")
}

func run(ctx context.Context, cfg *config.Config) error {
	app, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.close()

	addr := ":" + cfg.HTTP.Port
	server := &http.Server{
		Addr:        addr,
		Handler:     httpapi.NewRouter(app.deps),
		ReadTimeout: cfg.HTTP.ReadTimeout,
		IdleTimeout: cfg.HTTP.IdleTimeout,
		// no WriteTimeout: chat responses are long-lived event streams
	}

	g, gctx := errgroup.WithContext(ctx)

	// The archiver outlives the listener so records of sessions that end
	// during shutdown are still written.
	archiveCtx, stopArchive := context.WithCancel(context.Background())
	defer stopArchive()

	g.Go(func() error {
		logging.Infof("LLM router listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if app.archiver != nil {
		g.Go(func() error {
			return app.archiver.Run(archiveCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logging.Infof("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Warningf("Server forced to shutdown: %v", err)
		}
		stopArchive()
		return nil
	})

	return g.Wait()
}
