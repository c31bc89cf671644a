// Command server runs the HTTP surface for the entitlement core: provider
// webhooks, the redeem-code endpoint, and health/metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/vellumapp/platform/pkg/platform"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (defaults to built-in defaults plus env overrides)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := platform.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := platform.New(ctx, cfg)
	if err != nil {
		log.Fatalf("build app: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := app.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown: %v", err)
	}
}
