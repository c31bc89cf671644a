// Command worker runs the background side of the entitlement core: the
// cron leaser's poll loop and the image pipeline's durable bus subscription.
// It shares the document store, bus, and mutex with cmd/server but carries
// no HTTP surface of its own.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

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

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.Leaser.Run(gctx, app.CronJobs())
	})

	g.Go(func() error {
		return app.ImagePipe.Run(gctx)
	})

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		log.Fatalf("worker: %v", err)
	}
}
