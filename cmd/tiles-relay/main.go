// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// tiles-relay hosts a tile telemetry pipeline behind a local HTTP
// endpoint. Producers on the same host POST actions and views; the
// relay queues them, spools them to SQLite, and uploads batches to the
// collector on a fixed interval.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/tiles/lib/config"
	"github.com/bureau-foundation/tiles/lib/process"
	"github.com/bureau-foundation/tiles/lib/service"
	"github.com/bureau-foundation/tiles/lib/tiles"
	"github.com/bureau-foundation/tiles/lib/tileupload"
	"github.com/bureau-foundation/tiles/lib/version"
)

// shutdownTimeout bounds the final flush and upload.
const shutdownTimeout = 30 * time.Second

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		debug       bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("tiles-relay", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to tiles.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&debug, "debug", false, "enable debug logging and goroutine affinity checks")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		version.Print(os.Stdout, "tiles-relay")
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	logger := service.NewLogger(cfg.Debug).With("component", "tiles-relay")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pipeline, err := tiles.Open(ctx, pipelineConfig(cfg, logger))
	if err != nil {
		return err
	}

	relay := newRelay(pipeline, logger)
	go relay.owner.run()

	server := service.NewHTTPServer(service.HTTPServerConfig{
		Address: cfg.Listen.Address,
		Handler: relay.routes(),
		Logger:  logger,
	})

	logger.Info("tiles relay starting",
		"version", version.Info(),
		"environment", cfg.Environment,
		"listen", cfg.Listen.Address,
		"upload_url", cfg.Upload.URL,
		"interval", cfg.Upload.Interval,
	)

	serveErr := server.Serve(ctx)

	shutdownContext, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	shutdownErr := relay.shutdown(shutdownContext)
	if shutdownErr != nil {
		logger.Error("pipeline shutdown failed", "error", shutdownErr)
	} else {
		logger.Info("tiles relay stopped", "queued", pipeline.Status().QueueLength)
	}
	return errors.Join(serveErr, shutdownErr)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// pipelineConfig maps the file configuration onto the pipeline.
func pipelineConfig(cfg *config.Config, logger *slog.Logger) tiles.Config {
	return tiles.Config{
		StatePath: cfg.State.Path,
		Durable:   cfg.State.Durable,
		Upload: tileupload.HTTPConfig{
			URL:         cfg.Upload.URL,
			Timeout:     cfg.Upload.Timeout,
			UserAgent:   cfg.Upload.UserAgent + "/" + version.Short(),
			Compression: tileupload.Compression(cfg.Upload.Compression),
		},
		Interval: cfg.Upload.Interval,
		Backoff: tileupload.Backoff{
			Initial: cfg.Upload.Backoff.Initial,
			Max:     cfg.Upload.Backoff.Max,
		},
		MaxEvents: cfg.Queue.MaxEvents,
		Debug:     cfg.Debug,
		Logger:    logger,
	}
}
