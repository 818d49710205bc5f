// SPDX-License-Identifier: MIT

// Command daemon runs the long-lived nfosync synchronization engine: the
// Service event loop, its admin HTTP surface, and (when configured) the
// supplemental filesystem watcher and host notification bridge.
//
// Wiring order follows the teacher's cmd/daemon/main.go: parse flags,
// configure a safe-default logger, load and validate configuration,
// re-configure the logger from it, construct the dependency graph, then
// run everything under one errgroup until a shutdown signal arrives.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/nfosync/nfosync/internal/actions"
	"github.com/nfosync/nfosync/internal/bus"
	"github.com/nfosync/nfosync/internal/cache"
	"github.com/nfosync/nfosync/internal/clock"
	"github.com/nfosync/nfosync/internal/config"
	"github.com/nfosync/nfosync/internal/daemon"
	"github.com/nfosync/nfosync/internal/fswatch"
	"github.com/nfosync/nfosync/internal/hostbridge"
	"github.com/nfosync/nfosync/internal/hostclient"
	"github.com/nfosync/nfosync/internal/httpapi"
	"github.com/nfosync/nfosync/internal/laststate"
	"github.com/nfosync/nfosync/internal/log"
	"github.com/nfosync/nfosync/internal/media"
	"github.com/nfosync/nfosync/internal/service"
	"github.com/nfosync/nfosync/internal/sidecar"
	"github.com/nfosync/nfosync/internal/telemetry"
	"github.com/nfosync/nfosync/internal/timestamps"
)

var version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	log.Configure(log.Config{Level: "info", Service: "nfosync", Version: version})
	logger := log.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Str("path", *configPath).Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.Log.Level, Service: "nfosync", Version: version})
	logger = log.WithComponent("daemon")

	if err := run(ctx, *configPath, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("daemon exited with error")
	}
}

func run(ctx context.Context, configPath string, cfg config.Config, logger zerolog.Logger) error {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "nfosync",
		ServiceVersion: version,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("start telemetry provider: %w", err)
	}

	var respCache cache.Cache
	if cfg.Server.RedisAddr != "" {
		respCache = cache.NewRedisCache(redis.NewClient(&redis.Options{Addr: cfg.Server.RedisAddr}), "nfosync:host:")
	} else {
		respCache = cache.NewMemoryCache(time.Minute)
	}

	host := hostclient.New(hostclient.Config{
		BaseURL:            cfg.Server.HostBaseURL,
		CacheTTL:           30 * time.Second,
		Cache:              respCache,
		CircuitThreshold:   5,
		CircuitMinAttempts: 5,
		CircuitWindow:      time.Minute,
		CircuitResetAfter:  30 * time.Second,
	}, logger)

	gateway := media.NewGateway(host, media.Config{MovieNfoNaming: cfg.Export.MovieNfoNaming})

	lastKnown, err := laststate.Open(cfg.Profile.Dir)
	if err != nil {
		return fmt.Errorf("open last-known store: %w", err)
	}
	ts, err := timestamps.Open(cfg.Profile.Dir + "/timestamps.json")
	if err != nil {
		return fmt.Errorf("open timestamps store: %w", err)
	}

	b := bus.NewMemoryBus()

	deps := &actions.Deps{
		Gateway:    gateway,
		LastKnown:  lastKnown,
		Timestamps: ts,
		Bus:        b,
		Notifier:   host,
		Sidecar:    sidecar.NewWriter(),
		Clock:      clock.Real{},
		Logger:     logger,
	}

	svc := service.New(deps, cfg, b, logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return svc.Run(ctx) })

	if cfg.FSWatch.Enabled {
		watcher, err := fswatch.New(logger, func(item media.Item) {
			payload, err := json.Marshal(struct {
				Type    media.Type `json:"type"`
				ID      uint32     `json:"id"`
				Patient bool       `json:"patient"`
			}{Type: item.Type, ID: item.ID, Patient: false})
			if err != nil {
				return
			}
			topic := bus.Recv(bus.MethodSyncOne)
			_ = b.Publish(ctx, topic, bus.Message{Method: topic, Payload: payload})
		})
		if err != nil {
			logger.Warn().Err(err).Msg("filesystem watcher disabled")
		} else {
			g.Go(func() error {
				watcher.Run(ctx)
				return nil
			})
		}
	}

	bridge := hostbridge.New(hostbridge.Config{Addr: cfg.Server.HostNotifyAddr}, b, logger)
	g.Go(func() error { return bridge.Run(ctx) })

	manager := daemon.NewManager(daemon.Config{
		ListenAddr:      cfg.Server.AdminAddr,
		Handler: httpapi.NewRouter(httpapi.Config{
			Status:       func() any { return svc.Snapshot() },
			RateLimitRPS: 20,
		}),
	}, logger)
	manager.RegisterShutdownHook("telemetry", tp.Shutdown)
	g.Go(func() error { return manager.Start(ctx) })

	if configPath != "" {
		onChange := func(newCfg config.Config) { svc.OnSettingsChanged(ctx, newCfg) }
		if err := config.Watch(ctx, configPath, logger, onChange); err != nil {
			logger.Warn().Err(err).Str("path", configPath).Msg("config hot-reload disabled")
		}
	}

	return g.Wait()
}
