// Command scorecast runs the live score broadcasting service: per-game
// schedulers replay recorded points through a broker, and websocket clients
// joined to a game's room receive them in real time.
//
// Usage:
//
//	scorecast -config config.yaml
//
// Every setting can also come from SCORECAST_* environment variables; see
// the config package.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/courtside/scorecast/auth"
	"github.com/courtside/scorecast/broker"
	"github.com/courtside/scorecast/config"
	"github.com/courtside/scorecast/feed"
	"github.com/courtside/scorecast/logger"
	prom "github.com/courtside/scorecast/metrics/prometheus"
	"github.com/courtside/scorecast/ops"
	"github.com/courtside/scorecast/relay"
	"github.com/courtside/scorecast/router"
	"github.com/courtside/scorecast/scheduler"
	"github.com/courtside/scorecast/storage"
	"github.com/courtside/scorecast/telemetry"
	"github.com/courtside/scorecast/transport"
	"github.com/courtside/scorecast/version"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var (
		configPath  string
		verbose     bool
		showVersion bool
	)
	flag.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	flag.BoolVar(&verbose, "verbose", false, "enable debug logging")
	flag.BoolVar(&showVersion, "version", false, "print version information and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetVersionInfo())
		return
	}
	if verbose {
		logger.SetVerbose(true)
	}

	if err := run(configPath); err != nil {
		logger.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger.Info("Starting scorecast", version.GetBuildInfo()...)

	shutdownTracing, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		return err
	}

	// One client serves both the broker and the feeder when either side is
	// on redis.
	var client *redis.Client
	if cfg.App.MessageBroker == config.BrokerRedis || cfg.App.GameFeeder == config.FeederRedis {
		client, err = storage.NewRedisClient(ctx, cfg.App.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer func() { _ = client.Close() }()
	}

	bkr, err := broker.New(cfg, client)
	if err != nil {
		return err
	}
	factory, err := feed.NewFactory(cfg, client)
	if err != nil {
		return err
	}

	hub := transport.NewHub()

	reg := scheduler.NewRegistry(bkr, factory,
		scheduler.WithSchedulerOptions(
			scheduler.WithInterval(cfg.App.DefaultInterval()),
			scheduler.WithPauseTimeout(cfg.App.PauseTimeout()),
		),
		scheduler.WithRemoveHook(func(gameID string) {
			hub.CloseRoom(context.Background(), gameID)
		}),
	)

	rm := relay.NewManager(bkr, hub)

	validator, err := auth.NewValidator(cfg)
	if err != nil {
		return err
	}

	rt := router.NewRouter()
	router.LoadRoutes(rt,
		router.NewControlHandler(validator, reg, bkr, hub),
		router.NewJoinHandler(reg, rm, hub, hub, cfg.Broker.ParseRelayChannels()))

	ws := transport.NewServer(cfg, hub, router.NewDispatcher(rt))
	opsSrv := ops.NewServer(cfg.Server.Addr, reg, ops.WithWebSocket(ws))
	exporter := prom.NewExporter(cfg.Server.MetricsAddr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server listening",
			"addr", cfg.Server.Addr,
			"broker", cfg.App.MessageBroker,
			"feeder", cfg.App.GameFeeder)
		if err := opsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("Metrics listening", "addr", cfg.Server.MetricsAddr)
		if err := exporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics exporter failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown(hub, rm, reg, bkr, opsSrv, exporter, shutdownTracing)
		return nil
	})

	return g.Wait()
}

// shutdown tears the service down in dependency order. The registry goes
// first so its remove hooks can close game rooms while sessions are still
// connected; the HTTP drain comes after the hub so websocket handlers have
// already returned.
func shutdown(
	hub *transport.Hub,
	rm *relay.Manager,
	reg *scheduler.Registry,
	bkr broker.Broker,
	opsSrv *ops.Server,
	exporter *prom.Exporter,
	shutdownTracing func(context.Context) error,
) {
	logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := reg.Shutdown(ctx); err != nil {
		logger.Error("Registry shutdown failed", "error", err)
	}
	rm.StopAll()
	hub.Shutdown(ctx)

	if err := opsSrv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}
	if err := exporter.Shutdown(ctx); err != nil {
		logger.Error("Metrics exporter shutdown failed", "error", err)
	}
	if err := bkr.Shutdown(ctx); err != nil {
		logger.Error("Broker shutdown failed", "error", err)
	}
	if err := shutdownTracing(ctx); err != nil {
		logger.Error("Tracer shutdown failed", "error", err)
	}
}
