package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"habitat/internal/api"
	"habitat/internal/chart"
	"habitat/internal/config"
	"habitat/internal/habitat"
	"habitat/internal/logging"
	"habitat/internal/metrics"
	"habitat/internal/sim"
	"habitat/internal/storage"
	"habitat/internal/stream"
	"habitat/internal/telemetry"
	"habitat/internal/terminal"
)

var reloadInterval time.Duration

// runCmd starts the simulation loop and every enabled surface.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the habitat simulation",
	Long: `Start the telemetry scheduler, the HTTP API and, when enabled, the terminal
listener and Kafka publisher. The config file is polled for changes and
threshold or retention edits are applied without a restart.`,
	RunE: runDaemon,
}

func init() {
	runCmd.Flags().DurationVar(&reloadInterval, "reload-interval", 3*time.Second, "How often to poll the config file for changes")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr, err := loadManager()
	if err != nil {
		return err
	}
	cfg := mgr.Get()
	logger := newLogger(cfg)

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer store.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	col := metrics.NewCollectors(reg)

	hab, err := habitat.Open(ctx, habitat.Options{
		Store:      store,
		Logs:       cfg.Logs,
		Thresholds: cfg.Thresholds,
		Logger:     logger,
		Metrics:    col,
	})
	if err != nil {
		return fmt.Errorf("open habitat state: %w", err)
	}

	seed := cfg.Simulation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	snaps := metrics.NewStore()
	board := chart.NewBoard(cfg.Chart.Window)
	pub := stream.New(cfg.Stream, logger, col)
	defer pub.Close()

	dispatcher := terminal.NewDispatcher(hab, snaps, col, logger)
	api.Start(ctx, api.Deps{
		Config:     mgr,
		Habitat:    hab,
		Snapshots:  snaps,
		Board:      board,
		Terminal:   dispatcher,
		Collectors: col,
		Gatherer:   reg,
		Logger:     logger,
		Version:    version,
	})
	waitTerminal, err := terminal.Start(ctx, cfg.Terminal, dispatcher, logger)
	if err != nil {
		return fmt.Errorf("terminal listener: %w", err)
	}

	if mgr.Path() != "" {
		go mgr.Watch(reloadInterval, func(next *config.Config) {
			hab.ApplyConfig(ctx, next)
			logger.Info("config reloaded", "path", mgr.Path())
		}, func(err error) {
			logger.Warn("config reload failed", "err", err)
		}, ctx.Done())
	}

	scheduler := sim.NewScheduler(sim.Options{
		Generator:         telemetry.NewGenerator(telemetry.NewSeededNormal(seed)),
		Clock:             telemetry.NewClock(cfg.Simulation.TickStep),
		Habitat:           hab,
		Snapshots:         snaps,
		Board:             board,
		Publisher:         pub,
		Collectors:        col,
		Logger:            logger,
		TickInterval:      cfg.Simulation.TickInterval,
		OccupancyInterval: cfg.Simulation.OccupancyInterval,
		Bays:              cfg.Simulation.Bays,
		Occupancy:         telemetry.NewSeededUniform(seed + 1),
	})
	logger.Info("habitat starting", "version", version, "storage", cfg.Storage.Driver, "seed", seed)
	err = scheduler.Run(ctx)
	waitTerminal()
	return err
}

func loadManager() (*config.Manager, error) {
	if configPath == "" {
		return config.NewStaticManager(config.DefaultConfig()), nil
	}
	mgr, err := config.NewManager(config.ResolvePath(configPath))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return mgr, nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return logging.NewLogger(level)
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	store, err := storage.NewStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("init %s store: %w", cfg.Driver, err)
	}
	return store, nil
}
