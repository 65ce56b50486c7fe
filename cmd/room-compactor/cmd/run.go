package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/room-compactor/room-compactor/internal/checkpoint"
	"github.com/room-compactor/room-compactor/internal/scheduler"
	"github.com/room-compactor/room-compactor/internal/store"
	"github.com/room-compactor/room-compactor/pkg/config"
	apperrors "github.com/room-compactor/room-compactor/pkg/errors"
	"github.com/room-compactor/room-compactor/pkg/telemetry"
	"github.com/room-compactor/room-compactor/pkg/utils"
)

// watchClock drives the --watch interval. A package var rather than a
// parameter since runRun is wired up as a cobra RunE.
var watchClock utils.Clock = utils.NewRealClock()

var (
	dbURL         string
	chunkSize     int
	defaultLevels string
	numberOfRooms int
	watch         bool
	metricsAddr   string
)

// runCmd drives the auto-scheduler against a backing store once, or on an
// interval when --watch is set.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Compress the most uncompressed rooms in a backing store",
	RunE:  runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	binName := BinName()
	runCmd.Example = fmt.Sprintf(`  %s run --db-url postgres://localhost/synapse
  %s run --db-url postgres://localhost/synapse --chunk-size 1000 --default-levels 100,50,25
  %s run --db-url postgres://localhost/synapse --watch`, binName, binName, binName)

	runCmd.Flags().StringVar(&dbURL, "db-url", "", "Backing store connection URL (postgres://, mysql://, sqlite://)")
	runCmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Number of state groups to load per chunk (0: use config/default)")
	runCmd.Flags().StringVar(&defaultLevels, "default-levels", "", "Comma-separated level max-lengths, e.g. 100,50,25 (empty: use config/default)")
	runCmd.Flags().IntVar(&numberOfRooms, "number-of-rooms", 0, "How many of the most uncompressed rooms to compress per pass (0: use config/default)")
	runCmd.Flags().BoolVar(&watch, "watch", false, "Keep re-running the scheduler on an interval instead of exiting after one pass")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "If set, serve Prometheus metrics at this address (e.g. :9090)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitWith(err)
	}
	applyFlagOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return exitWith(err)
	}

	levels, err := config.ParseLevels(cfg.Compressor.DefaultLevels)
	if err != nil {
		return exitWith(apperrors.Wrap(apperrors.CodeConfigError, "invalid default_levels", err))
	}

	db, err := store.Connect(cfg.Database.URL)
	if err != nil {
		return exitWith(err)
	}

	st := store.NewGormStore(db)
	cp := checkpoint.NewGormStore(db)
	sched := scheduler.New(st, cp, levels)
	sched.Logger = GetLogger()

	ctx := context.Background()
	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		GetLogger().Warn("telemetry init failed: %v", err)
	}
	defer shutdown(ctx)

	if cfg.Metrics.Addr != "" {
		sched.Metrics = telemetry.NewMetrics()
		go func() {
			if err := sched.Metrics.Serve(ctx, cfg.Metrics.Addr); err != nil {
				GetLogger().Error("metrics server stopped: %v", err)
			}
		}()
	}

	runOnce := func() error {
		summaries, err := sched.CompressLargest(ctx, cfg.Scheduler.NumberOfRooms, cfg.Compressor.ChunkSize)
		if err != nil {
			return err
		}
		for _, s := range summaries {
			GetLogger().Info("room %s: rows_saved=%d chunks_committed=%d chunks_skipped=%d",
				s.RoomID, s.RowsSaved, s.ChunksCommitted, s.ChunksSkipped)
		}
		return nil
	}

	if !watch && cfg.Scheduler.WatchInterval == 0 {
		if err := runOnce(); err != nil {
			return exitWith(err)
		}
		return nil
	}

	interval := time.Duration(cfg.Scheduler.WatchInterval) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := watchClock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runOnce(); err != nil {
			return exitWith(err)
		}
		<-ticker.C
	}
}

// applyFlagOverrides layers explicitly-set flags over the loaded config,
// leaving config-file/env/default values in place for anything unset.
func applyFlagOverrides(cfg *config.Config) {
	if dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if chunkSize != 0 {
		cfg.Compressor.ChunkSize = chunkSize
	}
	if defaultLevels != "" {
		cfg.Compressor.DefaultLevels = defaultLevels
	}
	if numberOfRooms != 0 {
		cfg.Scheduler.NumberOfRooms = numberOfRooms
	}
	if watch && cfg.Scheduler.WatchInterval == 0 {
		cfg.Scheduler.WatchInterval = 60
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
}

// exitWith logs the error and returns it so cobra exits nonzero; every
// error ends the run, since run has no per-room boundary to recover
// across. Invocation-fatal codes (ConfigError, ConnectError) are also
// printed to stderr.
func exitWith(err error) error {
	code := apperrors.GetErrorCode(err)
	GetLogger().Error("room-compactor run failed: %v", err)
	if apperrors.Fatal(code) {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}
