package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/candle-sync/internal/batch"
	"github.com/candle-sync/internal/cache"
	"github.com/candle-sync/internal/catalog"
	"github.com/candle-sync/internal/checkpoint"
	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/internal/exchange"
	"github.com/candle-sync/internal/external"
	"github.com/candle-sync/internal/ingest"
	"github.com/candle-sync/internal/messaging"
	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/logger"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runInterval        string
	runCheckpointEvery int
	runPace            time.Duration
	runCursorName      string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one checkpointed pass over the instrument catalog",
	Long: `Run a single synchronization pass over all active instruments.

The pass walks the catalog in a fixed order (category, then symbol), decides
a backfill depth per instrument from how much data it already has, fetches
the missing candles and writes them to InfluxDB. Progress is checkpointed
to MySQL so a killed run resumes where it stopped. Scheduling repeated
passes is the job of cron or a systemd timer, not this process.

Examples:
  # Daily candles, defaults from the environment
  candle-sync run

  # Hourly candles, checkpoint after every instrument
  candle-sync run --interval 1h --checkpoint-every 1

  # Slow down for a strict upstream rate limit
  candle-sync run --pace 5s`,
	RunE: runSync,
}

func init() {
	runCmd.Flags().StringVar(&runInterval, "interval", "", "Candle interval (1m, 5m, 15m, 30m, 1h, 4h, 1d)")
	runCmd.Flags().IntVar(&runCheckpointEvery, "checkpoint-every", 0, "Checkpoint after this many instruments")
	runCmd.Flags().DurationVar(&runPace, "pace", 0, "Minimum delay between upstream fetches")
	runCmd.Flags().StringVar(&runCursorName, "cursor", "", "Name of the progress cursor")

	rootCmd.AddCommand(runCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	// Load .env file first
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Command line flags override the environment
	if runInterval != "" {
		cfg.Sync.BarInterval = runInterval
	}
	if cmd.Flags().Changed("checkpoint-every") {
		cfg.Sync.CheckpointEvery = runCheckpointEvery
	}
	if cmd.Flags().Changed("pace") {
		cfg.Sync.PaceInterval = runPace
	}
	if runCursorName != "" {
		cfg.Sync.CursorName = runCursorName
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}

	validIntervals := []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d"}
	isValid := false
	for _, v := range validIntervals {
		if v == cfg.Sync.BarInterval {
			isValid = true
			break
		}
	}
	if !isValid {
		return fmt.Errorf("invalid interval: %s. Valid intervals: %s",
			cfg.Sync.BarInterval, strings.Join(validIntervals, ", "))
	}
	if cfg.Sync.CheckpointEvery < 1 {
		return fmt.Errorf("invalid checkpoint group size: %d", cfg.Sync.CheckpointEvery)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.WithFields(logrus.Fields{
		"interval":         cfg.Sync.BarInterval,
		"checkpoint_every": cfg.Sync.CheckpointEvery,
		"pace":             cfg.Sync.PaceInterval.String(),
		"cursor":           cfg.Sync.CursorName,
	}).Info("🚀 Starting candle sync")

	// Storage
	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	influxClient := database.NewInfluxClient(&cfg.InfluxDB, log)
	defer influxClient.Close()

	// Upstream providers. Binance is always on, OANDA and Alpha Vantage
	// join when credentials are configured.
	binanceClient := exchange.NewBinanceClient(&cfg.Providers.Binance, log)

	var oandaClient *exchange.OANDAClient
	if cfg.Providers.OANDA.APIKey != "" && cfg.Providers.OANDA.AccountID != "" {
		oandaClient = exchange.NewOANDAClient(&cfg.Providers.OANDA, log)
	} else {
		log.Info("OANDA credentials not set, forex and index instruments will fail")
	}

	var alphaClient *external.AlphaVantageClient
	if cfg.Providers.AlphaVantage.APIKey != "" {
		alphaClient = external.NewAlphaVantageClient(&cfg.Providers.AlphaVantage, log)
	} else {
		log.Info("Alpha Vantage key not set, equity instruments will fail")
	}

	// Engine wiring
	source := catalog.NewSource(mysqlClient, log)
	cursor := checkpoint.NewStore(mysqlClient, cfg.Sync.CursorName, log)
	syncer := ingest.NewHistorySyncer(influxClient, binanceClient, oandaClient, alphaClient, cfg.Sync.BarInterval, log)
	executor := batch.NewExecutor(influxClient, syncer, cfg.Sync.BarInterval, log)
	limiter := batch.NewRateLimiter(cfg.Sync.PaceInterval)

	controller := batch.NewController(source, cursor, executor, limiter, cfg.Sync.CheckpointEvery, log)

	// Optional sinks
	if cfg.Redis.Enabled {
		redisClient, err := cache.NewRedisClient(&cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		defer redisClient.Close()
		controller.SetStatusCache(cache.NewStatusCache(redisClient, cfg.Sync.StatusTTL, log))
	}

	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(&cfg.NATS, log)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsClient.Drain()
		controller.SetEventPublisher(natsClient)
	}

	// Cancel the run context on SIGINT/SIGTERM. The controller finishes
	// the instrument in flight, checkpoints and exits.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		sig := <-interrupt
		log.WithField("signal", sig.String()).Info("🛑 Shutdown signal received, finishing current instrument")
		cancel()
	}()

	summary, runErr := controller.Run(ctx)

	// The summary is logged no matter how the run ended
	log.WithFields(logrus.Fields{
		"run_id":    summary.RunID,
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"skipped":   summary.Skipped,
		"failed":    summary.Failed,
		"records":   summary.Records,
		"duration":  summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String(),
	}).Info("Run summary")

	if runErr != nil {
		log.WithError(runErr).Error("❌ Sync run aborted")
		return runErr
	}

	log.Info("✅ Sync run completed")
	return nil
}
