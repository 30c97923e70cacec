package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/candle-sync/internal/cache"
	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/logger"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync progress",
	Long: `Show the catalog size, the current cursor position and, when Redis
is enabled, the most recent per-instrument sync results.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(); err != nil {
			fmt.Printf("Note: .env file not loaded: %v\n", err)
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err := logger.New(&cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
		if err != nil {
			return fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		defer mysqlClient.Close()

		ctx := context.Background()

		total, active, err := mysqlClient.CountInstruments(ctx)
		if err != nil {
			return fmt.Errorf("failed to count instruments: %w", err)
		}

		position, found, err := mysqlClient.GetSyncCursor(ctx, cfg.Sync.CursorName)
		if err != nil {
			return fmt.Errorf("failed to read cursor: %w", err)
		}

		fmt.Printf("Catalog: %d instruments (%d active)\n", total, active)
		if found {
			fmt.Printf("Cursor %q: %d of %d, next run resumes here\n", cfg.Sync.CursorName, position, active)
		} else {
			fmt.Printf("Cursor %q: not set, next run starts from the beginning\n", cfg.Sync.CursorName)
		}

		if !cfg.Redis.Enabled {
			return nil
		}

		redisClient, err := cache.NewRedisClient(&cfg.Redis, log)
		if err != nil {
			fmt.Printf("Note: Redis unavailable, skipping per-instrument status: %v\n", err)
			return nil
		}
		defer redisClient.Close()

		statuses, err := cache.NewStatusCache(redisClient, cfg.Sync.StatusTTL, log).List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list statuses: %w", err)
		}
		if len(statuses) == 0 {
			fmt.Println("\nNo per-instrument statuses cached")
			return nil
		}

		sort.Slice(statuses, func(i, j int) bool {
			return statuses[i].Symbol < statuses[j].Symbol
		})

		fmt.Printf("\n%-15s %-10s %-10s %-12s %s\n", "Symbol", "Status", "Records", "Position", "Updated")
		fmt.Println(strings.Repeat("-", 75))
		for _, s := range statuses {
			pos := fmt.Sprintf("%d/%d", s.Position, s.Total)
			fmt.Printf("%-15s %-10s %-10d %-12s %s\n",
				s.Symbol, s.Status, s.Records, pos, s.UpdatedAt.Format("2006-01-02 15:04:05"))
			if s.Error != "" {
				fmt.Printf("  └─ %s\n", s.Error)
			}
		}
		fmt.Printf("\nTotal: %d statuses\n", len(statuses))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
