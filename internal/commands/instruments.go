package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/candle-sync/internal/catalog"
	"github.com/candle-sync/internal/database"
	"github.com/candle-sync/pkg/config"
	"github.com/candle-sync/pkg/logger"
	"github.com/spf13/cobra"
)

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "Manage the instrument catalog",
	Long:  "Commands for seeding and inspecting the instrument catalog",
}

var seedInstrumentsCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the catalog from the configured providers",
	Long: `Discover instruments from Binance and OANDA and upsert them into MySQL.

Binance contributes USDT spot pairs, OANDA contributes forex pairs, metals
and index CFDs when credentials are configured. Re-running is safe, known
instruments are updated in place.`,
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

		seeder := catalog.NewSeeder(mysqlClient, cfg, log)
		if err := seeder.SeedAll(ctx); err != nil {
			return fmt.Errorf("seeding failed: %w", err)
		}

		total, active, err := mysqlClient.CountInstruments(ctx)
		if err != nil {
			return fmt.Errorf("failed to count instruments: %w", err)
		}

		fmt.Printf("Catalog seeded: %d instruments (%d active)\n", total, active)
		return nil
	},
}

var listInstrumentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List instruments",
	Long:  "List catalog instruments in sync order",
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

		category, _ := cmd.Flags().GetString("category")
		venue, _ := cmd.Flags().GetString("venue")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		instruments, err := mysqlClient.GetInstruments(ctx, category, venue, limit)
		if err != nil {
			return fmt.Errorf("failed to list instruments: %w", err)
		}

		fmt.Printf("%-15s %-10s %-14s %-8s %-8s %-8s\n",
			"Symbol", "Category", "Venue", "Base", "Quote", "Active")
		fmt.Println(strings.Repeat("-", 70))

		for _, inst := range instruments {
			fmt.Printf("%-15s %-10s %-14s %-8s %-8s %-8v\n",
				inst.Symbol,
				inst.Category,
				inst.Venue,
				inst.BaseCurrency,
				inst.QuoteCurrency,
				inst.IsActive,
			)
		}

		fmt.Printf("\nTotal: %d instruments\n", len(instruments))
		return nil
	},
}

var showInstrumentCmd = &cobra.Command{
	Use:   "show [symbol]",
	Short: "Show one instrument and its stored data range",
	Args:  cobra.ExactArgs(1),
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
		symbol := strings.ToUpper(args[0])

		inst, err := mysqlClient.GetInstrument(ctx, symbol)
		if err != nil {
			return fmt.Errorf("failed to load instrument: %w", err)
		}
		if inst == nil {
			return fmt.Errorf("instrument not found: %s", symbol)
		}

		fmt.Printf("Symbol:    %s\n", inst.Symbol)
		fmt.Printf("Name:      %s\n", inst.FullName)
		fmt.Printf("Category:  %s\n", inst.Category)
		fmt.Printf("Venue:     %s\n", inst.Venue)
		fmt.Printf("Pair:      %s/%s\n", inst.BaseCurrency, inst.QuoteCurrency)
		fmt.Printf("Active:    %v\n", inst.IsActive)

		interval, _ := cmd.Flags().GetString("interval")

		influxClient := database.NewInfluxClient(&cfg.InfluxDB, log)
		defer influxClient.Close()

		earliest, latest, count, err := influxClient.GetDataTimeRange(ctx, inst.Symbol, interval)
		if err != nil {
			return fmt.Errorf("failed to read data range: %w", err)
		}

		if count == 0 {
			fmt.Printf("\nNo %s candles stored yet\n", interval)
			return nil
		}

		fmt.Printf("\nStored %s candles: %d\n", interval, count)
		fmt.Printf("Earliest:  %s\n", earliest.Format("2006-01-02 15:04:05"))
		fmt.Printf("Latest:    %s\n", latest.Format("2006-01-02 15:04:05"))

		if bar, err := influxClient.GetLatestBar(ctx, inst.Symbol, interval); err == nil && bar != nil {
			fmt.Printf("Last close: %.8f (volume %.4f)\n", bar.Close, bar.Volume)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(instrumentsCmd)

	instrumentsCmd.AddCommand(seedInstrumentsCmd)
	instrumentsCmd.AddCommand(listInstrumentsCmd)
	instrumentsCmd.AddCommand(showInstrumentCmd)

	listInstrumentsCmd.Flags().StringP("category", "c", "", "Filter by category (crypto, forex, equity, index)")
	listInstrumentsCmd.Flags().StringP("venue", "e", "", "Filter by venue (binance, oanda, alphavantage)")
	listInstrumentsCmd.Flags().IntP("limit", "l", 0, "Limit number of results")

	showInstrumentCmd.Flags().StringP("interval", "i", "1d", "Candle interval to inspect")
}
