package commands

import (
	"github.com/spf13/cobra"
)

var (
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "candle-sync",
	Short: "Checkpointed Historical Candle Sync",
	Long: `A checkpointed bulk synchronization engine for historical market candles.

Features:
• Single ordered pass over the instrument catalog (crypto, forex, equities, indices)
• Volume-aware backfill depth per instrument
• Durable cursor, a killed run resumes where it stopped
• Paced upstream requests to stay inside provider rate limits
• Per-instrument sync status in Redis with TTL
• Run and progress events on NATS JetStream`,
	Version: "1.0.0",
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
