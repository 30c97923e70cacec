package main

import (
	"os"

	"github.com/candle-sync/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}