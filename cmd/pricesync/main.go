package main

import (
	"os"

	"StockFetch/internal/cli"
)

func main() {
	if err := cli.NewPriceSyncCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
