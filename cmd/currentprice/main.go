package main

import (
	"os"

	"StockFetch/internal/cli"
)

func main() {
	if err := cli.NewCurrentPriceCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
