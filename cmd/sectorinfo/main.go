package main

import (
	"os"

	"StockFetch/internal/cli"
)

func main() {
	if err := cli.NewSectorInfoCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
