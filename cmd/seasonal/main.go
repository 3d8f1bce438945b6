package main

import (
	"os"

	"github.com/eddiefleurent/seasonal_trader/cmd/seasonal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
