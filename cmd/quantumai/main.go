package main

import (
	"os"

	"github.com/rustyeddy/quantumai/cmd/quantumai/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
