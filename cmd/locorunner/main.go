package main

import (
	"os"

	"github.com/frherrer/GoE2E-LocoRunner/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
