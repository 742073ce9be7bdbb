package main

import (
	"os"

	"github.com/shapekiln/kiln/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
