package main

import (
	"fmt"
	"os"

	"github.com/danieldevos90/brutally-honest-ai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
