// Command recordstore reads and writes the alarm event table.
package main

import (
	"os"

	"github.com/rzpsarthak13/recordstore/internal/cli"

	// registers the duckdb driver
	_ "github.com/rzpsarthak13/recordstore/internal/database/duckdb"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
