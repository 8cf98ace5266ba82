// Package main provides the entry point for the ttlstash command.
//
// ttlstash reads and edits expiring key-value namespaces in any of the
// supported backends: a directory, Badger, SQLite, Redis or process memory.
package main

import (
	"fmt"
	"os"

	"github.com/yndnr/ttlstash/internal/cli/command"
)

func main() {
	app := command.App()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
