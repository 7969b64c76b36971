package main

import (
	"os"

	"github.com/wonny/kabu/cmd/kabu/commands"
)

// main is the entry point for the kabu CLI
// ⭐ single CLI entry point: go run ./cmd/kabu [command]
func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
