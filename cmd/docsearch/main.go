// Package main provides the entry point for the docsearch CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"docsearch/cmd/docsearch/cmd"
)

func main() {
	_ = godotenv.Load()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
