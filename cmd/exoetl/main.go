// Package main is the entry point for the exoetl binary.
package main

import (
	"os"

	"exo-etl/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
