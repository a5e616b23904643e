// Package main is the entry point for the doorman client helper CLI.
package main

import (
	"os"

	"github.com/doorman-auth/doorman/cmd/doorman/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
