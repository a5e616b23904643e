// Package main is the entry point for the doormand authorization server.
package main

import (
	"os"

	"github.com/doorman-auth/doorman/cmd/doormand/app"
)

func main() {
	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
