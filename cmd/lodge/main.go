// Package main is the entry point for the lodge server.
package main

import (
	"os"

	"github.com/aussiebroadwan/lodge/internal/web/app"
)

func main() {
	cmd := NewRootCmd()
	cmd.Version = app.BuildVersion

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
