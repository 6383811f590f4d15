// Package main is the entry point for the veilcast application.
package main

import (
	"os"

	"github.com/veilcast/veilcast/cmd/veilcast/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
