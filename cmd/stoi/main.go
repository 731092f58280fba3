// Package main provides the stoi CLI.
//
// Usage:
//
//	stoi [flags] <command> [args]
//
// Commands:
//
//	score   - Score one clean/degraded pair of audio files
//	batch   - Score every pair listed in a YAML manifest
//	version - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/RyanBlaney/sonido-stoi/cmd/stoi/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
