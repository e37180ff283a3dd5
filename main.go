// ./main.go
package main

import (
	"github.com/Joakim-Sael/webmcp-bridge/cmd"
)

// main is the entry point for the webmcp-bridge daemon.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
