// File: cmd/webmcp-bridge/main.go
package main

import (
	"github.com/Joakim-Sael/webmcp-bridge/cmd"
)

func main() {
	cmd.Execute()
}
