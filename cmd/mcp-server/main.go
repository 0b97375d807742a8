package main

import (
	"os"

	"mcp-tools-go/cmd/mcp-server/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
