package main

import (
	"os"

	"github.com/tf2hud/hudman/cmd/hudman/commands"
)

func main() {
	rootCmd := commands.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
