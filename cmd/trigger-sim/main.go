package main

import (
	"os"

	"github.com/spf13/cobra"
)

var Command = &cobra.Command{
	Use:          "trigger-sim",
	Short:        "replay or follow an event log through a windowed trigger",
	SilenceUsage: true,
}

func main() {
	if err := Command.Execute(); err != nil {
		os.Exit(1)
	}
}
