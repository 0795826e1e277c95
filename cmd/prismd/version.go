package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is overridden at link time via -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the prismd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("prismd", buildVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
