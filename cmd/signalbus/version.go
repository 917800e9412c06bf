package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/growthkit/signalbus"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of signalbus",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("signalbus version %s\n", strings.TrimSpace(signalbus.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
