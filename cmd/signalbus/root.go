package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/growthkit/signalbus/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "signalbus",
	Short: "Signalbus coordinates multi-tenant business signals",
	Long:  `Signalbus runs the coordination bus ops endpoint and inspects per-tenant throttle, breaker and audit state.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to the yaml configuration file")
}

// loadConfig resolves the --config flag, falling back to defaults when the
// flag is unset.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
