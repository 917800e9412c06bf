package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/growthkit/signalbus"
)

var breakerCmd = &cobra.Command{
	Use:   "breaker <organization-id>",
	Short: "Show the circuit breaker state for a tenant",
	Long:  `Reads the tenant's breaker state from the configured store. Point --config at the deployment's configuration to inspect shared Redis state.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bus := mustOpenBus(cmd)
		defer bus.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		state, err := bus.Breaker().State(ctx, args[0])
		if err != nil {
			fmt.Printf("Error reading breaker state: %v\n", err)
			os.Exit(1)
		}
		printJSON(state)
	},
}

var throttleCmd = &cobra.Command{
	Use:   "throttle <organization-id>",
	Short: "Show the current throttle window for a tenant",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		bus := mustOpenBus(cmd)
		defer bus.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		win, err := bus.Throttler().Window(ctx, args[0])
		if err != nil {
			fmt.Printf("Error reading throttle window: %v\n", err)
			os.Exit(1)
		}
		printJSON(win)
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit <organization-id>",
	Short: "Show the most recent audit entries for a tenant",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		bus := mustOpenBus(cmd)
		defer bus.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		entries, err := bus.Audit().ListRecent(ctx, args[0], limit)
		if err != nil {
			fmt.Printf("Error reading audit trail: %v\n", err)
			os.Exit(1)
		}
		printJSON(entries)
	},
}

func mustOpenBus(cmd *cobra.Command) *signalbus.Bus {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	bus, err := signalbus.New(cfg)
	if err != nil {
		fmt.Printf("Error initializing bus: %v\n", err)
		os.Exit(1)
	}
	return bus
}

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("Error encoding output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))
}

func init() {
	rootCmd.AddCommand(breakerCmd)
	rootCmd.AddCommand(throttleCmd)
	rootCmd.AddCommand(auditCmd)
	auditCmd.Flags().IntP("limit", "n", 20, "Maximum number of entries to print")
}
