package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "nylon",
	Short: "Nylon - a programmable application gateway",
	Long: `Nylon is an application gateway that routes, load-balances, and
rewrites HTTP and WebSocket traffic according to a declarative
configuration tree, with every request-lifecycle phase (request filter,
response filter, response body filter, logging) dispatchable to a plugin
over local-FFI or a message broker.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
