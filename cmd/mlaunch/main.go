package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootDir string

var rootCmd = &cobra.Command{
	Use:   "mlaunch",
	Short: "Provision and manage local MongoDB deployments for testing",
	Long: `mlaunch provisions standalone, replica-set, and sharded MongoDB
deployments on localhost for testing: it starts the server processes in
dependency order, initiates replica sets, registers shards, optionally
enables keyfile authentication, and later stops the deployment cleanly.`,
}

func main() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "dir", "", "deployment root directory (required)")
	_ = rootCmd.MarkPersistentFlagRequired("dir")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
