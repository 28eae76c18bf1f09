package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zph/mlaunch/pkg/orchestrator"
)

func init() {
	rootCmd.AddCommand(stopCmd)
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a deployment in reverse start order",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orchestrator.Stop(cmd.Context(), rootDir); err != nil {
			return err
		}
		fmt.Printf("stopped deployment in %s\n", rootDir)
		return nil
	},
}
