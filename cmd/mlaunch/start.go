package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zph/mlaunch/pkg/orchestrator"
)

func init() {
	rootCmd.AddCommand(startCmd)
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a previously init'd deployment from its descriptor",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := orchestrator.Start(cmd.Context(), rootDir); err != nil {
			return err
		}
		fmt.Printf("started deployment in %s\n", rootDir)
		return nil
	},
}
