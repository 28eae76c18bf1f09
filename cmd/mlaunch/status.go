package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zph/mlaunch/pkg/orchestrator"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which processes in a deployment are currently alive",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := orchestrator.Status(rootDir)
		if err != nil {
			return err
		}

		for _, s := range statuses {
			switch {
			case s.Binary == "":
				fmt.Printf("%-30s no recorded start command\n", s.Dir)
			case !s.HasPID:
				fmt.Printf("%-30s %-8s no pid file\n", s.Dir, s.Binary)
			case s.Running:
				fmt.Printf("%-30s %-8s pid=%-8d running\n", s.Dir, s.Binary, s.PID)
			default:
				fmt.Printf("%-30s %-8s pid=%-8d stopped\n", s.Dir, s.Binary, s.PID)
			}
		}

		return nil
	},
}
