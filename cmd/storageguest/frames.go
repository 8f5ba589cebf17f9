package main

import (
	"fmt"

	"github.com/aretw0/storageguest/pkg/adapters/process"
	"github.com/spf13/cobra"
)

var framesCmd = &cobra.Command{
	Use:   "frames",
	Short: "List the exec: frames registered in the frames file",
	RunE: func(cmd *cobra.Command, args []string) error {
		commands, err := process.LoadCommands(cfg.Frames)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(commands) == 0 {
			fmt.Fprintln(out, "No frames registered.")
			return nil
		}

		for _, c := range process.SortedCommands(commands) {
			fmt.Fprintf(out, "%s\n  command: %s\n", c.Source(), c.CommandLine())
			if c.Description != "" {
				fmt.Fprintf(out, "  %s\n", c.Description)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(framesCmd)
}
