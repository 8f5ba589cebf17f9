package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/storageguest"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of storageguest",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "storageguest version %s\n", strings.TrimSpace(storageguest.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
