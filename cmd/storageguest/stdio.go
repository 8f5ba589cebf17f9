package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve the store over stdin and stdout",
	Long: `Answers newline-delimited JSON requests read from stdin. This is the host
side of exec: sources; logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		hc, err := hostConfig(cmd)
		if err != nil {
			return err
		}
		store, closeStore, err := openStore(hc, cfg.Redis)
		if err != nil {
			return err
		}
		defer closeStore()

		origin, _ := cmd.Flags().GetString("origin")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger.Debug("Serving stdio frame", "store", hc.Store, "origin", origin)
		return newHost(hc, store, nil).ServeStream(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), origin)
	},
}

func init() {
	rootCmd.AddCommand(stdioCmd)
	stdioCmd.Flags().String("origin", "exec:", "Origin reported for the parent process")
	addHostFlags(stdioCmd)
}
