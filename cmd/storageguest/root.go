package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/storageguest/internal/config"
	"github.com/aretw0/storageguest/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    = config.Default()
	logger = logging.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "storageguest",
	Short: "storageguest talks to a key-value store hosted by another origin",
	Long: `storageguest serves a key-value store to remote frames (serve, stdio) and
acts as a guest that reads and writes it through the connect handshake (get, set, rm).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		level, err := logging.ParseLevel(loaded.LogLevel)
		if err != nil {
			return err
		}

		cfg = loaded
		logger = logging.New(level)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "YAML configuration file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
}
