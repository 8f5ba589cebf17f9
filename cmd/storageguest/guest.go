package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/storageguest"
	"github.com/aretw0/storageguest/internal/config"
	"github.com/aretw0/storageguest/pkg/adapters/process"
	"github.com/aretw0/storageguest/pkg/observability"
	"github.com/aretw0/storageguest/pkg/session"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the JSON value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			data, err := s.GetContext(ctx, args[0])
			if err != nil {
				return err
			}
			if data == nil {
				data = json.RawMessage("null")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a value under key",
	Long: `Stores value under key. Without a value argument the value is read from
stdin. Input that is not valid JSON is stored as a JSON string.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 2 {
			raw = args[1]
		} else {
			if f, ok := cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
				return errors.New("set: missing value (pass it as an argument or pipe it on stdin)")
			}
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read value: %w", err)
			}
			raw = strings.TrimRight(string(data), "\r\n")
		}

		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			return s.SetContext(ctx, args[0], parseValue(raw))
		})
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <key>...",
	Aliases: []string{"remove"},
	Short:   "Remove one or more keys",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, s *session.Session) error {
			var errs []error
			for _, key := range args {
				if err := s.RemoveContext(ctx, key); err != nil {
					errs = append(errs, fmt.Errorf("remove %q: %w", key, err))
				}
			}
			return errors.Join(errs...)
		})
	},
}

// parseValue keeps valid JSON as is and wraps anything else in a JSON string.
func parseValue(raw string) any {
	if json.Valid([]byte(raw)) {
		return json.RawMessage(raw)
	}
	return raw
}

// guestConfig overlays the changed flags of cmd on the loaded configuration.
func guestConfig(cmd *cobra.Command) (config.GuestConfig, error) {
	gc := cfg.Guest
	flags := cmd.Flags()
	if flags.Changed("source") {
		gc.Source, _ = flags.GetString("source")
	}
	if flags.Changed("origin") {
		gc.Origin, _ = flags.GetString("origin")
	}
	if flags.Changed("timeout") {
		gc.ConnectTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("replay") {
		gc.Replay, _ = flags.GetString("replay")
	}

	check := *cfg
	check.Guest = gc
	return gc, check.Validate()
}

// withSession opens a session for the configured source, runs fn and closes it.
func withSession(cmd *cobra.Command, fn func(context.Context, *session.Session) error) error {
	gc, err := guestConfig(cmd)
	if err != nil {
		return err
	}
	commands, err := process.LoadCommands(cfg.Frames)
	if err != nil {
		return err
	}
	inline, _ := cmd.Flags().GetBool("allow-exec")

	order := session.ReplayLIFO
	if gc.Replay == "fifo" {
		order = session.ReplayFIFO
	}

	s, err := storageguest.Open(gc.Source,
		storageguest.WithLogger(logger),
		storageguest.WithGuestOrigin(gc.Origin),
		storageguest.WithCommands(commands),
		storageguest.WithInlineExecution(inline),
		storageguest.WithSessionOptions(
			session.WithConnectTimeout(gc.ConnectTimeout),
			session.WithPollInterval(gc.PollInterval),
			session.WithReplayOrder(order),
			session.WithLifecycleHooks(observability.LoggingHooks(logger)),
		),
	)
	if err != nil {
		return err
	}
	defer s.Close()

	return fn(cmd.Context(), s)
}

func addGuestFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "Frame source: ws://, wss://, exec: or memory://")
	cmd.Flags().String("origin", "", "Origin presented to the host")
	cmd.Flags().Duration("timeout", 0, "Connect timeout (0 waits forever)")
	cmd.Flags().String("replay", "", "Replay order of queued requests: lifo or fifo")
	cmd.Flags().Bool("allow-exec", false, "Let exec: sources run commands missing from the frames file (Dangerous)")
}

func init() {
	for _, cmd := range []*cobra.Command{getCmd, setCmd, rmCmd} {
		addGuestFlags(cmd)
		rootCmd.AddCommand(cmd)
	}
}
