package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aretw0/storageguest"
	httpadapter "github.com/aretw0/storageguest/pkg/adapters/http"
	"github.com/aretw0/storageguest/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the store to websocket frames",
	Long: `Starts the storage host. Guests load ws://<addr>/frame and exchange
connect, get, set and remove messages over the socket.`,
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

		reg := prometheus.NewRegistry()
		metrics := observability.NewMetrics(reg)
		server := httpadapter.NewServer(newHost(hc, store, metrics),
			httpadapter.WithLogger(logger),
			httpadapter.WithMetricsHandler(observability.Handler(reg)),
			httpadapter.WithVersion(strings.TrimSpace(storageguest.Version)),
		)
		metrics.TrackConnections(server.Conns.Len)

		srv := &http.Server{
			Addr:    hc.Addr,
			Handler: server.Routes(),
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Storage host listening", "addr", srv.Addr, "store", hc.Store, "allowed_origins", hc.AllowedOrigins)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			// Shutdown does not track hijacked websocket connections.
			server.Conns.CloseAll()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", shutdownTimeout, "err", err)
				return srv.Close()
			}
			logger.Info("Storage host stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (default :8080)")
	addHostFlags(serveCmd)
}
