package main

import (
	"fmt"

	"github.com/aretw0/storageguest/internal/config"
	"github.com/aretw0/storageguest/pkg/adapters/file"
	"github.com/aretw0/storageguest/pkg/adapters/memory"
	"github.com/aretw0/storageguest/pkg/adapters/redis"
	"github.com/aretw0/storageguest/pkg/host"
	"github.com/aretw0/storageguest/pkg/observability"
	"github.com/aretw0/storageguest/pkg/ports"
	"github.com/spf13/cobra"
)

// addHostFlags registers the flags shared by the commands that run a host.
func addHostFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Backing store: memory, file or redis")
	cmd.Flags().String("dir", "", "Directory of the file store")
	cmd.Flags().StringSlice("allow-origin", nil, "Guest origin allowed to connect (repeatable; default: any)")
}

// hostConfig overlays the changed flags of cmd on the loaded configuration.
func hostConfig(cmd *cobra.Command) (config.HostConfig, error) {
	hc := cfg.Host
	flags := cmd.Flags()
	if flags.Changed("store") {
		hc.Store, _ = flags.GetString("store")
	}
	if flags.Changed("dir") {
		hc.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("allow-origin") {
		hc.AllowedOrigins, _ = flags.GetStringSlice("allow-origin")
	}
	if flags.Lookup("addr") != nil && flags.Changed("addr") {
		hc.Addr, _ = flags.GetString("addr")
	}

	check := *cfg
	check.Host = hc
	return hc, check.Validate()
}

// openStore creates the store named by hc.Store. The returned func
// releases its connections.
func openStore(hc config.HostConfig, rc config.RedisConfig) (ports.KVStore, func() error, error) {
	noop := func() error { return nil }
	switch hc.Store {
	case "memory":
		return memory.NewStore(), noop, nil
	case "file":
		return file.New(hc.Dir), noop, nil
	case "redis":
		store := redis.New(rc.Addr, rc.Password, rc.DB, redis.WithPrefix(rc.Prefix), redis.WithTTL(rc.TTL))
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store %q", hc.Store)
}

// newHost builds the host answering frames for hc.
func newHost(hc config.HostConfig, store ports.KVStore, metrics *observability.Metrics) *host.Host {
	hooks := observability.LoggingHooks(logger)
	if metrics != nil {
		hooks = observability.ComposeHooks(hooks, metrics.Hooks())
	}
	opts := []host.Option{
		host.WithLogger(logger),
		host.WithAllowedOrigins(hc.AllowedOrigins...),
		host.WithLifecycleHooks(hooks),
	}
	if hc.RequestTimeout > 0 {
		opts = append(opts, host.WithRequestTimeout(hc.RequestTimeout))
	}
	return host.New(store, opts...)
}
