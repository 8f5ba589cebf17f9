package session

import (
	"log/slog"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

// DefaultPollInterval is the delay between two connect probes.
const DefaultPollInterval = 125 * time.Millisecond

// Option configures a Session.
type Option func(*Session)

// WithContainer sets the attachment point of the frame (default: DefaultContainer).
func WithContainer(c ports.Container) Option {
	return func(s *Session) {
		s.container = c
	}
}

// WithConnectTimeout aborts the handshake if the frame has not acknowledged
// within d. Zero (the default) retries forever.
func WithConnectTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.connectTimeout = d
	}
}

// WithPollInterval sets the delay between connect probes.
func WithPollInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithReplayOrder selects how requests queued before the handshake are replayed.
func WithReplayOrder(order ReplayOrder) Option {
	return func(s *Session) {
		s.replayOrder = order
	}
}

// WithLogger configures a logger for the Session.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Session) {
		s.hooks = hooks
	}
}
