package storageguest

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/adapters/memory"
	"github.com/aretw0/storageguest/pkg/adapters/process"
	"github.com/aretw0/storageguest/pkg/adapters/websocket"
	"github.com/aretw0/storageguest/pkg/host"
	"github.com/aretw0/storageguest/pkg/ports"
	"github.com/aretw0/storageguest/pkg/session"
)

// MemoryScheme prefixes sources served by an in-process host.
const MemoryScheme = "memory://"

type options struct {
	guestOrigin string
	responder   ports.Responder
	commands    map[string]process.CommandConfig
	allowInline bool
	logger      *slog.Logger
	sessionOpts []session.Option
}

// Option configures Open and NewFrame.
type Option func(*options)

// WithSessionOptions forwards opts to session.New.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *options) {
		o.sessionOpts = append(o.sessionOpts, opts...)
	}
}

// WithGuestOrigin sets the origin the guest presents to the host.
func WithGuestOrigin(origin string) Option {
	return func(o *options) {
		o.guestOrigin = origin
	}
}

// WithResponder serves memory:// sources with r instead of a fresh in-memory host.
func WithResponder(r ports.Responder) Option {
	return func(o *options) {
		o.responder = r
	}
}

// WithCommands registers the commands exec: sources may name.
func WithCommands(commands map[string]process.CommandConfig) Option {
	return func(o *options) {
		o.commands = commands
	}
}

// WithInlineExecution lets exec: sources run unregistered commands.
func WithInlineExecution(allow bool) Option {
	return func(o *options) {
		o.allowInline = allow
	}
}

// WithLogger sets the logger of the frame and the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewFrame picks the frame implementation serving source:
// ws:// and wss:// dial a websocket host, exec: spawns a stdio host and
// memory:// runs a host in-process.
func NewFrame(source string, opts ...Option) (ports.Frame, error) {
	o := newOptions(opts)
	return o.frame(source)
}

// Open creates a session for source. The session starts connecting at once.
func Open(source string, opts ...Option) (*session.Session, error) {
	o := newOptions(opts)
	frame, err := o.frame(source)
	if err != nil {
		return nil, err
	}
	sessionOpts := append([]session.Option{session.WithLogger(o.logger)}, o.sessionOpts...)
	return session.New(frame, source, sessionOpts...)
}

func newOptions(opts []Option) *options {
	o := &options{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *options) frame(source string) (ports.Frame, error) {
	lower := strings.ToLower(source)
	switch {
	case strings.HasPrefix(lower, "ws://"), strings.HasPrefix(lower, "wss://"):
		return websocket.NewFrame(
			websocket.WithGuestOrigin(o.guestOrigin),
			websocket.WithLogger(o.logger),
		), nil

	case strings.HasPrefix(lower, process.Scheme):
		return process.NewFrame(
			process.WithRegistry(o.commands),
			process.WithInlineExecution(o.allowInline),
			process.WithLogger(o.logger),
		), nil

	case strings.HasPrefix(lower, MemoryScheme):
		responder := o.responder
		if responder == nil {
			responder = host.New(memory.NewStore(), host.WithLogger(o.logger))
		}
		var frameOpts []memory.FrameOption
		if o.guestOrigin != "" {
			frameOpts = append(frameOpts, memory.WithGuestOrigin(o.guestOrigin))
		}
		return memory.NewFrame(responder, frameOpts...), nil
	}
	return nil, fmt.Errorf("unsupported source %q: want ws://, wss://, exec: or memory://", source)
}
