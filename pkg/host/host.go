package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

// ErrKeyRequired is reported when get, set or remove arrives without a key.
var ErrKeyRequired = errors.New("key is required")

// Host serves a KVStore to guest sessions.
// Safe for concurrent use.
type Host struct {
	store          ports.KVStore
	allowed        map[string]bool
	logger         *slog.Logger
	hooks          domain.LifecycleHooks
	requestTimeout time.Duration
}

// Option configures a Host.
type Option func(*Host)

// WithAllowedOrigins restricts the guests the host answers to.
// Requests from other origins are ignored without a reply.
// With no origins configured every guest is served.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Host) {
		for _, origin := range origins {
			trimmed := strings.TrimSpace(origin)
			if trimmed == "" {
				continue
			}
			if h.allowed == nil {
				h.allowed = make(map[string]bool)
			}
			h.allowed[domain.OriginOf(trimmed)] = true
		}
	}
}

// WithLogger configures a logger for the Host.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks. Only OnServe is fired by a Host.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(h *Host) {
		h.hooks = hooks
	}
}

// WithRequestTimeout bounds each store operation.
func WithRequestTimeout(d time.Duration) Option {
	return func(h *Host) {
		h.requestTimeout = d
	}
}

// New creates a Host serving store.
func New(store ports.KVStore, opts ...Option) *Host {
	h := &Host{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Allowed reports whether requests from origin are served.
func (h *Host) Allowed(origin string) bool {
	if len(h.allowed) == 0 {
		return true
	}
	return h.allowed[domain.OriginOf(origin)]
}

// Respond implements ports.Responder.
func (h *Host) Respond(ctx context.Context, origin string, req domain.Request, reply ports.ReplyFunc) {
	if !h.Allowed(origin) {
		h.logger.Debug("Ignored request from disallowed origin", "origin", origin, "method", req.Method)
		return
	}

	if h.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp := h.handle(ctx, req)
	reply(resp)

	isError := resp.HasError()
	if isError {
		h.logger.Warn("Request failed", "method", req.Method, "key", req.KeyString(), "id", req.ID, "err", string(resp.Error))
	} else {
		h.logger.Debug("Request served", "method", req.Method, "key", req.KeyString(), "id", req.ID)
	}

	if h.hooks.OnServe != nil {
		h.hooks.OnServe(ctx, &domain.RequestEvent{
			EventBase: domain.EventBase{
				Timestamp: time.Now(),
				Type:      domain.EventServe,
				Origin:    origin,
			},
			Method:  req.Method,
			ID:      req.ID,
			IsError: isError,
			Elapsed: time.Since(start),
		})
	}
}

func (h *Host) handle(ctx context.Context, req domain.Request) domain.Response {
	if req.Method == domain.MethodConnect {
		if pinger, ok := h.store.(ports.Pinger); ok {
			if err := pinger.Ping(ctx); err != nil {
				return domain.Response{ConnectError: true, Error: domain.EncodeError(err)}
			}
		}
		return domain.Response{ID: domain.ConnectedID}
	}

	resp := domain.Response{ID: req.ID}
	if !req.Method.Valid() {
		resp.Error = domain.EncodeError(fmt.Errorf("unknown method %q", req.Method))
		return resp
	}
	if req.Key == nil {
		resp.Error = domain.EncodeError(fmt.Errorf("%s: %w", req.Method, ErrKeyRequired))
		return resp
	}
	key := *req.Key

	switch req.Method {
	case domain.MethodGet:
		value, err := h.store.Get(ctx, key)
		switch {
		case errors.Is(err, domain.ErrKeyNotFound):
			resp.Data = json.RawMessage("null")
		case err != nil:
			resp.Error = domain.EncodeError(err)
		default:
			resp.Data = value
		}

	case domain.MethodSet:
		value := req.Value
		if len(value) == 0 {
			value = json.RawMessage("null")
		}
		if err := h.store.Set(ctx, key, value); err != nil {
			resp.Error = domain.EncodeError(err)
		}

	case domain.MethodRemove:
		if err := h.store.Delete(ctx, key); err != nil {
			resp.Error = domain.EncodeError(err)
		}
	}
	return resp
}
