package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/storageguest/pkg/domain"
)

// ComposeHooks fans every event out to each of hooks, in order.
func ComposeHooks(hooks ...domain.LifecycleHooks) domain.LifecycleHooks {
	var out domain.LifecycleHooks
	for _, h := range hooks {
		out.OnSession = chain(out.OnSession, h.OnSession)
		out.OnRequest = chain(out.OnRequest, h.OnRequest)
		out.OnReply = chain(out.OnReply, h.OnReply)
		out.OnServe = chain(out.OnServe, h.OnServe)
	}
	return out
}

func chain[E any](a, b func(context.Context, *E)) func(context.Context, *E) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, e *E) {
		a(ctx, e)
		b(ctx, e)
	}
}

// LoggingHooks logs handshake transitions at Info (Warn for aborts and
// connection errors) and request traffic at Debug.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnSession: func(ctx context.Context, e *domain.SessionEvent) {
			level := slog.LevelInfo
			if e.Err != nil {
				level = slog.LevelWarn
			}
			logger.Log(ctx, level, "session_"+string(e.Type),
				"origin", e.Origin,
				"pending", e.Pending,
				"queued", e.Queued,
				"err", e.Err,
			)
		},
		OnRequest: func(ctx context.Context, e *domain.RequestEvent) {
			logger.Debug("request", "origin", e.Origin, "method", e.Method, "id", e.ID)
		},
		OnReply: func(ctx context.Context, e *domain.RequestEvent) {
			logger.Debug("reply",
				"origin", e.Origin,
				"method", e.Method,
				"id", e.ID,
				"is_error", e.IsError,
				"elapsed", e.Elapsed,
			)
		},
		OnServe: func(ctx context.Context, e *domain.RequestEvent) {
			logger.Debug("serve",
				"origin", e.Origin,
				"method", e.Method,
				"is_error", e.IsError,
				"elapsed", e.Elapsed,
			)
		},
	}
}
