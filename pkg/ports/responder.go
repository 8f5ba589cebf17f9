package ports

import (
	"context"

	"github.com/aretw0/storageguest/pkg/domain"
)

// ReplyFunc posts a response back across the frame boundary.
type ReplyFunc func(domain.Response)

// Responder is the remote side of a frame.
// It may reply any number of times, including never.
type Responder interface {
	Respond(ctx context.Context, origin string, req domain.Request, reply ReplyFunc)
}

// ResponderFunc adapts a plain function to Responder.
type ResponderFunc func(ctx context.Context, origin string, req domain.Request, reply ReplyFunc)

// Respond implements Responder.
func (f ResponderFunc) Respond(ctx context.Context, origin string, req domain.Request, reply ReplyFunc) {
	f(ctx, origin, req, reply)
}
