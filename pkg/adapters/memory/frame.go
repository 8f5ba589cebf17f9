package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

// DefaultGuestOrigin is the sender origin a Frame reports to its responder.
const DefaultGuestOrigin = "memory://guest"

// Frame implements ports.Frame in-process. The loaded document is a
// ports.Responder that runs on its own goroutines, so posting never
// blocks on the remote side.
type Frame struct {
	responder   ports.Responder
	loadDelay   time.Duration
	guestOrigin string

	mu       sync.Mutex
	source   string
	loaded   bool
	epoch    uint64
	cancel   context.CancelFunc
	ctx      context.Context
	handlers map[uint64]func(domain.Envelope)
	nextSub  uint64
}

// FrameOption configures a Frame.
type FrameOption func(*Frame)

// WithLoadDelay delays the load signal by d.
func WithLoadDelay(d time.Duration) FrameOption {
	return func(f *Frame) {
		f.loadDelay = d
	}
}

// WithGuestOrigin sets the origin the responder sees requests coming from.
func WithGuestOrigin(origin string) FrameOption {
	return func(f *Frame) {
		f.guestOrigin = origin
	}
}

// NewFrame creates a Frame whose documents are served by responder.
func NewFrame(responder ports.Responder, opts ...FrameOption) *Frame {
	f := &Frame{
		responder:   responder,
		guestOrigin: DefaultGuestOrigin,
		handlers:    make(map[uint64]func(domain.Envelope)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Load implements ports.Frame.
func (f *Frame) Load(source string, onLoad func()) {
	f.mu.Lock()
	epoch := f.reset(source)
	ctx := f.ctx
	f.mu.Unlock()

	go func() {
		if f.loadDelay > 0 {
			timer := time.NewTimer(f.loadDelay)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}

		f.mu.Lock()
		if f.epoch != epoch {
			f.mu.Unlock()
			return
		}
		f.loaded = true
		f.mu.Unlock()

		if onLoad != nil {
			onLoad()
		}
	}()
}

// Post implements ports.Frame.
func (f *Frame) Post(data []byte, targetOrigin string) error {
	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}

	f.mu.Lock()
	if !f.loaded || domain.OriginOf(f.source) != targetOrigin {
		f.mu.Unlock()
		return domain.ErrNotDelivered
	}
	epoch, ctx, origin := f.epoch, f.ctx, domain.OriginOf(f.source)
	f.mu.Unlock()

	go f.responder.Respond(ctx, f.guestOrigin, req, func(resp domain.Response) {
		f.deliver(epoch, origin, resp)
	})
	return nil
}

// Subscribe implements ports.Frame.
func (f *Frame) Subscribe(handler func(domain.Envelope)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextSub
	f.nextSub++
	f.handlers[id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.handlers, id)
		})
	}
}

// Blank implements ports.Frame.
func (f *Frame) Blank() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset("about:blank")
}

// Unload implements ports.Frame.
func (f *Frame) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset("")
	return nil
}

// reset replaces the current document. Replies still in flight for the
// previous document are dropped. Caller holds f.mu.
func (f *Frame) reset(source string) uint64 {
	if f.cancel != nil {
		f.cancel()
	}
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.epoch++
	f.source = source
	f.loaded = false
	return f.epoch
}

func (f *Frame) deliver(epoch uint64, origin string, resp domain.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return
	}
	handlers := make([]func(domain.Envelope), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(domain.Envelope{Origin: origin, Data: data})
	}
}
