package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/gorilla/websocket"
)

const (
	writeTimeout = 10 * time.Second
	closeTimeout = time.Second
)

// Frame implements ports.Frame over a websocket connection. Loading dials
// the source; the document is loaded once the upgrade succeeds.
type Frame struct {
	dialer      *websocket.Dialer
	guestOrigin string
	logger      *slog.Logger

	mu       sync.Mutex
	writeMu  sync.Mutex // serialises conn writes
	conn     *websocket.Conn
	source   string
	epoch    uint64
	cancel   context.CancelFunc
	handlers map[uint64]func(domain.Envelope)
	nextSub  uint64
}

// Option configures a Frame.
type Option func(*Frame)

// WithGuestOrigin sets the Origin header sent when dialing.
func WithGuestOrigin(origin string) Option {
	return func(f *Frame) {
		f.guestOrigin = origin
	}
}

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(f *Frame) {
		f.dialer = d
	}
}

// WithLogger configures a logger for the Frame.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Frame) {
		f.logger = logger
	}
}

// NewFrame creates an unloaded Frame.
func NewFrame(opts ...Option) *Frame {
	f := &Frame{
		dialer:   websocket.DefaultDialer,
		logger:   logging.NewNop(),
		handlers: make(map[uint64]func(domain.Envelope)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Load implements ports.Frame. Dial failures leave the frame unloaded.
func (f *Frame) Load(source string, onLoad func()) {
	f.mu.Lock()
	epoch, ctx := f.reset(source)
	f.mu.Unlock()

	go func() {
		header := http.Header{}
		if f.guestOrigin != "" {
			header.Set("Origin", f.guestOrigin)
		}

		conn, _, err := f.dialer.DialContext(ctx, source, header)
		if err != nil {
			f.logger.Warn("Failed to load websocket frame", "source", source, "err", err)
			return
		}

		f.mu.Lock()
		if f.epoch != epoch {
			f.mu.Unlock()
			conn.Close()
			return
		}
		f.conn = conn
		f.mu.Unlock()

		f.logger.Debug("Websocket frame loaded", "source", source)
		go f.readLoop(epoch, conn, domain.OriginOf(source))
		if onLoad != nil {
			onLoad()
		}
	}()
}

// Post implements ports.Frame.
func (f *Frame) Post(data []byte, targetOrigin string) error {
	f.mu.Lock()
	conn := f.conn
	if conn == nil || domain.OriginOf(f.source) != targetOrigin {
		f.mu.Unlock()
		return domain.ErrNotDelivered
	}
	f.mu.Unlock()

	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNotDelivered, err)
	}
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

// reset drops the current connection and any dial in flight.
// Caller holds f.mu.
func (f *Frame) reset(source string) (uint64, context.Context) {
	if f.cancel != nil {
		f.cancel()
	}
	if f.conn != nil {
		conn := f.conn
		f.conn = nil
		go func() {
			f.writeMu.Lock()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeTimeout))
			f.writeMu.Unlock()
			conn.Close()
		}()
	}

	var ctx context.Context
	ctx, f.cancel = context.WithCancel(context.Background())
	f.epoch++
	f.source = source
	return f.epoch, ctx
}

func (f *Frame) readLoop(epoch uint64, conn *websocket.Conn, origin string) {
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			f.mu.Lock()
			if f.conn == conn {
				f.conn = nil
			}
			f.mu.Unlock()
			f.logger.Debug("Websocket frame disconnected", "origin", origin, "err", err)
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
}
