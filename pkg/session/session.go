package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/storageguest/internal/logging"
	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

// Phase is the handshake position of a Session.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseConnecting
	PhaseConnected
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "connecting"
	case PhaseConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// State is a point-in-time snapshot of a Session.
type State struct {
	Phase     Phase
	Connected bool
	Aborted   bool
	Closed    bool
	Loaded    bool
	// Pending counts requests awaiting a reply.
	Pending int
	// Queued counts requests waiting for the handshake.
	Queued int
}

// Session is the guest's proxy to the key/value store inside a frame.
// Safe for concurrent use.
type Session struct {
	mu sync.Mutex

	transport *transport
	table     *correlationTable
	queue     *requestQueue
	ids       *domain.IDGenerator

	container      ports.Container
	connectTimeout time.Duration
	pollInterval   time.Duration
	replayOrder    ReplayOrder
	logger         *slog.Logger
	hooks          domain.LifecycleHooks

	phase     Phase
	connected bool
	aborted   bool
	closed    bool

	// gen identifies the current open cycle; callbacks from timers and the
	// frame carry the gen they were armed with and are ignored once stale.
	gen     uint64
	poll    *time.Timer
	timeout *time.Timer

	// outbox holds requests accepted under the lock and not yet posted.
	// One flush goroutine at a time posts them in order, outside the lock.
	outbox   []outbound
	flushing bool
}

// outbound is an encoded request waiting to be posted to the frame.
type outbound struct {
	gen    uint64
	id     string
	method domain.Method
	data   []byte
}

// New creates a Session for the document at source and opens it immediately.
func New(frame ports.Frame, source string, opts ...Option) (*Session, error) {
	if frame == nil {
		return nil, errors.New("frame is required")
	}
	if strings.TrimSpace(source) == "" {
		return nil, errors.New("source is required")
	}

	s := &Session{
		ids:          domain.NewIDGenerator(),
		container:    DefaultContainer,
		pollInterval: DefaultPollInterval,
		logger:       logging.NewNop(), // Default to no-op
		closed:       true,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.table = newCorrelationTable()
	s.queue = newRequestQueue(s.replayOrder)
	s.transport = newTransport(frame, s.container, source, s.logger)

	var fx effects
	s.mu.Lock()
	s.openStorage(&fx)
	s.mu.Unlock()
	fx.run()

	return s, nil
}

// Origin returns the target origin requests are addressed to.
func (s *Session) Origin() string {
	return s.transport.origin
}

// Get reads key. The callback is required: without it Get returns
// domain.ErrCallbackRequired and nothing is sent.
func (s *Session) Get(key string, cb Callback) error {
	if cb == nil {
		return domain.ErrCallbackRequired
	}
	s.submit(pendingRequest{method: domain.MethodGet, key: &key, cb: cb})
	return nil
}

// Set stores value under key. value is JSON-encoded; json.RawMessage is sent as is.
// cb may be nil for fire-and-forget writes.
func (s *Session) Set(key string, value any, cb Callback) error {
	raw, err := encodeValue(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	s.submit(pendingRequest{method: domain.MethodSet, key: &key, value: raw, cb: cb})
	return nil
}

// Remove deletes key. cb may be nil.
func (s *Session) Remove(key string, cb Callback) error {
	s.submit(pendingRequest{method: domain.MethodRemove, key: &key, cb: cb})
	return nil
}

// Close tears down the frame and fails every callback still waiting with
// domain.ErrSessionClosed. A later Get, Set or Remove reopens the session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	var fx effects
	s.stopTimers()
	s.transport.close()
	s.connected = false
	s.closed = true
	s.phase = PhaseDisconnected
	s.gen++
	s.outbox = nil

	fx.completions = append(fx.completions, s.table.resolveAll(domain.ErrSessionClosed)...)
	for _, req := range s.queue.drain() {
		fx.complete(req.cb, nil, domain.ErrSessionClosed)
	}
	s.logger.Debug("Storage frame closed", "origin", s.transport.origin)
	s.emitSession(&fx, domain.EventClosed, nil)
	s.mu.Unlock()

	fx.run()
	return nil
}

// State returns a snapshot of the session.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Phase:     s.phase,
		Connected: s.connected,
		Aborted:   s.aborted,
		Closed:    s.closed,
		Loaded:    s.transport.loaded,
		Pending:   s.table.len(),
		Queued:    s.queue.len(),
	}
}

func (s *Session) submit(req pendingRequest) {
	var fx effects
	s.mu.Lock()
	s.message(&fx, req)
	s.mu.Unlock()
	fx.run()
}

// message is the common request path. Caller holds s.mu.
func (s *Session) message(fx *effects, req pendingRequest) {
	if s.closed {
		s.openStorage(fx)
	}

	if s.aborted {
		fx.complete(req.cb, nil, domain.ErrConnectionAborted)
		return
	}

	if !s.connected && req.method != domain.MethodConnect {
		s.queue.push(req)
		s.logger.Debug("Queued request until connected", "method", req.method, "queued", s.queue.len())
		return
	}

	s.transmit(fx, req)
}

// transmit assigns an id, registers the callback and hands the request to
// the outbox. Caller holds s.mu.
func (s *Session) transmit(fx *effects, req pendingRequest) {
	id := s.ids.Next()
	s.table.register(id, req.method, req.cb)

	data, err := json.Marshal(domain.Request{
		Method: req.method,
		Key:    req.key,
		Value:  req.value,
		ID:     id,
	})
	if err == nil {
		err = s.transport.ready()
	}
	if err != nil {
		if req.method == domain.MethodConnect {
			s.logger.Debug("Connect probe not delivered", "origin", s.transport.origin, "err", err)
			return
		}
		s.logger.Warn("Request not delivered", "method", req.method, "id", id, "err", err)
		if c, _, ok := s.table.resolve(id, nil, fmt.Errorf("%s: %w", req.method, err)); ok {
			fx.completions = append(fx.completions, c)
		}
		return
	}

	s.outbox = append(s.outbox, outbound{gen: s.gen, id: id, method: req.method, data: data})
	if !s.flushing {
		s.flushing = true
		go s.flush()
	}

	if s.hooks.OnRequest != nil {
		event := &domain.RequestEvent{
			EventBase: s.eventBase(domain.EventRequest),
			Method:    req.method,
			ID:        id,
		}
		fx.notify(func() { s.hooks.OnRequest(ctxBackground, event) })
	}
}

// flush posts the outbox until it is empty. Frame writes may block on a
// slow peer, so they never run under s.mu: the frame's read loop must
// always be able to deliver replies.
func (s *Session) flush() {
	for {
		s.mu.Lock()
		batch := s.outbox
		s.outbox = nil
		if len(batch) == 0 {
			s.flushing = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		for _, out := range batch {
			if !s.current(out.gen) {
				continue
			}
			if err := s.transport.post(out.data); err != nil {
				s.undelivered(out, err)
			}
		}
	}
}

// current reports whether gen is still the open cycle.
func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.gen && !s.closed
}

// undelivered fails the request whose post was rejected by the frame.
func (s *Session) undelivered(out outbound, err error) {
	if out.method == domain.MethodConnect {
		s.logger.Debug("Connect probe not delivered", "origin", s.transport.origin, "err", err)
		return
	}
	s.logger.Warn("Request not delivered", "method", out.method, "id", out.id, "err", err)

	var fx effects
	s.mu.Lock()
	if c, _, ok := s.table.resolve(out.id, nil, fmt.Errorf("%s: %w", out.method, err)); ok {
		fx.completions = append(fx.completions, c)
	}
	s.mu.Unlock()
	fx.run()
}

func encodeValue(value any) (json.RawMessage, error) {
	switch v := value.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(v) {
			return nil, errors.New("invalid JSON")
		}
		return v, nil
	default:
		return json.Marshal(v)
	}
}
