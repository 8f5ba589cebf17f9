package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSource = "https://storage.example.com/frame.html"
	testOrigin = "https://storage.example.com"
	waitFor    = 2 * time.Second
	tick       = 5 * time.Millisecond
)

// FakeFrame is a scriptable frame: the test decides when the document loads
// and what the remote side replies.
type FakeFrame struct {
	mu       sync.Mutex
	source   string
	onLoad   func()
	loaded   bool
	posts    []domain.Request
	handlers map[int]func(domain.Envelope)
	nextSub  int
	blanks   int
	unloads  int
}

func NewFakeFrame() *FakeFrame {
	return &FakeFrame{handlers: make(map[int]func(domain.Envelope))}
}

func (f *FakeFrame) Load(source string, onLoad func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source = source
	f.onLoad = onLoad
	f.loaded = false
}

func (f *FakeFrame) Post(data []byte, targetOrigin string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.loaded || domain.OriginOf(f.source) != targetOrigin {
		return domain.ErrNotDelivered
	}
	var req domain.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return err
	}
	f.posts = append(f.posts, req)
	return nil
}

func (f *FakeFrame) Subscribe(handler func(domain.Envelope)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextSub
	f.nextSub++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *FakeFrame) Blank() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blanks++
	f.loaded = false
	f.source = "about:blank"
}

func (f *FakeFrame) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads++
	f.loaded = false
	return nil
}

// FinishLoad fires the load signal of the current document.
func (f *FakeFrame) FinishLoad() {
	f.mu.Lock()
	f.loaded = true
	cb := f.onLoad
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// Emit delivers resp to every subscriber as if posted from origin.
func (f *FakeFrame) Emit(t *testing.T, origin string, resp domain.Response) {
	t.Helper()
	data, err := json.Marshal(resp)
	require.NoError(t, err)

	f.mu.Lock()
	handlers := make([]func(domain.Envelope), 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.mu.Unlock()

	for _, h := range handlers {
		h(domain.Envelope{Origin: origin, Data: data})
	}
}

func (f *FakeFrame) Posts(method domain.Method) []domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Request
	for _, p := range f.posts {
		if p.Method == method {
			out = append(out, p)
		}
	}
	return out
}

func (f *FakeFrame) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *FakeFrame) Counts() (blanks, unloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blanks, f.unloads
}

// recorder collects every completion of one callback.
type recorder struct {
	mu    sync.Mutex
	calls []result
}

type result struct {
	data json.RawMessage
	err  error
}

func (r *recorder) Callback() session.Callback {
	return func(data json.RawMessage, err error) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.calls = append(r.calls, result{data: data, err: err})
	}
}

func (r *recorder) Calls() []result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]result(nil), r.calls...)
}

func (r *recorder) Count() int {
	return len(r.Calls())
}

func newLoadedSession(t *testing.T, opts ...session.Option) (*session.Session, *FakeFrame) {
	t.Helper()
	frame := NewFakeFrame()
	opts = append([]session.Option{
		session.WithContainer(session.NewMount()),
		session.WithPollInterval(10 * time.Millisecond),
	}, opts...)
	s, err := session.New(frame, testSource, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	frame.FinishLoad()
	require.Eventually(t, func() bool { return s.State().Loaded }, waitFor, tick)
	return s, frame
}

func connect(t *testing.T, s *session.Session, frame *FakeFrame) {
	t.Helper()
	frame.Emit(t, testOrigin, domain.Response{ID: domain.ConnectedID})
	require.Eventually(t, func() bool { return s.State().Connected }, waitFor, tick)
}

func TestNew_Validation(t *testing.T) {
	_, err := session.New(nil, testSource)
	assert.Error(t, err)

	_, err = session.New(NewFakeFrame(), "  ")
	assert.Error(t, err)
}

func TestSession_OpensOnConstruction(t *testing.T) {
	mount := session.NewMount()
	frame := NewFakeFrame()
	s, err := session.New(frame, testSource, session.WithContainer(mount))
	require.NoError(t, err)
	defer s.Close()

	state := s.State()
	assert.Equal(t, session.PhaseConnecting, state.Phase)
	assert.False(t, state.Closed)
	assert.False(t, state.Loaded)
	assert.True(t, mount.Contains(frame))
	assert.Equal(t, 1, frame.Subscribers())
	assert.Equal(t, testOrigin, s.Origin())
}

func TestSession_GetRequiresCallback(t *testing.T) {
	s, frame := newLoadedSession(t)
	connect(t, s, frame)

	err := s.Get("theme", nil)
	assert.ErrorIs(t, err, domain.ErrCallbackRequired)
	assert.Empty(t, frame.Posts(domain.MethodGet))
	assert.Equal(t, 0, s.State().Queued)
}

func TestSession_PollsUntilConnected(t *testing.T) {
	s, frame := newLoadedSession(t)

	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodConnect)) >= 3 }, waitFor, tick)
	for _, p := range frame.Posts(domain.MethodConnect) {
		assert.Nil(t, p.Key)
		assert.Contains(t, p.ID, domain.IDPrefix)
	}

	connect(t, s, frame)
	assert.Equal(t, session.PhaseConnected, s.State().Phase)

	// Polling stops once connected; let an in-flight probe land first.
	time.Sleep(20 * time.Millisecond)
	probes := len(frame.Posts(domain.MethodConnect))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, probes, len(frame.Posts(domain.MethodConnect)))
}

func TestSession_QueuedRequestsReplayLIFO(t *testing.T) {
	s, frame := newLoadedSession(t)

	recs := map[string]*recorder{"a": {}, "b": {}, "c": {}}
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Set(k, k+"-value", recs[k].Callback()))
	}
	assert.Equal(t, 3, s.State().Queued)
	assert.Empty(t, frame.Posts(domain.MethodSet), "nothing is sent before the handshake")

	connect(t, s, frame)
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodSet)) == 3 }, waitFor, tick)

	sets := frame.Posts(domain.MethodSet)
	assert.Equal(t, "c", sets[0].KeyString())
	assert.Equal(t, "b", sets[1].KeyString())
	assert.Equal(t, "a", sets[2].KeyString())
	assert.JSONEq(t, `"c-value"`, string(sets[0].Value))

	// Each queued request is transmitted exactly once.
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, frame.Posts(domain.MethodSet), 3)
	assert.Equal(t, 0, s.State().Queued)
	assert.Equal(t, 3, s.State().Pending)

	for _, p := range sets {
		frame.Emit(t, testOrigin, domain.Response{ID: p.ID})
	}
	for k, rec := range recs {
		require.Eventually(t, func() bool { return rec.Count() == 1 }, waitFor, tick, k)
		assert.NoError(t, rec.Calls()[0].err)
	}
}

func TestSession_QueuedRequestsReplayFIFO(t *testing.T) {
	s, frame := newLoadedSession(t, session.WithReplayOrder(session.ReplayFIFO))

	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, s.Remove(k, nil))
	}
	connect(t, s, frame)

	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodRemove)) == 3 }, waitFor, tick)
	removes := frame.Posts(domain.MethodRemove)
	assert.Equal(t, []string{"a", "b", "c"}, []string{removes[0].KeyString(), removes[1].KeyString(), removes[2].KeyString()})
	assert.Equal(t, 0, s.State().Pending, "fire-and-forget requests are not correlated")
}

func TestSession_SetResolvedAfterLateConnect(t *testing.T) {
	frame := NewFakeFrame()
	s, err := session.New(frame, testSource, session.WithContainer(session.NewMount()))
	require.NoError(t, err)
	defer s.Close()
	frame.FinishLoad()

	rec := &recorder{}
	require.NoError(t, s.Set("a", 1, rec.Callback()))

	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 0, rec.Count())
	frame.Emit(t, testOrigin, domain.Response{ID: domain.ConnectedID})

	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodSet)) == 1 }, waitFor, tick)
	set := frame.Posts(domain.MethodSet)[0]
	assert.JSONEq(t, `1`, string(set.Value))

	frame.Emit(t, testOrigin, domain.Response{ID: set.ID, Data: json.RawMessage(`null`)})
	require.Eventually(t, func() bool { return rec.Count() == 1 }, waitFor, tick)
	assert.NoError(t, rec.Calls()[0].err)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, rec.Count())
}

func TestSession_ConnectTimeoutAborts(t *testing.T) {
	mount := session.NewMount()
	frame := NewFakeFrame()
	start := time.Now()
	s, err := session.New(frame, testSource,
		session.WithContainer(mount),
		session.WithConnectTimeout(50*time.Millisecond),
	)
	require.NoError(t, err)
	defer s.Close()

	time.Sleep(10 * time.Millisecond)
	rec := &recorder{}
	require.NoError(t, s.Get("a", rec.Callback()))

	require.Eventually(t, func() bool { return rec.Count() == 1 }, waitFor, time.Millisecond)
	assert.Less(t, time.Since(start), 250*time.Millisecond)
	assert.ErrorIs(t, rec.Calls()[0].err, domain.ErrConnectionAborted)
	assert.Equal(t, "Connection aborted", rec.Calls()[0].err.Error())

	state := s.State()
	assert.True(t, state.Aborted)
	assert.False(t, state.Connected)
	assert.Equal(t, 0, state.Queued)
	blanks, _ := frame.Counts()
	assert.Equal(t, 1, blanks)

	// Later calls fail before returning, without queueing or sending.
	late := &recorder{}
	require.NoError(t, s.Set("b", 2, late.Callback()))
	require.Equal(t, 1, late.Count())
	assert.ErrorIs(t, late.Calls()[0].err, domain.ErrConnectionAborted)
	assert.Equal(t, 0, s.State().Queued)
	assert.Empty(t, frame.Posts(domain.MethodSet))
	assert.Empty(t, frame.Posts(domain.MethodGet))

	// A late marker does not revive an aborted session.
	frame.Emit(t, testOrigin, domain.Response{ID: domain.ConnectedID})
	assert.False(t, s.State().Connected)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, rec.Count())
}

func TestSession_AbortStopsPolling(t *testing.T) {
	s, frame := newLoadedSession(t, session.WithConnectTimeout(40*time.Millisecond))

	require.Eventually(t, func() bool { return s.State().Aborted }, waitFor, tick)
	probes := len(frame.Posts(domain.MethodConnect))
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, probes, len(frame.Posts(domain.MethodConnect)))
}

func TestSession_ConnectedBeforeTimeoutCancelsAbort(t *testing.T) {
	s, frame := newLoadedSession(t, session.WithConnectTimeout(60*time.Millisecond))
	connect(t, s, frame)

	time.Sleep(100 * time.Millisecond)
	assert.False(t, s.State().Aborted)
	blanks, _ := frame.Counts()
	assert.Equal(t, 0, blanks)
}

func TestSession_ConnectErrorFansOut(t *testing.T) {
	s, frame := newLoadedSession(t)
	connect(t, s, frame)

	first, second := &recorder{}, &recorder{}
	require.NoError(t, s.Get("a", first.Callback()))
	require.NoError(t, s.Get("b", second.Callback()))
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodGet)) == 2 }, waitFor, tick)
	gets := frame.Posts(domain.MethodGet)

	frame.Emit(t, testOrigin, domain.Response{ConnectError: true, Error: json.RawMessage(`"storage unavailable"`)})

	for _, rec := range []*recorder{first, second} {
		require.Equal(t, 1, rec.Count())
		var remote *domain.RemoteError
		require.True(t, errors.As(rec.Calls()[0].err, &remote))
		assert.True(t, remote.Connection)
		assert.Equal(t, "storage unavailable", remote.Message())
	}
	assert.Equal(t, 0, s.State().Pending)
	assert.True(t, s.State().Connected, "connection errors leave the handshake state alone")

	// Stale replies do not fire callbacks again.
	for _, g := range gets {
		frame.Emit(t, testOrigin, domain.Response{ID: g.ID, Data: json.RawMessage(`"late"`)})
	}
	assert.Equal(t, 1, first.Count())
	assert.Equal(t, 1, second.Count())
}

func TestSession_ConnectErrorFailsQueuedRequests(t *testing.T) {
	s, frame := newLoadedSession(t)

	get, set := &recorder{}, &recorder{}
	require.NoError(t, s.Get("a", get.Callback()))
	require.NoError(t, s.Set("b", 1, set.Callback()))
	require.NoError(t, s.Remove("c", nil))
	require.Equal(t, 3, s.State().Queued)

	frame.Emit(t, testOrigin, domain.Response{ConnectError: true, Error: json.RawMessage(`"backend down"`)})

	for _, rec := range []*recorder{get, set} {
		require.Equal(t, 1, rec.Count())
		var remote *domain.RemoteError
		require.True(t, errors.As(rec.Calls()[0].err, &remote))
		assert.True(t, remote.Connection)
		assert.Equal(t, "backend down", remote.Message())
	}
	state := s.State()
	assert.Equal(t, 0, state.Queued)
	assert.Equal(t, session.PhaseConnecting, state.Phase)
	assert.False(t, state.Aborted)

	// The failed requests are not replayed once the handshake completes.
	connect(t, s, frame)
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, frame.Posts(domain.MethodGet))
	assert.Empty(t, frame.Posts(domain.MethodSet))
	assert.Empty(t, frame.Posts(domain.MethodRemove))
	assert.Equal(t, 1, get.Count())
	assert.Equal(t, 1, set.Count())
}

func TestSession_PerRequestReply(t *testing.T) {
	s, frame := newLoadedSession(t)
	connect(t, s, frame)

	ok, failed := &recorder{}, &recorder{}
	require.NoError(t, s.Get("theme", ok.Callback()))
	require.NoError(t, s.Get("quota", failed.Callback()))
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodGet)) == 2 }, waitFor, tick)
	gets := frame.Posts(domain.MethodGet)

	frame.Emit(t, testOrigin, domain.Response{ID: gets[1].ID, Error: json.RawMessage(`{"message":"quota exceeded"}`)})
	frame.Emit(t, testOrigin, domain.Response{ID: gets[0].ID, Data: json.RawMessage(`"dark"`)})

	require.Equal(t, 1, ok.Count())
	assert.NoError(t, ok.Calls()[0].err)
	assert.JSONEq(t, `"dark"`, string(ok.Calls()[0].data))

	require.Equal(t, 1, failed.Count())
	var remote *domain.RemoteError
	require.True(t, errors.As(failed.Calls()[0].err, &remote))
	assert.False(t, remote.Connection)
	assert.Equal(t, "quota exceeded", remote.Error())
}

func TestSession_ForeignOriginIgnored(t *testing.T) {
	s, frame := newLoadedSession(t)

	frame.Emit(t, "https://evil.example.net", domain.Response{ID: domain.ConnectedID})
	time.Sleep(30 * time.Millisecond)
	assert.False(t, s.State().Connected)

	connect(t, s, frame)
}

func TestSession_UndeliveredRequestFailsFast(t *testing.T) {
	frame := NewFakeFrame()
	s, err := session.New(frame, testSource, session.WithContainer(session.NewMount()))
	require.NoError(t, err)
	defer s.Close()

	// Connected marker before the document reported load.
	frame.Emit(t, testOrigin, domain.Response{ID: domain.ConnectedID})
	require.Eventually(t, func() bool { return s.State().Connected }, waitFor, tick)

	rec := &recorder{}
	require.NoError(t, s.Get("a", rec.Callback()))
	require.Equal(t, 1, rec.Count())
	assert.ErrorIs(t, rec.Calls()[0].err, domain.ErrNotDelivered)
	assert.Equal(t, 0, s.State().Pending)
}

func TestSession_CloseThenReopen(t *testing.T) {
	mount := session.NewMount()
	s, frame := newLoadedSession(t, session.WithContainer(mount))
	connect(t, s, frame)

	pending := &recorder{}
	require.NoError(t, s.Get("a", pending.Callback()))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is a no-op")

	state := s.State()
	assert.True(t, state.Closed)
	assert.False(t, state.Connected)
	assert.Equal(t, session.PhaseDisconnected, state.Phase)
	assert.Equal(t, 0, frame.Subscribers())
	assert.False(t, mount.Contains(frame))
	_, unloads := frame.Counts()
	assert.Equal(t, 1, unloads)

	require.Equal(t, 1, pending.Count())
	assert.ErrorIs(t, pending.Calls()[0].err, domain.ErrSessionClosed)

	// Any operation reopens and restarts the handshake.
	rec := &recorder{}
	require.NoError(t, s.Set("b", true, rec.Callback()))

	state = s.State()
	assert.False(t, state.Closed)
	assert.Equal(t, session.PhaseConnecting, state.Phase)
	assert.Equal(t, 1, state.Queued)
	assert.Equal(t, 1, frame.Subscribers())
	assert.True(t, mount.Contains(frame))

	frame.FinishLoad()
	require.Eventually(t, func() bool { return s.State().Loaded }, waitFor, tick)
	connect(t, s, frame)
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodSet)) == 1 }, waitFor, tick)
}

func TestSession_CloseStopsHandshakeTimers(t *testing.T) {
	s, frame := newLoadedSession(t, session.WithConnectTimeout(60*time.Millisecond))
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodConnect)) >= 2 }, waitFor, tick)

	require.NoError(t, s.Close())
	time.Sleep(20 * time.Millisecond)
	probes := len(frame.Posts(domain.MethodConnect))

	// Well past both the poll interval and the connect timeout.
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, probes, len(frame.Posts(domain.MethodConnect)), "no connect probe after close")
	state := s.State()
	assert.True(t, state.Closed)
	assert.False(t, state.Aborted, "a timeout armed before close never fires")
	blanks, _ := frame.Counts()
	assert.Equal(t, 0, blanks)
}

func TestSession_ReopenClearsAbort(t *testing.T) {
	s, frame := newLoadedSession(t, session.WithConnectTimeout(20*time.Millisecond))
	require.Eventually(t, func() bool { return s.State().Aborted }, waitFor, tick)

	require.NoError(t, s.Close())
	require.NoError(t, s.Remove("a", nil))

	assert.False(t, s.State().Aborted)
	assert.Equal(t, 1, s.State().Queued)

	frame.FinishLoad()
	require.Eventually(t, func() bool { return s.State().Loaded }, waitFor, tick)
	connect(t, s, frame)
}

func TestSession_CallbackMayReenter(t *testing.T) {
	s, frame := newLoadedSession(t)
	connect(t, s, frame)

	var inner atomic.Bool
	require.NoError(t, s.Get("a", func(json.RawMessage, error) {
		// Runs outside the session lock.
		_ = s.Set("b", 1, nil)
		inner.Store(true)
	}))
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodGet)) == 1 }, waitFor, tick)
	frame.Emit(t, testOrigin, domain.Response{ID: frame.Posts(domain.MethodGet)[0].ID})

	assert.True(t, inner.Load())
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodSet)) == 1 }, waitFor, tick)
}

func TestSession_SetRejectsInvalidValue(t *testing.T) {
	s, _ := newLoadedSession(t)

	assert.Error(t, s.Set("a", json.RawMessage(`{broken`), nil))
	assert.Error(t, s.Set("a", make(chan int), nil))
	assert.Equal(t, 0, s.State().Queued)
}

func TestSession_BlockingHelpers(t *testing.T) {
	s, frame := newLoadedSession(t)
	connect(t, s, frame)

	// Answer every get/set/remove from a background responder.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		seen := map[string]bool{}
		for {
			select {
			case <-stop:
				return
			case <-time.After(tick):
			}
			for _, m := range []domain.Method{domain.MethodGet, domain.MethodSet, domain.MethodRemove} {
				for _, p := range frame.Posts(m) {
					if seen[p.ID] {
						continue
					}
					seen[p.ID] = true
					resp := domain.Response{ID: p.ID, Data: json.RawMessage(`null`)}
					if m == domain.MethodGet && p.KeyString() == "theme" {
						resp.Data = json.RawMessage(`"dark"`)
					}
					frame.Emit(t, testOrigin, resp)
				}
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, s.SetContext(ctx, "theme", "dark"))
	data, err := s.GetContext(ctx, "theme")
	require.NoError(t, err)
	assert.JSONEq(t, `"dark"`, string(data))

	missing, err := s.GetContext(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.RemoveContext(ctx, "theme"))
}

func TestSession_BlockingHelperHonorsContext(t *testing.T) {
	s, _ := newLoadedSession(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.GetContext(ctx, "never")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSession_LifecycleHooks(t *testing.T) {
	var mu sync.Mutex
	var sessionEvents []domain.EventType
	var replies []*domain.RequestEvent
	requests := 0

	hooks := domain.LifecycleHooks{
		OnSession: func(_ context.Context, e *domain.SessionEvent) {
			mu.Lock()
			defer mu.Unlock()
			sessionEvents = append(sessionEvents, e.Type)
		},
		OnRequest: func(_ context.Context, e *domain.RequestEvent) {
			mu.Lock()
			defer mu.Unlock()
			requests++
		},
		OnReply: func(_ context.Context, e *domain.RequestEvent) {
			mu.Lock()
			defer mu.Unlock()
			replies = append(replies, e)
		},
	}

	s, frame := newLoadedSession(t, session.WithLifecycleHooks(hooks))
	connect(t, s, frame)

	rec := &recorder{}
	require.NoError(t, s.Get("a", rec.Callback()))
	require.Eventually(t, func() bool { return len(frame.Posts(domain.MethodGet)) == 1 }, waitFor, tick)
	frame.Emit(t, testOrigin, domain.Response{ID: frame.Posts(domain.MethodGet)[0].ID})
	require.NoError(t, s.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.EventType{domain.EventOpen, domain.EventConnected, domain.EventClosed}, sessionEvents)
	assert.GreaterOrEqual(t, requests, 1, "the get is reported")
	require.Len(t, replies, 1)
	assert.Equal(t, domain.MethodGet, replies[0].Method)
	assert.Equal(t, testOrigin, replies[0].Origin)
	assert.False(t, replies[0].IsError)
}
