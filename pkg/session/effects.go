package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
)

var ctxBackground = context.Background()

// effects collects work that must run after the session lock is released:
// lifecycle hooks first, then completions in the order they were produced.
type effects struct {
	notices     []func()
	completions []completion
}

func (fx *effects) complete(cb Callback, data json.RawMessage, err error) {
	if cb == nil {
		return
	}
	fx.completions = append(fx.completions, completion{cb: cb, data: data, err: err})
}

func (fx *effects) notify(fn func()) {
	fx.notices = append(fx.notices, fn)
}

func (fx *effects) run() {
	for _, fn := range fx.notices {
		fn()
	}
	for _, c := range fx.completions {
		c.fire()
	}
}

func (s *Session) eventBase(typ domain.EventType) domain.EventBase {
	return domain.EventBase{
		Timestamp: time.Now(),
		Type:      typ,
		Origin:    s.transport.origin,
	}
}

// emitSession queues a session hook call. Caller holds s.mu.
func (s *Session) emitSession(fx *effects, typ domain.EventType, err error) {
	if s.hooks.OnSession == nil {
		return
	}
	event := &domain.SessionEvent{
		EventBase: s.eventBase(typ),
		Pending:   s.table.len(),
		Queued:    s.queue.len(),
		Err:       err,
	}
	fx.notify(func() { s.hooks.OnSession(ctxBackground, event) })
}
