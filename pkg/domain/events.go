package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventOpen         EventType = "open"
	EventConnected    EventType = "connected"
	EventAborted      EventType = "aborted"
	EventConnectError EventType = "connect_error"
	EventClosed       EventType = "closed"
	EventRequest      EventType = "request"
	EventReply        EventType = "reply"
	EventServe        EventType = "serve"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	Origin    string    `json:"origin"`
}

// SessionEvent reports a handshake transition.
type SessionEvent struct {
	EventBase
	// Pending is the number of correlation entries at the time of the event.
	Pending int   `json:"pending"`
	Queued  int   `json:"queued"`
	Err     error `json:"-"`
}

// RequestEvent reports a request leaving the guest, its reply arriving,
// or a host serving it.
type RequestEvent struct {
	EventBase
	Method  Method        `json:"method"`
	ID      string        `json:"id,omitempty"`
	IsError bool          `json:"is_error,omitempty"`
	Elapsed time.Duration `json:"elapsed,omitempty"`
}

// LifecycleHooks defines callbacks for guest and host observability.
// Hooks run synchronously and must not block.
type LifecycleHooks struct {
	OnSession func(context.Context, *SessionEvent)
	OnRequest func(context.Context, *RequestEvent)
	OnReply   func(context.Context, *RequestEvent)

	// OnServe is fired by a host after answering a request.
	OnServe func(context.Context, *RequestEvent)
}
