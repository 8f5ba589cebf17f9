package session

import (
	"encoding/json"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/eapache/queue"
)

// ReplayOrder selects how queued requests are replayed once the handshake settles.
type ReplayOrder int

const (
	// ReplayLIFO replays the most recently queued request first.
	// This is the wire-compatible default.
	ReplayLIFO ReplayOrder = iota
	// ReplayFIFO replays requests in the order they were issued.
	ReplayFIFO
)

func (o ReplayOrder) String() string {
	if o == ReplayFIFO {
		return "fifo"
	}
	return "lifo"
}

// pendingRequest is a request waiting for the handshake.
type pendingRequest struct {
	method domain.Method
	key    *string
	value  json.RawMessage
	cb     Callback
}

// requestQueue buffers requests issued before the session is connected.
type requestQueue struct {
	order ReplayOrder
	items *queue.Queue
}

func newRequestQueue(order ReplayOrder) *requestQueue {
	return &requestQueue{order: order, items: queue.New()}
}

func (q *requestQueue) push(req pendingRequest) {
	q.items.Add(req)
}

// drain empties the queue and returns its requests in replay order.
func (q *requestQueue) drain() []pendingRequest {
	n := q.items.Length()
	if n == 0 {
		return nil
	}
	out := make([]pendingRequest, n)
	for i := range n {
		req := q.items.Remove().(pendingRequest)
		if q.order == ReplayFIFO {
			out[i] = req
		} else {
			out[n-1-i] = req
		}
	}
	return out
}

func (q *requestQueue) len() int {
	return q.items.Length()
}
