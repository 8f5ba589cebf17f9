package session

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
)

// Callback completes one request. data is the raw JSON reply payload.
type Callback func(data json.RawMessage, err error)

// completion is a callback bound to its outcome, fired after the lock is released.
type completion struct {
	cb   Callback
	data json.RawMessage
	err  error
}

func (c completion) fire() {
	c.cb(c.data, c.err)
}

type correlationEntry struct {
	method domain.Method
	cb     Callback
	sentAt time.Time
}

// correlationTable maps request ids to the callbacks awaiting their reply.
// It is owned by one Session and guarded by its lock.
type correlationTable struct {
	entries map[string]correlationEntry
}

func newCorrelationTable() *correlationTable {
	return &correlationTable{entries: make(map[string]correlationEntry)}
}

// register stores cb under id. Requests without a callback are not tracked.
func (t *correlationTable) register(id string, method domain.Method, cb Callback) {
	if cb == nil {
		return
	}
	t.entries[id] = correlationEntry{method: method, cb: cb, sentAt: time.Now()}
}

// resolve removes the entry for id and binds it to the outcome.
// Unknown, duplicate or expired ids report false.
func (t *correlationTable) resolve(id string, data json.RawMessage, err error) (completion, correlationEntry, bool) {
	entry, ok := t.entries[id]
	if !ok {
		return completion{}, correlationEntry{}, false
	}
	delete(t.entries, id)
	return completion{cb: entry.cb, data: data, err: err}, entry, true
}

// resolveAll fails every entry with err and clears the table.
// Completions are ordered by id, i.e. by issue order.
func (t *correlationTable) resolveAll(err error) []completion {
	if len(t.entries) == 0 {
		return nil
	}
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]completion, 0, len(ids))
	for _, id := range ids {
		out = append(out, completion{cb: t.entries[id].cb, err: err})
	}
	t.entries = make(map[string]correlationEntry)
	return out
}

func (t *correlationTable) len() int {
	return len(t.entries)
}
