package domain

import (
	"encoding/json"
	"net/url"
	"strings"
)

// Method identifies the operation carried by a Request.
type Method string

const (
	MethodConnect Method = "connect"
	MethodGet     Method = "get"
	MethodSet     Method = "set"
	MethodRemove  Method = "remove"
)

// Valid reports whether m is one of the known methods.
func (m Method) Valid() bool {
	switch m {
	case MethodConnect, MethodGet, MethodSet, MethodRemove:
		return true
	}
	return false
}

const (
	// IDPrefix starts every request id.
	IDPrefix = "sessionAccessId-"

	// ConnectedID is the id value the frame uses to acknowledge the handshake.
	ConnectedID = IDPrefix + "connected"
)

// Request is the payload posted from the guest to the frame.
// Key and Value are null on the wire when unset.
type Request struct {
	Method Method          `json:"method"`
	Key    *string         `json:"key"`
	Value  json.RawMessage `json:"value"`
	ID     string          `json:"id"`
}

// KeyString returns the key or "" when the request carries none.
func (r Request) KeyString() string {
	if r.Key == nil {
		return ""
	}
	return *r.Key
}

// Response is the payload posted from the frame back to the guest.
//
// The three shapes share one struct:
//
//	{"id": "sessionAccessId-connected"}            handshake ack
//	{"connectError": true, "error": ...}           connection-level failure
//	{"id": "...", "error": ..., "data": ...}       per-request reply
type Response struct {
	ID           string          `json:"id,omitempty"`
	ConnectError bool            `json:"connectError,omitempty"`
	Error        json.RawMessage `json:"error,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// Connected reports whether r is the handshake acknowledgement.
func (r Response) Connected() bool {
	return r.ID == ConnectedID
}

// HasError reports whether the error field is present and not JSON null.
func (r Response) HasError() bool {
	return !isNull(r.Error)
}

// Envelope is one inbound message as delivered by a frame.
type Envelope struct {
	Origin string
	Data   []byte
}

// Decode parses the envelope body as a Response.
func (e Envelope) Decode() (Response, error) {
	var resp Response
	if err := json.Unmarshal(e.Data, &resp); err != nil {
		return Response{}, err
	}
	return resp, nil
}

// OriginOf derives the origin of a frame source.
// URL sources collapse to scheme://host; anything else is its own origin.
func OriginOf(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return source
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
}

// NullString returns a JSON-nullable pointer for s; "" maps to nil.
func NullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}
