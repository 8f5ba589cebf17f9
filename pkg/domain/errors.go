package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCallbackRequired is returned synchronously when Get is called without a callback.
var ErrCallbackRequired = errors.New("callback required for get")

// ErrConnectionAborted is delivered to callbacks once the connect timeout has fired.
var ErrConnectionAborted = errors.New("Connection aborted")

// ErrNotDelivered is delivered when a request could not be handed to the frame.
var ErrNotDelivered = errors.New("request not delivered: frame not loaded")

// ErrSessionClosed is delivered to callbacks still pending when the guest closes.
var ErrSessionClosed = errors.New("session closed")

// ErrKeyNotFound is returned by a KVStore when the key does not exist.
var ErrKeyNotFound = errors.New("key not found")

// RemoteError carries the error field reported by the frame.
type RemoteError struct {
	// Raw is the JSON value of the error field as sent by the frame.
	Raw json.RawMessage
	// Connection is set when the error was a connection-level broadcast.
	Connection bool
}

func (e *RemoteError) Error() string {
	msg := e.Message()
	if e.Connection {
		return fmt.Sprintf("connection error: %s", msg)
	}
	return msg
}

// Message returns the error as text: JSON strings are unquoted,
// objects with a "message" field use it, anything else is returned verbatim.
func (e *RemoteError) Message() string {
	var s string
	if err := json.Unmarshal(e.Raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Raw, &obj); err == nil && obj.Message != "" {
		return obj.Message
	}
	return string(e.Raw)
}

// NewRemoteError builds the error for a reply; it returns nil when the reply carries none.
func NewRemoteError(resp Response) error {
	if !resp.HasError() {
		return nil
	}
	return &RemoteError{Raw: resp.Error, Connection: resp.ConnectError}
}

// EncodeError renders err as the JSON error field of a reply.
func EncodeError(err error) json.RawMessage {
	if err == nil {
		return nil
	}
	data, _ := json.Marshal(err.Error())
	return data
}
