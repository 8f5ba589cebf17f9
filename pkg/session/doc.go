/*
Package session implements the guest side of the storage frame protocol.

A Session proxies get/set/remove calls to a key/value store living inside an
isolated frame. Nothing is shared with the frame: every call is posted as a
message and completed later through a callback when the matching reply
arrives.

# Handshake

Opening a session attaches the frame and polls it with connect requests until
the frame acknowledges with the connected marker. Requests issued before that
point are queued and replayed once the handshake completes (or rejected once
it is aborted by the optional connect timeout).

	s, err := session.New(frame, "wss://storage.example.com/frame",
		session.WithConnectTimeout(5*time.Second),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	_ = s.Set("theme", "dark", nil)
	_ = s.Get("theme", func(data json.RawMessage, err error) {
		log.Println(string(data), err)
	})

# Completion

Every callback passed to a Session is invoked exactly once: with the reply,
with a connection-level error broadcast by the frame, with
domain.ErrConnectionAborted, with domain.ErrNotDelivered, or with
domain.ErrSessionClosed. Callbacks never run while the session lock is held,
so they may call back into the session.
*/
package session
