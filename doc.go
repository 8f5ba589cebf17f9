/*
Package storageguest is a client-side proxy to a key/value store that lives in
an isolated frame: a separate execution context reachable only by message
passing.

The guest never shares state with the frame. It polls the frame with a
connect handshake, queues the calls issued before the frame acknowledges,
correlates every posting with its asynchronous reply through a request id,
and optionally gives up after a connect timeout.

# Usage

Open picks a frame from the source scheme and returns a ready session:

	s, err := storageguest.Open("wss://storage.example.com/frame",
		storageguest.WithGuestOrigin("https://app.example.com"),
		storageguest.WithSessionOptions(session.WithConnectTimeout(5*time.Second)),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	err = s.Get("theme", func(data json.RawMessage, err error) {
		// exactly once: reply, connection error, abort, delivery failure or close
	})

Supported sources:

  - ws://, wss://: a websocket endpoint served by pkg/adapters/http.
  - exec:<command> [args...]: a child process serving the protocol on stdio.
  - memory://<name>: an in-process host, mostly for tests and examples.

# Architecture

The handshake and correlation core lives in pkg/session and depends only on
the ports in pkg/ports. Frames and stores are adapters under pkg/adapters; the
remote side of the protocol is pkg/host.
*/
package storageguest
