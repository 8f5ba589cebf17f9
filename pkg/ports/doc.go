/*
Package ports defines the driven ports (interfaces) of the storage guest and its host.

These interfaces decouple the handshake core from concrete transports and
storage backends, so the same guest runs against an in-process frame, a
websocket endpoint or a child process.

# Key Interfaces

  - Frame: an isolated execution context reachable only by posting messages.
  - Container: the attachment point frames are mounted on.
  - Responder: the remote side of a frame, answering requests with replies.
  - KVStore: the storage backend a host serves.
*/
package ports
