/*
Package domain contains the wire model shared by the guest and the storage host.

It defines the messages exchanged across the isolation boundary, the request
id scheme, the sentinel errors of the guest surface and the lifecycle events
emitted by the handshake. This package is kept free of I/O, following the
Hexagonal Architecture used by the rest of the module.

# Key Entities

  - Request: a posting from the guest to the frame (connect, get, set, remove).
  - Response: a reply from the frame (connected marker, connection error or per-request reply).
  - Envelope: an inbound message as delivered by a frame, tagged with its origin.
  - LifecycleHooks: callbacks fired on handshake transitions and replies.
*/
package domain
