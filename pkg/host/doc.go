/*
Package host implements the remote side of the storage frame protocol.

A Host answers the requests a guest session posts into a frame: it acknowledges
connect probes with the connected marker, serves get/set/remove from a
ports.KVStore, and reports backend outages as connection-level errors. It is
transport agnostic; pkg/adapters/http serves it over websocket and ServeStream
serves it over a pair of byte streams (the stdio of a child process).
*/
package host
