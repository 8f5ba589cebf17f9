package ports

import "github.com/aretw0/storageguest/pkg/domain"

// Frame is an isolated execution context reachable only by message passing.
//
// Implementations invoke onLoad and subscribed handlers from their own
// goroutines, never from inside Post and never while holding a lock a
// caller could contend on.
type Frame interface {
	// Load points the frame at source and starts loading it in the background.
	// onLoad is invoked once the remote document is ready to receive posts.
	Load(source string, onLoad func())

	// Post delivers data to the loaded document when its origin matches targetOrigin.
	// It returns domain.ErrNotDelivered when nothing is loaded or the origin differs.
	Post(data []byte, targetOrigin string) error

	// Subscribe registers handler for inbound envelopes.
	// The returned cancel func removes the handler; calling it twice is a no-op.
	Subscribe(handler func(domain.Envelope)) (cancel func())

	// Blank discards any in-flight load and leaves the frame on an empty document.
	Blank()

	// Unload tears down the loaded document and releases its resources.
	Unload() error
}

// Container is the attachment point frames are mounted on.
type Container interface {
	Attach(f Frame) error
	Detach(f Frame) error
}
