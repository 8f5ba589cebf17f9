package session

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/storageguest/pkg/domain"
	"github.com/aretw0/storageguest/pkg/ports"
)

// transport owns the frame's attach/detach lifecycle and its single inbound
// subscription. All methods except post run under the Session lock.
type transport struct {
	frame     ports.Frame
	container ports.Container
	source    string
	origin    string
	logger    *slog.Logger

	loaded      bool
	unsubscribe func()
}

func newTransport(frame ports.Frame, container ports.Container, source string, logger *slog.Logger) *transport {
	return &transport{
		frame:     frame,
		container: container,
		source:    source,
		origin:    domain.OriginOf(source),
		logger:    logger,
	}
}

// open attaches the frame, subscribes to envelopes from the target origin and
// starts loading the source. onLoad and onEnvelope are called from frame goroutines.
func (t *transport) open(onLoad func(), onEnvelope func(domain.Envelope)) {
	if err := t.container.Attach(t.frame); err != nil {
		t.logger.Warn("Failed to attach frame", "origin", t.origin, "err", err)
	}

	if t.unsubscribe == nil {
		cancel := t.frame.Subscribe(func(env domain.Envelope) {
			if env.Origin != t.origin {
				t.logger.Debug("Dropped envelope from foreign origin", "origin", env.Origin, "want", t.origin)
				return
			}
			onEnvelope(env)
		})
		var once sync.Once
		t.unsubscribe = func() { once.Do(cancel) }
	}

	t.loaded = false
	t.frame.Load(t.source, onLoad)
}

// ready reports whether requests may be posted: nothing is posted before
// the frame has loaded.
func (t *transport) ready() error {
	if !t.loaded {
		return domain.ErrNotDelivered
	}
	return nil
}

// post writes data to the frame. It is the one transport method called
// without the Session lock; frame and origin never change after construction.
func (t *transport) post(data []byte) error {
	if err := t.frame.Post(data, t.origin); err != nil {
		return fmt.Errorf("post to %s: %w", t.origin, err)
	}
	return nil
}

// blank discards the in-flight load, leaving the frame on an empty document.
func (t *transport) blank() {
	t.frame.Blank()
}

// close stops listening, unloads the document and detaches the frame.
func (t *transport) close() {
	if t.unsubscribe != nil {
		t.unsubscribe()
		t.unsubscribe = nil
	}
	if err := t.frame.Unload(); err != nil {
		t.logger.Warn("Failed to unload frame", "origin", t.origin, "err", err)
	}
	if err := t.container.Detach(t.frame); err != nil {
		t.logger.Warn("Failed to detach frame", "origin", t.origin, "err", err)
	}
	t.loaded = false
}
