package session

import (
	"errors"
	"sync"

	"github.com/aretw0/storageguest/pkg/ports"
)

// ErrNotAttached is returned when detaching a frame that is not mounted.
var ErrNotAttached = errors.New("frame not attached to container")

// Mount is a Container that tracks the frames attached to it.
// Safe for concurrent use.
type Mount struct {
	mu     sync.Mutex
	frames []ports.Frame
}

// DefaultContainer is used by sessions created without WithContainer.
var DefaultContainer = NewMount()

// NewMount creates an empty container.
func NewMount() *Mount {
	return &Mount{}
}

// Attach mounts f. Attaching a mounted frame is a no-op.
func (m *Mount) Attach(f ports.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.indexOf(f) >= 0 {
		return nil
	}
	m.frames = append(m.frames, f)
	return nil
}

// Detach unmounts f.
func (m *Mount) Detach(f ports.Frame) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.indexOf(f)
	if i < 0 {
		return ErrNotAttached
	}
	m.frames = append(m.frames[:i], m.frames[i+1:]...)
	return nil
}

// Contains reports whether f is mounted.
func (m *Mount) Contains(f ports.Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.indexOf(f) >= 0
}

// Len returns the number of mounted frames.
func (m *Mount) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *Mount) indexOf(f ports.Frame) int {
	for i, mounted := range m.frames {
		if mounted == f {
			return i
		}
	}
	return -1
}
