package host

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aretw0/storageguest/pkg/domain"
)

// MaxLineSize bounds one newline-delimited request on a stream.
const MaxLineSize = 1 << 20

// ServeStream answers newline-delimited JSON requests read from r, writing one
// JSON reply per line to w. origin is reported as the sender of every request.
// It returns nil when r is exhausted and ctx.Err() when ctx is cancelled.
func (h *Host) ServeStream(ctx context.Context, r io.Reader, w io.Writer, origin string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var mu sync.Mutex
	enc := json.NewEncoder(w)
	var writeErr error
	reply := func(resp domain.Response) {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil {
			return
		}
		if err := enc.Encode(resp); err != nil {
			writeErr = fmt.Errorf("write reply: %w", err)
			cancel()
		}
	}

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), MaxLineSize)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	stopped := func() error {
		mu.Lock()
		defer mu.Unlock()
		if writeErr != nil {
			return writeErr
		}
		return ctx.Err()
	}

	h.logger.Debug("Serving stream", "origin", origin)
	for {
		select {
		case <-ctx.Done():
			return stopped()

		case line, ok := <-lines:
			if !ok {
				err := <-scanErr
				if ctx.Err() != nil {
					return stopped()
				}
				if err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("read request: %w", err)
				}
				h.logger.Debug("Stream closed", "origin", origin)
				return nil
			}
			if len(line) == 0 {
				continue
			}

			var req domain.Request
			if err := json.Unmarshal(line, &req); err != nil {
				h.logger.Warn("Dropped malformed request", "origin", origin, "err", err)
				continue
			}
			h.Respond(ctx, origin, req, reply)
		}
	}
}
