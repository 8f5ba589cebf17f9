package session

import (
	"context"
	"encoding/json"
)

type result struct {
	data json.RawMessage
	err  error
}

// GetContext is Get for callers that prefer to block.
// A null value is returned as nil data.
func (s *Session) GetContext(ctx context.Context, key string) (json.RawMessage, error) {
	done := make(chan result, 1)
	if err := s.Get(key, deliver(done)); err != nil {
		return nil, err
	}
	r, err := await(ctx, done)
	if err != nil {
		return nil, err
	}
	if string(r.data) == "null" {
		return nil, r.err
	}
	return r.data, r.err
}

// SetContext is Set for callers that prefer to block.
func (s *Session) SetContext(ctx context.Context, key string, value any) error {
	done := make(chan result, 1)
	if err := s.Set(key, value, deliver(done)); err != nil {
		return err
	}
	r, err := await(ctx, done)
	if err != nil {
		return err
	}
	return r.err
}

// RemoveContext is Remove for callers that prefer to block.
func (s *Session) RemoveContext(ctx context.Context, key string) error {
	done := make(chan result, 1)
	if err := s.Remove(key, deliver(done)); err != nil {
		return err
	}
	r, err := await(ctx, done)
	if err != nil {
		return err
	}
	return r.err
}

// deliver never blocks: the channel is buffered and callbacks fire once.
func deliver(done chan<- result) Callback {
	return func(data json.RawMessage, err error) {
		done <- result{data: data, err: err}
	}
}

func await(ctx context.Context, done <-chan result) (result, error) {
	select {
	case r := <-done:
		return r, nil
	case <-ctx.Done():
		return result{}, ctx.Err()
	}
}
