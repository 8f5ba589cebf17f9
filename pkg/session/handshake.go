package session

import (
	"encoding/json"
	"time"

	"github.com/aretw0/storageguest/pkg/domain"
)

// openStorage attaches the frame and enters the connecting phase.
// Caller holds s.mu.
func (s *Session) openStorage(fx *effects) {
	s.gen++
	gen := s.gen

	s.closed = false
	s.connected = false
	s.aborted = false
	s.phase = PhaseConnecting

	s.transport.open(
		func() { go s.handleLoad(gen) },
		func(env domain.Envelope) { s.handleEnvelope(gen, env) },
	)
	s.logger.Debug("Opening storage frame", "origin", s.transport.origin, "timeout", s.connectTimeout)
	s.emitSession(fx, domain.EventOpen, nil)

	s.recheck(fx, gen)
	if s.connectTimeout > 0 {
		s.timeout = time.AfterFunc(s.connectTimeout, func() { s.handleTimeout(gen) })
	}
}

// recheck is one step of the polling handshake. Once the session is connected
// or aborted it stops both timers and replays the queue; otherwise it probes
// the frame again and reschedules itself. Caller holds s.mu.
func (s *Session) recheck(fx *effects, gen uint64) {
	if s.connected || s.aborted {
		s.stopTimers()
		for _, req := range s.queue.drain() {
			s.message(fx, req)
		}
		return
	}

	s.message(fx, pendingRequest{method: domain.MethodConnect})
	s.poll = time.AfterFunc(s.pollInterval, func() { s.handlePoll(gen) })
}

func (s *Session) stopTimers() {
	if s.poll != nil {
		s.poll.Stop()
		s.poll = nil
	}
	if s.timeout != nil {
		s.timeout.Stop()
		s.timeout = nil
	}
}

func (s *Session) handlePoll(gen uint64) {
	var fx effects
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}
	s.recheck(&fx, gen)
	s.mu.Unlock()
	fx.run()
}

func (s *Session) handleTimeout(gen uint64) {
	var fx effects
	s.mu.Lock()
	if gen != s.gen || s.closed || s.connected || s.aborted {
		s.mu.Unlock()
		return
	}

	s.aborted = true
	s.transport.blank()
	s.logger.Warn("Connect timeout elapsed, aborting session",
		"origin", s.transport.origin,
		"timeout", s.connectTimeout,
		"queued", s.queue.len(),
	)
	s.emitSession(&fx, domain.EventAborted, domain.ErrConnectionAborted)

	// Reject queued requests now instead of on the next poll tick.
	s.recheck(&fx, gen)
	s.mu.Unlock()
	fx.run()
}

func (s *Session) handleLoad(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || s.closed {
		return
	}
	s.transport.loaded = true
	s.logger.Debug("Storage frame loaded", "origin", s.transport.origin)
}

func (s *Session) handleEnvelope(gen uint64, env domain.Envelope) {
	resp, err := env.Decode()
	if err != nil {
		s.logger.Debug("Dropped undecodable envelope", "origin", env.Origin, "err", err)
		return
	}

	var fx effects
	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		return
	}

	switch {
	case resp.Connected():
		if s.connected || s.aborted {
			break
		}
		s.connected = true
		s.phase = PhaseConnected
		s.logger.Debug("Storage frame connected", "origin", s.transport.origin, "queued", s.queue.len())
		s.emitSession(&fx, domain.EventConnected, nil)
		s.recheck(&fx, gen)

	case resp.ConnectError:
		connErr := domain.NewRemoteError(resp)
		if connErr == nil {
			connErr = &domain.RemoteError{Raw: json.RawMessage("null"), Connection: true}
		}
		s.logger.Warn("Storage frame reported a connection error",
			"origin", s.transport.origin,
			"pending", s.table.len(),
			"queued", s.queue.len(),
			"err", connErr,
		)
		s.emitSession(&fx, domain.EventConnectError, connErr)
		fx.completions = append(fx.completions, s.table.resolveAll(connErr)...)
		// Requests still waiting for the handshake fail too; they were never
		// registered, so each callback still fires once.
		for _, req := range s.queue.drain() {
			fx.complete(req.cb, nil, connErr)
		}

	case resp.ID != "":
		c, entry, ok := s.table.resolve(resp.ID, resp.Data, domain.NewRemoteError(resp))
		if !ok {
			s.logger.Debug("Ignored reply for unknown id", "id", resp.ID)
			break
		}
		fx.completions = append(fx.completions, c)
		if s.hooks.OnReply != nil {
			event := &domain.RequestEvent{
				EventBase: s.eventBase(domain.EventReply),
				Method:    entry.method,
				ID:        resp.ID,
				IsError:   c.err != nil,
				Elapsed:   time.Since(entry.sentAt),
			}
			fx.notify(func() { s.hooks.OnReply(ctxBackground, event) })
		}
	}
	s.mu.Unlock()
	fx.run()
}
