package iotesting

import (
	"context"
	"sync"

	"github.com/warno/warno/pkg/protocol"
)

// Sender is a protocol.Sender that records what it sends and answers with
// Reply. A nil Reply echoes the envelope back.
type Sender struct {
	mu    sync.Mutex
	Sent  []*protocol.Envelope
	Reply func(ctx context.Context, env *protocol.Envelope) (*protocol.Envelope, error)
}

// Send implements protocol.Sender.
func (s *Sender) Send(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	s.mu.Lock()
	s.Sent = append(s.Sent, env)
	reply := s.Reply
	s.mu.Unlock()

	if reply == nil {
		return env, nil
	}
	return reply(ctx, env)
}

// SendOnce is Send, there is no retry to bypass.
func (s *Sender) SendOnce(
	ctx context.Context,
	env *protocol.Envelope,
) (*protocol.Envelope, error) {
	return s.Send(ctx, env)
}

// Count returns the number of sent envelopes.
func (s *Sender) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sent)
}

// Spooled is an envelope kept by Spooler.
type Spooled struct {
	Env    *protocol.Envelope
	Reason string
}

// Spooler is an in-memory store.Spooler.
type Spooler struct {
	mu    sync.Mutex
	Items []Spooled
}

// Put implements store.Spooler.
func (s *Spooler) Put(
	_ context.Context,
	env *protocol.Envelope,
	reason string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Items = append(s.Items, Spooled{Env: env, Reason: reason})
	return nil
}

// Len returns the number of spooled envelopes.
func (s *Spooler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Items)
}
