package engine

import (
	"context"
	"sync"
)

// Signal is a one-shot readiness flag. The loader fires it once; any number
// of waiters observe it.
type Signal struct {
	once sync.Once
	ch   chan struct{}
	mu   sync.Mutex
}

func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Ready returns an already fired signal.
func Ready() *Signal {
	s := NewSignal()
	s.Fire()
	return s
}

func (s *Signal) chanLocked() chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

// Fire marks the engine module as loaded. Extra calls are ignored.
func (s *Signal) Fire() {
	ch := s.chanLocked()
	s.once.Do(func() { close(ch) })
}

func (s *Signal) Done() <-chan struct{} {
	return s.chanLocked()
}

func (s *Signal) IsFired() bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

// Wait blocks until Fire or ctx ends.
func (s *Signal) Wait(ctx context.Context) error {
	select {
	case <-s.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
