package stream

import (
	"context"
	"sync"
)

// Surface enforces the at-most-one-active-session rule for one UI surface.
// Beginning a new session cancels the previous one and waits for it to
// finish before handing out a context, so cross-session event interleaving
// cannot happen.
type Surface struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	idle   chan struct{}
}

// Begin cancels and awaits any session previously started on this surface,
// then returns a context for the new session and a release func. The caller
// must invoke release when its session reaches a terminal state.
func (s *Surface) Begin(ctx context.Context) (context.Context, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		<-s.idle
	}

	ctx, cancel := context.WithCancel(ctx)
	idle := make(chan struct{})
	s.cancel = cancel
	s.idle = idle

	var once sync.Once
	release := func() {
		once.Do(func() {
			cancel()
			close(idle)
		})
	}
	return ctx, release
}

// Abort cancels the active session, if any, without starting a new one.
func (s *Surface) Abort() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
