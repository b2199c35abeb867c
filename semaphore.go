package resguard

import (
	"context"
	"sync/atomic"
)

// Semaphore treats capacity slots as an acquirable resource: a slot is
// acquired before the work and given back exactly once after it, the
// same bracket discipline as any other scope. It is context-aware:
// acquisition unblocks if the context is cancelled.
//
// Unlike [With] and [Scope], a Semaphore is safe for concurrent use.
type Semaphore struct {
	ch   chan struct{}
	cap  int
	held atomic.Int64
}

// NewSemaphore creates a semaphore with the given number of slots.
// Panics if n <= 0.
func NewSemaphore(n int) *Semaphore {
	if n <= 0 {
		panic("resguard: NewSemaphore requires n > 0")
	}
	return &Semaphore{
		ch:  make(chan struct{}, n),
		cap: n,
	}
}

// Enter acquires one slot, blocking until a slot is available or ctx is
// cancelled. On success it returns a release function that must be
// called exactly once to give the slot back; the release function
// panics on a second call. Returns ctx.Err() on cancellation.
func (s *Semaphore) Enter(ctx context.Context) (release func(), err error) {
	select {
	case s.ch <- struct{}{}:
		s.held.Add(1)
		var released atomic.Bool
		return func() {
			if !released.CompareAndSwap(false, true) {
				panic("resguard: semaphore slot released twice")
			}
			s.held.Add(-1)
			<-s.ch
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryEnter attempts to acquire a slot without blocking. On success it
// returns a release function as in [Semaphore.Enter] and true.
func (s *Semaphore) TryEnter() (release func(), ok bool) {
	select {
	case s.ch <- struct{}{}:
		s.held.Add(1)
		var released atomic.Bool
		return func() {
			if !released.CompareAndSwap(false, true) {
				panic("resguard: semaphore slot released twice")
			}
			s.held.Add(-1)
			<-s.ch
		}, true
	default:
		return nil, false
	}
}

// Use acquires a slot, runs fn, and gives the slot back on every exit
// path, including a panic in fn.
func (s *Semaphore) Use(ctx context.Context, fn func(ctx context.Context) error) error {
	release, err := s.Enter(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx)
}

// Resource adapts one slot to a [Resource] so a slot composes with
// [With], [Stack], and [Open]. The handle is the slot's release
// function; the resource's release step invokes it.
func (s *Semaphore) Resource(name string) Resource[func()] {
	return Resource[func()]{
		Name: name,
		Acquire: func(ctx context.Context) (func(), error) {
			return s.Enter(ctx)
		},
		Release: func(_ context.Context, release func()) error {
			release()
			return nil
		},
	}
}

// Available returns the number of free slots. The value may be stale
// in concurrent contexts.
func (s *Semaphore) Available() int {
	return s.cap - len(s.ch)
}

// Held returns the number of slots currently held.
func (s *Semaphore) Held() int64 {
	return s.held.Load()
}
