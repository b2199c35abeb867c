package resguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// ErrPoolClosed is returned by [Pool.Acquire] when the pool has been
// closed.
var ErrPoolClosed = errors.New("resguard: pool is closed")

// Pool keeps a bounded set of reusable handles. Acquire borrows a
// handle, creating new ones on demand up to the capacity; Release
// returns it for reuse. Beyond capacity, Acquire waits for a handle to
// come back, respecting context cancellation while waiting.
//
// Unlike [With] and [Scope], a Pool is safe for concurrent use.
type Pool[T any] struct {
	name    string
	factory AcquireFunc[T]
	destroy func(T) error

	idle    chan T
	cap     int
	closeCh chan struct{}

	mu       sync.Mutex
	created  int
	closed   bool
	closeErr error

	errMu sync.Mutex
	errs  []error

	// Observability counters.
	borrowed  atomic.Int64
	reused    atomic.Int64
	inUse     atomic.Int64
	destroyed atomic.Int64
}

// PoolStats provides a point-in-time snapshot of pool activity.
type PoolStats struct {
	Capacity  int   // maximum number of live handles
	Created   int   // handles created so far
	Idle      int   // handles waiting for reuse
	InUse     int64 // handles currently borrowed
	Borrowed  int64 // total successful Acquire calls
	Reused    int64 // borrows served from the idle set
	Destroyed int64 // handles destroyed
}

// PoolOption configures a [Pool].
type PoolOption[T any] func(*poolConfig[T])

type poolConfig[T any] struct {
	name            string
	destroy         func(T) error
	onMetrics       func(PoolStats)
	metricsInterval time.Duration
}

// WithPoolName sets the resource name used by [Pool.Use] and
// [Pool.Resource]. Default is "pool".
func WithPoolName[T any](name string) PoolOption[T] {
	return func(c *poolConfig[T]) {
		c.name = name
	}
}

// WithDestroy sets a destructor run on each handle dropped by the pool:
// idle handles during [Pool.Close] and handles released after close.
// Default is a no-op.
func WithDestroy[T any](fn func(T) error) PoolOption[T] {
	if fn == nil {
		panic("resguard: WithDestroy requires a non-nil destructor")
	}
	return func(c *poolConfig[T]) {
		c.destroy = fn
	}
}

// WithPoolMetrics registers a periodic pool metrics callback that fires
// every interval until the pool closes. The callback receives a
// snapshot of current pool counters.
//
// Panics if interval <= 0 or fn is nil.
func WithPoolMetrics[T any](interval time.Duration, fn func(PoolStats)) PoolOption[T] {
	if interval <= 0 {
		panic("resguard: WithPoolMetrics requires interval > 0")
	}
	if fn == nil {
		panic("resguard: WithPoolMetrics requires non-nil callback")
	}
	return func(c *poolConfig[T]) {
		c.onMetrics = fn
		c.metricsInterval = interval
	}
}

// NewPool creates a pool holding at most capacity live handles, created
// on demand by factory. Panics if capacity <= 0 or factory is nil.
func NewPool[T any](capacity int, factory AcquireFunc[T], opts ...PoolOption[T]) *Pool[T] {
	if capacity <= 0 {
		panic("resguard: NewPool requires capacity > 0")
	}
	if factory == nil {
		panic("resguard: NewPool requires a non-nil factory")
	}

	cfg := poolConfig[T]{
		name:    "pool",
		destroy: func(T) error { return nil },
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Pool[T]{
		name:    cfg.name,
		factory: factory,
		destroy: cfg.destroy,
		idle:    make(chan T, capacity),
		cap:     capacity,
		closeCh: make(chan struct{}),
	}

	// Start metrics ticker if configured.
	if cfg.onMetrics != nil {
		go func() {
			ticker := time.NewTicker(cfg.metricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					cfg.onMetrics(p.Stats())
				case <-p.closeCh:
					return
				}
			}
		}()
	}

	return p
}

// Acquire borrows a handle: an idle one if available, a new one if the
// pool is under capacity, otherwise it waits until a handle is released
// or ctx is cancelled. Returns [ErrPoolClosed] if the pool is closed.
func (p *Pool[T]) Acquire(ctx context.Context) (T, error) {
	var zero T

	if p.isClosed() {
		return zero, ErrPoolClosed
	}

	// Fast path: reuse an idle handle.
	select {
	case h := <-p.idle:
		p.reused.Add(1)
		p.borrowed.Add(1)
		p.inUse.Add(1)
		return h, nil
	default:
	}

	// Create a new handle if under capacity.
	p.mu.Lock()
	if p.created < p.cap {
		p.created++
		p.mu.Unlock()

		h, err := p.factory(ctx)
		if err != nil {
			p.mu.Lock()
			p.created--
			p.mu.Unlock()
			return zero, err
		}

		p.borrowed.Add(1)
		p.inUse.Add(1)
		return h, nil
	}
	p.mu.Unlock()

	// At capacity: wait for a release.
	select {
	case h := <-p.idle:
		p.reused.Add(1)
		p.borrowed.Add(1)
		p.inUse.Add(1)
		return h, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-p.closeCh:
		return zero, ErrPoolClosed
	}
}

// Release returns a borrowed handle to the pool for reuse. If the pool
// has closed, the handle is destroyed instead; destroy errors are
// collected and surfaced by [Pool.Close].
func (p *Pool[T]) Release(h T) {
	p.inUse.Add(-1)

	if p.isClosed() {
		p.destroyHandle(h)
		return
	}

	select {
	case p.idle <- h:
	default:
		// More releases than borrows; drop the extra handle.
		p.destroyHandle(h)
	}
}

// Resource adapts the pool to a [Resource] so pooled handles compose
// with [With], [Stack], and [Open].
func (p *Pool[T]) Resource() Resource[T] {
	return Resource[T]{
		Name:    p.name,
		Acquire: p.Acquire,
		Release: func(_ context.Context, h T) error {
			p.Release(h)
			return nil
		},
	}
}

// Use borrows a handle, runs block with it through the scoped pattern,
// and returns the handle to the pool on every exit path.
func (p *Pool[T]) Use(ctx context.Context, block BlockFunc[T], opts ...Option) error {
	return p.Resource().With(ctx, block, opts...)
}

// Close closes the pool and destroys all idle handles. Handles still
// borrowed are destroyed as they are released. Returns all destroy
// errors combined via multierr.
//
// Close is idempotent; subsequent calls return the first call's result.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		err := p.closeErr
		p.mu.Unlock()
		return err
	}
	p.closed = true
	p.mu.Unlock()

	close(p.closeCh)

	// Drain and destroy idle handles.
	for {
		select {
		case h := <-p.idle:
			p.destroyHandle(h)
		default:
			p.errMu.Lock()
			err := multierr.Combine(p.errs...)
			p.errMu.Unlock()

			p.mu.Lock()
			p.closeErr = err
			p.mu.Unlock()
			return err
		}
	}
}

// Stats returns a snapshot of pool activity. Values may be momentarily
// inconsistent with each other under concurrent use.
func (p *Pool[T]) Stats() PoolStats {
	p.mu.Lock()
	created := p.created
	p.mu.Unlock()

	return PoolStats{
		Capacity:  p.cap,
		Created:   created,
		Idle:      len(p.idle),
		InUse:     p.inUse.Load(),
		Borrowed:  p.borrowed.Load(),
		Reused:    p.reused.Load(),
		Destroyed: p.destroyed.Load(),
	}
}

func (p *Pool[T]) isClosed() bool {
	select {
	case <-p.closeCh:
		return true
	default:
		return false
	}
}

func (p *Pool[T]) destroyHandle(h T) {
	p.destroyed.Add(1)
	if err := p.destroy(h); err != nil {
		p.errMu.Lock()
		p.errs = append(p.errs, err)
		p.errMu.Unlock()
	}
}
