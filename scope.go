package resguard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// State describes where a [Scope] is in its lifecycle. The transitions
// are strictly one-way: Unacquired → Acquired → Released.
type State int32

const (
	// StateUnacquired is the initial state. A failed acquire leaves
	// the scope here.
	StateUnacquired State = iota

	// StateAcquired means the scope owns a handle. Block execution
	// happens only in this state.
	StateAcquired

	// StateReleased is terminal. The underlying release has run (or
	// begun running) and can never run again through this scope.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUnacquired:
		return "unacquired"
	case StateAcquired:
		return "acquired"
	case StateReleased:
		return "released"
	default:
		return "unknown"
	}
}

// Scope provides manual lifecycle control over a single acquire/release
// pair. Create one via [Open]; acquire with [Scope.Enter]; release with
// [Scope.Release].
//
// Prefer [With] or [Resource.With] for most use cases; use a Scope when
// acquisition and release must happen in different functions or be
// integrated with an existing lifecycle.
//
// A Scope owns at most one handle and is not safe for concurrent use.
type Scope[T any] struct {
	res  Resource[T]
	cfg  config
	info ResourceInfo

	state atomic.Int32

	handle   T
	acquired time.Time

	relOnce sync.Once
	relErr  error
}

// Open creates a [Scope] over res in [StateUnacquired]. Nothing is
// acquired until [Scope.Enter] is called.
//
// Open panics if res.Acquire or res.Release is nil.
func Open[T any](res Resource[T], opts ...Option) *Scope[T] {
	if res.Acquire == nil {
		panic("resguard: Open requires a non-nil Acquire")
	}
	if res.Release == nil {
		panic("resguard: Open requires a non-nil Release")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Scope[T]{
		res:  res,
		cfg:  cfg,
		info: newResourceInfo(res.Name),
	}
}

// Enter acquires the resource, moving the scope from [StateUnacquired]
// to [StateAcquired]. On acquire failure the scope stays Unacquired and
// the error surfaces wrapped in [*AcquireError]; no release will run.
//
// Enter panics if the scope is already acquired or released: a scope
// brackets exactly one acquire/release pair.
func (sc *Scope[T]) Enter(ctx context.Context) (T, error) {
	if State(sc.state.Load()) != StateUnacquired {
		panic("resguard: Enter on a scope that already acquired")
	}

	h, err := doAcquire(ctx, sc.info, &sc.cfg, sc.res.Acquire)
	if err != nil {
		var zero T
		return zero, err
	}

	sc.handle = h
	sc.acquired = time.Now()
	sc.state.Store(int32(StateAcquired))
	return h, nil
}

// Handle returns the acquired handle. It panics unless the scope is in
// [StateAcquired].
func (sc *Scope[T]) Handle() T {
	if State(sc.state.Load()) != StateAcquired {
		panic("resguard: Handle on a scope that is not acquired")
	}
	return sc.handle
}

// Release gives the handle back, moving the scope to [StateReleased].
// A release failure surfaces wrapped in [*ReleaseError].
//
// Release is idempotent: repeat calls return the first call's result
// and never re-run the underlying release. Calling Release on a scope
// that never acquired returns [ErrNotAcquired]: there is nothing to
// release for a failed or absent acquisition.
func (sc *Scope[T]) Release(ctx context.Context) error {
	switch State(sc.state.Load()) {
	case StateUnacquired:
		return ErrNotAcquired
	case StateAcquired, StateReleased:
		sc.relOnce.Do(func() {
			sc.state.Store(int32(StateReleased))
			held := time.Since(sc.acquired)
			sc.relErr = doRelease(ctx, sc.info, &sc.cfg, sc.handle, sc.res.Release, held)
		})
		return sc.relErr
	default:
		return nil
	}
}

// State reports the scope's current lifecycle state.
func (sc *Scope[T]) State() State {
	return State(sc.state.Load())
}

// Info returns the [ResourceInfo] identifying this scope.
func (sc *Scope[T]) Info() ResourceInfo {
	return sc.info
}
