package resguard

import (
	"context"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stack composes nested scopes that must unwind in reverse order of
// entry. Releases registered with [Stack.Push], [Stack.PushCloser], or
// [Enter] run back-to-front when [Stack.Close] is called, so an inner
// resource is always released before the outer one that produced it.
//
// A Stack models the single-owner, strictly ordered nesting of the
// scoped pattern and is not safe for concurrent use.
type Stack struct {
	cfg      config
	entries  []stackEntry
	closed   bool
	closeErr error
}

type stackEntry struct {
	info    ResourceInfo
	release func(ctx context.Context) error
}

// NewStack creates an empty [Stack]. Options apply to every release it
// later runs and to every resource entered via [Enter].
func NewStack(opts ...Option) *Stack {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Stack{cfg: cfg}
}

// Push registers a release to run during [Stack.Close]. Releases run in
// reverse order of registration. Panics if release is nil or the stack
// is already closed.
func (st *Stack) Push(name string, release func(ctx context.Context) error) {
	if release == nil {
		panic("resguard: Push requires a non-nil release")
	}
	if st.closed {
		panic("resguard: Push on a closed stack")
	}
	st.entries = append(st.entries, stackEntry{
		info:    newResourceInfo(name),
		release: release,
	})
}

// PushCloser registers c.Close to run during [Stack.Close].
// Panics if c is nil or the stack is already closed.
func (st *Stack) PushCloser(name string, c io.Closer) {
	if c == nil {
		panic("resguard: PushCloser requires a non-nil closer")
	}
	st.Push(name, func(context.Context) error {
		return c.Close()
	})
}

// Enter acquires res and registers its release on st, returning the
// handle for use until [Stack.Close]. On acquire failure nothing is
// registered and the failure surfaces wrapped in [*AcquireError].
func Enter[T any](st *Stack, ctx context.Context, res Resource[T]) (T, error) {
	if st.closed {
		panic("resguard: Enter on a closed stack")
	}

	info := newResourceInfo(res.Name)
	h, err := doAcquire(ctx, info, &st.cfg, res.Acquire)
	if err != nil {
		var zero T
		return zero, err
	}

	st.entries = append(st.entries, stackEntry{
		info: info,
		release: func(ctx context.Context) error {
			return res.Release(ctx, h)
		},
	})
	return h, nil
}

// Len returns the number of releases currently registered.
func (st *Stack) Len() int {
	return len(st.entries)
}

// Close runs every registered release in reverse order of registration,
// each exactly once. A failing or panicking release does not stop the
// remaining releases: failures are combined via multierr (innermost
// first) and a panicking release contributes a [*PanicError] member.
//
// Close is idempotent: repeat calls return the first call's result
// without re-running any release.
func (st *Stack) Close(ctx context.Context) error {
	if st.closed {
		return st.closeErr
	}
	st.closed = true

	var err error
	for i := len(st.entries) - 1; i >= 0; i-- {
		e := st.entries[i]
		err = multierr.Append(err, st.runEntry(ctx, e))
	}
	st.entries = nil
	st.closeErr = err
	return err
}

// runEntry runs one release with panic recovery so the remaining
// entries still unwind.
func (st *Stack) runEntry(ctx context.Context, e stackEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pv := newPanicError(r)
			st.cfg.logger.Error("release panicked",
				zap.String("resource", e.info.Name),
				zap.String("id", e.info.ID),
				zap.Any("value", pv.Value),
			)
			st.cfg.emit(Event{Kind: EventReleaseFailed, Resource: e.info, Err: pv})
			err = pv
		}
	}()

	relErr := e.release(ctx)
	if relErr != nil {
		rerr := &ReleaseError{Resource: e.info, Err: relErr}
		st.cfg.logger.Error("release failed",
			zap.String("resource", e.info.Name),
			zap.String("id", e.info.ID),
			zap.Error(relErr),
		)
		st.cfg.emit(Event{Kind: EventReleaseFailed, Resource: e.info, Err: rerr})
		return rerr
	}

	st.cfg.logger.Debug("released",
		zap.String("resource", e.info.Name),
		zap.String("id", e.info.ID),
	)
	st.cfg.emit(Event{Kind: EventReleased, Resource: e.info})
	return nil
}
