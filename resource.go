// With is the core of the scoped-acquisition pattern: acquire a handle,
// run a block with it, release the handle exactly once on every exit
// path, then surface the block's failure (if any) to the caller.
//
// The flow is strictly ordered. If acquire fails the scope is never
// entered and release never runs. Once acquire succeeds, release is
// guaranteed: a block error, a block panic, and a normal return all
// pass through the same release step before control returns to the
// caller.
package resguard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// AcquireFunc obtains a resource handle. It may fail, in which case no
// handle exists and the paired release will not be called.
type AcquireFunc[T any] func(ctx context.Context) (T, error)

// ReleaseFunc gives a resource handle back. It receives the handle
// produced by the paired acquire.
type ReleaseFunc[T any] func(ctx context.Context, h T) error

// BlockFunc is the caller-supplied work that runs while the handle is
// held.
type BlockFunc[T any] func(ctx context.Context, h T) error

// Resource bundles a named acquire/release pair so a scope can be
// declared once and entered many times.
type Resource[T any] struct {
	Name    string
	Acquire AcquireFunc[T]
	Release ReleaseFunc[T]
}

// With acquires the resource, runs block with the handle, and releases
// before any failure surfaces. See [With] for the full contract.
func (r Resource[T]) With(ctx context.Context, block BlockFunc[T], opts ...Option) error {
	return With(ctx, r.Name, r.Acquire, r.Release, block, opts...)
}

// With runs block inside a scope bracketed by acquire and release.
//
// Ordering guarantees:
//   - acquire runs before the block; on acquire failure the block and
//     release never run and the failure surfaces as [*AcquireError].
//   - release runs exactly once after the block exits, on every path:
//     normal return, error return, or panic.
//   - the block's failure surfaces to the caller only after release
//     has completed. A pending release failure is combined with it via
//     multierr, block failure first.
//   - a block panic is re-raised after release runs, unless
//     [WithPanicAsError] converts it to a returned [*PanicError].
//
// Suppression via [WithSuppress] applies to acquire and block failures
// after release has run; release failures are never suppressed.
//
// With panics if acquire, release, or block is nil.
func With[T any](
	ctx context.Context,
	name string,
	acquire AcquireFunc[T],
	release ReleaseFunc[T],
	block BlockFunc[T],
	opts ...Option,
) error {
	if acquire == nil {
		panic("resguard: With requires a non-nil acquire")
	}
	if release == nil {
		panic("resguard: With requires a non-nil release")
	}
	if block == nil {
		panic("resguard: With requires a non-nil block")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	info := newResourceInfo(name)

	h, err := doAcquire(ctx, info, &cfg, acquire)
	if err != nil {
		return cfg.suppress(info, err)
	}

	return runScoped(ctx, info, &cfg, h, release, block)
}

// doAcquire runs the acquire step with logging and event emission.
// The returned error, if any, is already wrapped in [*AcquireError].
func doAcquire[T any](ctx context.Context, info ResourceInfo, cfg *config, acquire AcquireFunc[T]) (T, error) {
	h, err := acquire(ctx)
	if err != nil {
		var zero T
		aerr := &AcquireError{Resource: info, Err: err}
		cfg.logger.Warn("acquire failed",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
			zap.Error(err),
		)
		cfg.emit(Event{Kind: EventAcquireFailed, Resource: info, Err: aerr})
		return zero, aerr
	}

	cfg.logger.Debug("acquired",
		zap.String("resource", info.Name),
		zap.String("id", info.ID),
	)
	cfg.emit(Event{Kind: EventAcquired, Resource: info})
	if cfg.onAcquire != nil {
		cfg.onAcquire(info)
	}
	return h, nil
}

// runScoped executes block with an already-acquired handle and
// guarantees exactly one release on the way out.
func runScoped[T any](
	ctx context.Context,
	info ResourceInfo,
	cfg *config,
	h T,
	release ReleaseFunc[T],
	block BlockFunc[T],
) error {
	start := time.Now()

	blockErr, pv := guard(ctx, h, block)

	if pv != nil {
		cfg.logger.Error("block panicked",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
			zap.Any("value", pv.Value),
		)
		cfg.emit(Event{Kind: EventPanicked, Resource: info, Err: pv})
	} else if blockErr != nil {
		cfg.emit(Event{Kind: EventBlockFailed, Resource: info, Err: blockErr})
	}

	relErr := doRelease(ctx, info, cfg, h, release, time.Since(start))

	if pv != nil {
		if !cfg.panicAsErr {
			// Release already ran; a release failure was logged and
			// emitted above. The panic takes precedence.
			panic(pv)
		}
		blockErr = pv
	} else {
		blockErr = cfg.suppress(info, blockErr)
	}

	return multierr.Append(blockErr, relErr)
}

// doRelease runs the release step with logging and event emission.
// The returned error, if any, is already wrapped in [*ReleaseError].
func doRelease[T any](
	ctx context.Context,
	info ResourceInfo,
	cfg *config,
	h T,
	release ReleaseFunc[T],
	held time.Duration,
) error {
	err := release(ctx, h)

	if cfg.onRelease != nil {
		cfg.onRelease(info, err, held)
	}

	if err != nil {
		rerr := &ReleaseError{Resource: info, Err: err}
		cfg.logger.Error("release failed",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
			zap.Duration("held", held),
			zap.Error(err),
		)
		cfg.emit(Event{Kind: EventReleaseFailed, Resource: info, Err: rerr, Duration: held})
		return rerr
	}

	cfg.logger.Debug("released",
		zap.String("resource", info.Name),
		zap.String("id", info.ID),
		zap.Duration("held", held),
	)
	cfg.emit(Event{Kind: EventReleased, Resource: info, Duration: held})
	return nil
}

// guard runs block with panic recovery. A recovered panic is returned
// as a [*PanicError] with its stack; err is the block's ordinary error.
func guard[T any](ctx context.Context, h T, block BlockFunc[T]) (err error, pv *PanicError) {
	defer func() {
		if r := recover(); r != nil {
			pv = newPanicError(r)
		}
	}()
	return block(ctx, h), nil
}

// suppress discards err if it matches a configured suppression kind.
// Suppressed failures are still emitted as [EventSuppressed].
func (c *config) suppress(info ResourceInfo, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range c.suppressed {
		if errors.Is(err, kind) {
			c.logger.Debug("failure suppressed",
				zap.String("resource", info.Name),
				zap.String("id", info.ID),
				zap.Error(err),
			)
			c.emit(Event{Kind: EventSuppressed, Resource: info, Err: err})
			return nil
		}
	}
	return err
}
