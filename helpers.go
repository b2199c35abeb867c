package resguard

import (
	"context"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Closing adapts an opener whose handle has a Close method into a
// [Resource]. The handle's Close runs as the release step, so a file,
// connection, or response body opened through it is closed on every
// exit path.
//
//	logFile := resguard.Closing("scan-log", func(ctx context.Context) (*os.File, error) {
//	    return os.Create("scan.log")
//	})
//	err := logFile.With(ctx, func(ctx context.Context, f *os.File) error {
//	    _, err := f.WriteString("sample loaded\n")
//	    return err
//	})
func Closing[T io.Closer](name string, open AcquireFunc[T]) Resource[T] {
	if open == nil {
		panic("resguard: Closing requires a non-nil open")
	}
	return Resource[T]{
		Name:    name,
		Acquire: open,
		Release: func(_ context.Context, h T) error {
			return h.Close()
		},
	}
}

// Null wraps an already-held handle in a no-op [Resource]: acquire
// hands the value back and release does nothing. Useful when an API
// takes a Resource but the caller manages the handle's lifetime
// elsewhere.
func Null[T any](name string, h T) Resource[T] {
	return Resource[T]{
		Name: name,
		Acquire: func(context.Context) (T, error) {
			return h, nil
		},
		Release: func(context.Context, T) error {
			return nil
		},
	}
}

// WithSetup derives a Resource that runs an initialize/cleanup pair
// around r's own acquire/release. Setup runs after acquire; if it
// fails, the core handle is released immediately and the setup failure
// surfaces (combined with any release failure). Teardown runs before
// release; a teardown failure never prevents the release, and the two
// failures are combined, teardown first.
//
// Use this when preparing a resource is a distinct step from obtaining
// it, such as switching an instrument into a mode after connecting.
//
// Panics if setup or teardown is nil.
func (r Resource[T]) WithSetup(setup func(ctx context.Context, h T) error, teardown func(ctx context.Context, h T) error) Resource[T] {
	if setup == nil {
		panic("resguard: WithSetup requires a non-nil setup")
	}
	if teardown == nil {
		panic("resguard: WithSetup requires a non-nil teardown")
	}
	return Resource[T]{
		Name: r.Name,
		Acquire: func(ctx context.Context) (T, error) {
			h, err := r.Acquire(ctx)
			if err != nil {
				var zero T
				return zero, err
			}
			if serr := setup(ctx, h); serr != nil {
				// The core handle was acquired, so it must be released
				// even though the derived acquire is failing.
				var zero T
				return zero, multierr.Append(serr, r.Release(ctx, h))
			}
			return h, nil
		},
		Release: func(ctx context.Context, h T) error {
			terr := teardown(ctx, h)
			return multierr.Append(terr, r.Release(ctx, h))
		},
	}
}

// Tx describes a transactional resource: begin produces a handle,
// commit finalizes it after a successful block, and rollback discards
// it after a failed or panicking block. The handle is always passed
// explicitly; transactional state is never ambient.
type Tx[T any] struct {
	Name     string
	Begin    func(ctx context.Context) (T, error)
	Commit   func(ctx context.Context, h T) error
	Rollback func(ctx context.Context, h T) error
}

// Transact runs block inside a transaction scope over tx.
//
// Begin runs first; on failure nothing else runs and the failure
// surfaces wrapped in [*AcquireError]. If block succeeds, Commit runs;
// a commit failure surfaces wrapped in [*ReleaseError]. If block fails
// or panics, Rollback runs before the failure re-surfaces; a rollback
// failure is combined with the block failure via multierr (block
// first). A panic is re-raised after rollback unless [WithPanicAsError]
// converts it to a returned [*PanicError].
//
// Transact panics if any of tx's functions or block is nil.
func Transact[T any](ctx context.Context, tx Tx[T], block BlockFunc[T], opts ...Option) error {
	if tx.Begin == nil || tx.Commit == nil || tx.Rollback == nil {
		panic("resguard: Transact requires non-nil Begin, Commit, and Rollback")
	}
	if block == nil {
		panic("resguard: Transact requires a non-nil block")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	info := newResourceInfo(tx.Name)

	h, err := doAcquire(ctx, info, &cfg, tx.Begin)
	if err != nil {
		return cfg.suppress(info, err)
	}

	blockErr, pv := guard(ctx, h, block)

	if pv == nil && blockErr == nil {
		if cerr := tx.Commit(ctx, h); cerr != nil {
			rerr := &ReleaseError{Resource: info, Err: cerr}
			cfg.logger.Error("commit failed",
				zap.String("resource", info.Name),
				zap.String("id", info.ID),
				zap.Error(cerr),
			)
			cfg.emit(Event{Kind: EventReleaseFailed, Resource: info, Err: rerr})
			return rerr
		}
		cfg.logger.Debug("committed",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
		)
		cfg.emit(Event{Kind: EventReleased, Resource: info})
		return nil
	}

	if pv != nil {
		cfg.emit(Event{Kind: EventPanicked, Resource: info, Err: pv})
	} else {
		cfg.emit(Event{Kind: EventBlockFailed, Resource: info, Err: blockErr})
	}

	var rbErr error
	if err := tx.Rollback(ctx, h); err != nil {
		rbErr = &ReleaseError{Resource: info, Err: err}
		cfg.logger.Error("rollback failed",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
			zap.Error(err),
		)
		cfg.emit(Event{Kind: EventReleaseFailed, Resource: info, Err: rbErr})
	} else {
		cfg.logger.Debug("rolled back",
			zap.String("resource", info.Name),
			zap.String("id", info.ID),
		)
		cfg.emit(Event{Kind: EventReleased, Resource: info})
	}

	if pv != nil {
		if !cfg.panicAsErr {
			// Rollback already ran; its failure was logged and emitted
			// above. The panic takes precedence.
			panic(pv)
		}
		blockErr = pv
	} else {
		blockErr = cfg.suppress(info, blockErr)
	}

	return multierr.Append(blockErr, rbErr)
}
