// Package resguard provides scoped resource management for Go.
//
// A scope brackets a block of work between an acquire and a release:
// the release runs exactly once on every exit path, whether the block
// returned normally, returned an error, or panicked. This replaces
// hand-written defer/cleanup logic at every call site with a single
// audited pattern.
//
// # Running a Block Within a Scope
//
// The primary entry point is [With], which acquires a handle, runs a
// block with it, and releases the handle before any failure surfaces:
//
//	err := resguard.With(ctx, "session",
//	    func(ctx context.Context) (*Session, error) { return dial(ctx) },
//	    func(ctx context.Context, s *Session) error { return s.Close() },
//	    func(ctx context.Context, s *Session) error {
//	        return s.Scan(ctx)
//	    })
//
// Declare an acquire/release pair once with [Resource] and enter it
// many times via [Resource.With].
//
// If acquire fails, the release is never called: there is nothing to
// release. The acquire failure surfaces wrapped in [*AcquireError].
//
// # Failure Combination
//
// A block failure surfaces to the caller unwrapped, after release has
// completed, so errors.Is matches the caller's own sentinel values.
// A release failure surfaces wrapped in [*ReleaseError]. When both are
// pending they are combined via multierr with the block failure first;
// neither is ever dropped. A block panic is re-raised after release
// runs (a release failure in that case is logged and emitted as an
// event before the panic resumes); use [WithPanicAsError] to convert
// the panic to a [*PanicError] returned as a regular error instead.
//
// # Manual Lifecycle
//
// [Open] returns a [Scope] for manual control. A Scope moves through
// three states: [StateUnacquired] → [StateAcquired] → [StateReleased],
// and StateReleased is terminal. [Scope.Enter] acquires, [Scope.Release]
// releases. Release is idempotent: repeat calls return the first call's
// result without re-running the underlying release. Releasing a scope
// that never acquired returns [ErrNotAcquired].
//
// # Nested Scopes
//
// [Stack] composes scopes that must unwind in reverse order of entry,
// such as a device connection containing a mode switch containing a
// loaded sample. [Enter] acquires a resource and registers its release;
// [Stack.Close] runs all registered releases back-to-front, each exactly
// once, even when some of them fail or panic.
//
// # Suppression
//
// [WithSuppress] discards acquire or block failures matching a given
// set of error kinds, for delete-if-exists style operations:
//
//	err := res.With(ctx, remove, resguard.WithSuppress(fs.ErrNotExist))
//
// Release still runs before suppression applies, release failures are
// never suppressed, and suppressed failures are still visible to event
// hooks as [EventSuppressed].
//
// # Helpers
//
//   - [Closing]: adapt anything with a Close method into a [Resource].
//   - [Null]: wrap an already-held handle in a no-op scope.
//   - [Resource.WithSetup]: run an initialize/cleanup pair around a
//     resource's own acquire/release.
//   - [Transact]: a transactional block that commits on success and
//     rolls back on failure or panic.
//
// # Pooling and Capacity
//
// [Pool] keeps a bounded set of reusable handles: acquire borrows one
// (creating up to the capacity on demand), release returns it, and
// [Pool.Use] runs a block through the scoped pattern with a pooled
// handle. [Pool.Close] destroys idle handles and reports their combined
// destroy errors. [WithPoolMetrics] emits periodic [PoolStats] snapshots.
//
// [Semaphore] treats capacity slots themselves as an acquirable
// resource: [Semaphore.Enter] returns a release function for one slot,
// and [Semaphore.Resource] adapts a slot for use with [With] or [Stack].
//
// # Observability
//
// Register hooks for scope lifecycle events:
//
//   - [WithOnAcquire]: called after each successful acquire.
//   - [WithOnRelease]: called after each release attempt, with its
//     error and the duration the handle was held.
//   - [WithOnEvent]: unified hook receiving an [Event] for every state
//     change (acquired, released, failures, suppression, panic).
//   - [WithLogger]: structured logging of the same transitions via zap.
//
// # Concurrency
//
// [With], [Scope], and [Stack] are synchronous and single-owner: the
// enclosing scope holds the handle, and nested scopes are strictly
// ordered. They are not safe for concurrent use. [Pool] and [Semaphore]
// are safe for concurrent use.
package resguard
