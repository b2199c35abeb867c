package resguard

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResourceInfo identifies a resource instance within a scope.
// It is carried in [Event] values and passed to observability hooks
// registered via [WithOnAcquire] and [WithOnRelease].
type ResourceInfo struct {
	// Name is the caller-supplied resource name.
	Name string

	// ID is a short unique identifier assigned when the scope is
	// created, distinguishing repeated entries of the same Resource.
	ID string
}

func newResourceInfo(name string) ResourceInfo {
	return ResourceInfo{
		Name: name,
		ID:   uuid.New().String()[:8],
	}
}

// EventKind classifies a scope lifecycle transition.
type EventKind int

const (
	// EventAcquired fires after acquire succeeds.
	EventAcquired EventKind = iota

	// EventAcquireFailed fires when acquire returns an error.
	// No release will run for this scope.
	EventAcquireFailed

	// EventBlockFailed fires when the block returns an error,
	// before release runs.
	EventBlockFailed

	// EventPanicked fires when the block panics, before release runs.
	EventPanicked

	// EventReleased fires after release succeeds.
	EventReleased

	// EventReleaseFailed fires when release returns an error.
	EventReleaseFailed

	// EventSuppressed fires when a failure matched a [WithSuppress]
	// kind and was discarded instead of surfacing to the caller.
	EventSuppressed
)

// Event describes a single scope lifecycle transition.
type Event struct {
	Kind     EventKind
	Resource ResourceInfo
	Err      error
	Duration time.Duration // how long the handle was held; zero before release
}

type config struct {
	logger     *zap.Logger
	panicAsErr bool
	suppressed []error
	onEvent    func(Event)
	onAcquire  func(ResourceInfo)
	onRelease  func(ResourceInfo, error, time.Duration)
}

// Option configures a scope entered via [With], [Resource.With],
// [Open], [NewStack], or [Transact].
type Option func(*config)

func defaultConfig() config {
	return config{
		logger: zap.NewNop(),
	}
}

// emit calls the onEvent hook if registered.
func (c *config) emit(e Event) {
	if c.onEvent != nil {
		c.onEvent(e)
	}
}

// WithLogger sets a zap logger for scope lifecycle transitions.
// Acquire/release are logged at Debug, failures at Warn or Error.
// The default is a no-op logger. Panics if l is nil.
func WithLogger(l *zap.Logger) Option {
	if l == nil {
		panic("resguard: WithLogger requires a non-nil logger")
	}
	return func(c *config) {
		c.logger = l
	}
}

// WithPanicAsError converts a block panic to a [*PanicError] returned
// as a regular error, instead of re-raising it after release runs.
func WithPanicAsError() Option {
	return func(c *config) {
		c.panicAsErr = true
	}
}

// WithSuppress discards acquire and block failures matching any of the
// given kinds via errors.Is. It applies to [With], [Resource.With], and
// [Transact]. Release still runs before suppression applies, and
// release failures are never suppressed.
//
// Panics if kinds is empty or contains nil.
func WithSuppress(kinds ...error) Option {
	if len(kinds) == 0 {
		panic("resguard: WithSuppress requires at least one error kind")
	}
	for _, k := range kinds {
		if k == nil {
			panic("resguard: WithSuppress kinds must be non-nil")
		}
	}
	return func(c *config) {
		c.suppressed = append(c.suppressed, kinds...)
	}
}

// WithOnEvent registers a unified hook invoked for every scope
// lifecycle transition. The hook runs inline on the calling goroutine
// and must not panic.
func WithOnEvent(fn func(Event)) Option {
	return func(c *config) {
		c.onEvent = fn
	}
}

// WithOnAcquire registers a hook invoked after each successful acquire.
func WithOnAcquire(fn func(ResourceInfo)) Option {
	return func(c *config) {
		c.onAcquire = fn
	}
}

// WithOnRelease registers a hook invoked after each release attempt.
// The hook receives the release error (nil on success) and the
// wall-clock duration the handle was held.
func WithOnRelease(fn func(ResourceInfo, error, time.Duration)) Option {
	return func(c *config) {
		c.onRelease = fn
	}
}
