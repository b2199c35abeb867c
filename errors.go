package resguard

import (
	"errors"
	"fmt"
)

// ErrNotAcquired is returned by [Scope.Release] when the scope never
// successfully acquired: there is nothing to release.
var ErrNotAcquired = errors.New("resguard: scope was not acquired")

// AcquireError wraps a failure from an acquire function together with
// the [ResourceInfo] of the scope that attempted it. When acquire
// fails, no handle exists and the release function is never called.
type AcquireError struct {
	Resource ResourceInfo
	Err      error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("acquire %q failed: %v", e.Resource.Name, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// ReleaseError wraps a failure from a release function together with
// the [ResourceInfo] of the scope that owned the handle. Release
// failures surface to the caller; when a block failure is also pending
// the two are combined via multierr, block failure first.
type ReleaseError struct {
	Resource ResourceInfo
	Err      error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %q failed: %v", e.Resource.Name, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

// IsAcquireError reports whether err (or any error in its chain) is an
// [*AcquireError].
func IsAcquireError(err error) bool {
	if err == nil {
		return false
	}
	var ae *AcquireError
	return errors.As(err, &ae)
}

// IsReleaseError reports whether err (or any error in its chain) is a
// [*ReleaseError].
func IsReleaseError(err error) bool {
	if err == nil {
		return false
	}
	var re *ReleaseError
	return errors.As(err, &re)
}

// ResourceOf extracts the [ResourceInfo] from the first [*AcquireError]
// or [*ReleaseError] in err's chain. Returns false if neither is found.
func ResourceOf(err error) (ResourceInfo, bool) {
	if err == nil {
		return ResourceInfo{}, false
	}

	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae.Resource, true
	}

	var re *ReleaseError
	if errors.As(err, &re) {
		return re.Resource, true
	}
	return ResourceInfo{}, false
}

// CauseOf unwraps the first [*AcquireError] or [*ReleaseError] in err's
// chain and returns its underlying cause. If err is neither, it is
// returned as-is. Returns nil if err is nil.
func CauseOf(err error) error {
	if err == nil {
		return nil
	}

	var ae *AcquireError
	if errors.As(err, &ae) {
		return ae.Err
	}

	var re *ReleaseError
	if errors.As(err, &re) {
		return re.Err
	}

	return err
}

// AllReleaseErrors recursively collects every [*ReleaseError] from
// err's chain, including errors combined via multierr or errors.Join.
// Returns nil if none are found. Useful after [Stack.Close], which can
// surface several release failures at once.
func AllReleaseErrors(err error) []*ReleaseError {
	if err == nil {
		return nil
	}

	var out []*ReleaseError
	collectReleaseErrors(err, &out)
	return out
}

func collectReleaseErrors(err error, out *[]*ReleaseError) {
	switch e := err.(type) {
	case *ReleaseError:
		*out = append(*out, e)

	case interface{ Unwrap() []error }:
		for _, sub := range e.Unwrap() {
			collectReleaseErrors(sub, out)
		}

	case interface{ Unwrap() error }:
		collectReleaseErrors(e.Unwrap(), out)
	}
}
