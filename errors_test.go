package resguard

import (
	"errors"
	"fmt"
	"testing"

	"go.uber.org/multierr"
)

func TestAcquireErrorWrapping(t *testing.T) {
	cause := errors.New("device offline")
	ae := &AcquireError{
		Resource: ResourceInfo{Name: "device", ID: "abc123"},
		Err:      cause,
	}

	if !errors.Is(ae, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
	if got := ae.Error(); got != `acquire "device" failed: device offline` {
		t.Fatalf("unexpected message: %q", got)
	}

	wrapped := fmt.Errorf("session: %w", ae)
	if !IsAcquireError(wrapped) {
		t.Fatal("expected IsAcquireError through a wrapping layer")
	}
	if IsReleaseError(wrapped) {
		t.Fatal("AcquireError must not register as ReleaseError")
	}
}

func TestReleaseErrorWrapping(t *testing.T) {
	cause := errors.New("shutter stuck")
	re := &ReleaseError{
		Resource: ResourceInfo{Name: "device", ID: "abc123"},
		Err:      cause,
	}

	if !errors.Is(re, cause) {
		t.Fatal("expected errors.Is to reach the cause")
	}
	if got := re.Error(); got != `release "device" failed: shutter stuck` {
		t.Fatalf("unexpected message: %q", got)
	}
	if !IsReleaseError(re) {
		t.Fatal("expected IsReleaseError")
	}
}

func TestHelpersOnNil(t *testing.T) {
	if IsAcquireError(nil) || IsReleaseError(nil) {
		t.Fatal("nil error must not match")
	}
	if _, ok := ResourceOf(nil); ok {
		t.Fatal("ResourceOf(nil) must report false")
	}
	if CauseOf(nil) != nil {
		t.Fatal("CauseOf(nil) must be nil")
	}
	if AllReleaseErrors(nil) != nil {
		t.Fatal("AllReleaseErrors(nil) must be nil")
	}
}

func TestResourceOf(t *testing.T) {
	info := ResourceInfo{Name: "device", ID: "abc123"}

	got, ok := ResourceOf(&AcquireError{Resource: info, Err: errors.New("x")})
	if !ok || got != info {
		t.Fatalf("expected %+v, got %+v ok=%v", info, got, ok)
	}

	got, ok = ResourceOf(fmt.Errorf("outer: %w", &ReleaseError{Resource: info, Err: errors.New("x")}))
	if !ok || got != info {
		t.Fatalf("expected %+v through wrapping, got %+v ok=%v", info, got, ok)
	}

	if _, ok := ResourceOf(errors.New("plain")); ok {
		t.Fatal("plain error must not carry a ResourceInfo")
	}
}

func TestCauseOf(t *testing.T) {
	cause := errors.New("device offline")

	if got := CauseOf(&AcquireError{Err: cause}); got != cause {
		t.Fatalf("expected cause, got %v", got)
	}
	if got := CauseOf(&ReleaseError{Err: cause}); got != cause {
		t.Fatalf("expected cause, got %v", got)
	}

	plain := errors.New("plain")
	if got := CauseOf(plain); got != plain {
		t.Fatalf("expected plain error back, got %v", got)
	}
}

func TestAllReleaseErrors(t *testing.T) {
	reA := &ReleaseError{Resource: ResourceInfo{Name: "a"}, Err: errors.New("a failed")}
	reB := &ReleaseError{Resource: ResourceInfo{Name: "b"}, Err: errors.New("b failed")}

	combined := multierr.Combine(
		errors.New("block failure"),
		reA,
		fmt.Errorf("outer: %w", reB),
	)

	got := AllReleaseErrors(combined)
	if len(got) != 2 {
		t.Fatalf("expected 2 release errors, got %d", len(got))
	}
	if got[0] != reA || got[1] != reB {
		t.Fatalf("expected [a b] in order, got [%s %s]", got[0].Resource.Name, got[1].Resource.Name)
	}

	// errors.Join nesting is traversed too.
	joined := errors.Join(errors.Join(reA), reB)
	if len(AllReleaseErrors(joined)) != 2 {
		t.Fatal("expected traversal through nested joins")
	}
}
