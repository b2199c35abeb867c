package resguard_test

import (
	"context"
	"errors"
	"testing"

	"github.com/baxromumarov/resguard"
)

type recordingCloser struct {
	closed int
	err    error
}

func (r *recordingCloser) Close() error {
	r.closed++
	return r.err
}

func TestClosing(t *testing.T) {
	rc := &recordingCloser{}

	res := resguard.Closing("log-file", func(ctx context.Context) (*recordingCloser, error) {
		return rc, nil
	})

	err := res.With(context.Background(), func(ctx context.Context, h *recordingCloser) error {
		if h != rc {
			t.Error("block received wrong handle")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if rc.closed != 1 {
		t.Fatalf("expected exactly one Close, got %d", rc.closed)
	}
}

func TestClosingSurfacesCloseError(t *testing.T) {
	errClose := errors.New("flush failed")
	rc := &recordingCloser{err: errClose}

	res := resguard.Closing("log-file", func(ctx context.Context) (*recordingCloser, error) {
		return rc, nil
	})

	err := res.With(context.Background(), func(ctx context.Context, h *recordingCloser) error {
		return nil
	})
	if !resguard.IsReleaseError(err) {
		t.Fatalf("expected ReleaseError, got %v", err)
	}
	if !errors.Is(err, errClose) {
		t.Fatalf("expected close error in chain, got %v", err)
	}
}

func TestNull(t *testing.T) {
	handle := &recordingCloser{}

	res := resguard.Null("borrowed", handle)

	err := res.With(context.Background(), func(ctx context.Context, h *recordingCloser) error {
		if h != handle {
			t.Error("block received wrong handle")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if handle.closed != 0 {
		t.Fatal("Null must not touch the handle on release")
	}
}

func TestWithSetup(t *testing.T) {
	var order []string

	core := resguard.Resource[string]{
		Name: "device",
		Acquire: func(ctx context.Context) (string, error) {
			order = append(order, "acquire")
			return "dev-1", nil
		},
		Release: func(ctx context.Context, h string) error {
			order = append(order, "release")
			return nil
		},
	}

	derived := core.WithSetup(
		func(ctx context.Context, h string) error {
			order = append(order, "setup")
			return nil
		},
		func(ctx context.Context, h string) error {
			order = append(order, "teardown")
			return nil
		},
	)

	err := derived.With(context.Background(), func(ctx context.Context, h string) error {
		order = append(order, "block")
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	want := []string{"acquire", "setup", "block", "teardown", "release"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
}

func TestWithSetupFailureReleasesCore(t *testing.T) {
	errMode := errors.New("mode unavailable")
	released := 0

	core := resguard.Resource[string]{
		Name: "device",
		Acquire: func(ctx context.Context) (string, error) {
			return "dev-1", nil
		},
		Release: func(ctx context.Context, h string) error {
			released++
			return nil
		},
	}

	derived := core.WithSetup(
		func(ctx context.Context, h string) error { return errMode },
		func(ctx context.Context, h string) error {
			t.Fatal("teardown must not run when setup failed")
			return nil
		},
	)

	err := derived.With(context.Background(), func(ctx context.Context, h string) error {
		t.Fatal("block must not run when setup failed")
		return nil
	})

	if !errors.Is(err, errMode) {
		t.Fatalf("expected setup failure to surface, got %v", err)
	}
	if !resguard.IsAcquireError(err) {
		t.Fatalf("setup failure belongs to the acquire phase, got %v", err)
	}
	if released != 1 {
		t.Fatalf("expected core release to run once, got %d", released)
	}
}

func TestWithSetupTeardownFailureStillReleases(t *testing.T) {
	errTeardown := errors.New("mode stuck")
	released := 0

	core := resguard.Resource[string]{
		Name: "device",
		Acquire: func(ctx context.Context) (string, error) {
			return "dev-1", nil
		},
		Release: func(ctx context.Context, h string) error {
			released++
			return nil
		},
	}

	derived := core.WithSetup(
		func(ctx context.Context, h string) error { return nil },
		func(ctx context.Context, h string) error { return errTeardown },
	)

	err := derived.With(context.Background(), func(ctx context.Context, h string) error {
		return nil
	})

	if !errors.Is(err, errTeardown) {
		t.Fatalf("expected teardown failure to surface, got %v", err)
	}
	if released != 1 {
		t.Fatalf("expected core release despite teardown failure, got %d", released)
	}
}

type txRecorder struct {
	begun, committed, rolledBack int
	beginErr, commitErr, rbErr   error
}

func (r *txRecorder) tx() resguard.Tx[*txRecorder] {
	return resguard.Tx[*txRecorder]{
		Name: "test-tx",
		Begin: func(ctx context.Context) (*txRecorder, error) {
			if r.beginErr != nil {
				return nil, r.beginErr
			}
			r.begun++
			return r, nil
		},
		Commit: func(ctx context.Context, h *txRecorder) error {
			r.committed++
			return r.commitErr
		},
		Rollback: func(ctx context.Context, h *txRecorder) error {
			r.rolledBack++
			return r.rbErr
		},
	}
}

func TestTransactCommit(t *testing.T) {
	r := &txRecorder{}

	err := resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if r.begun != 1 || r.committed != 1 || r.rolledBack != 0 {
		t.Fatalf("expected begin/commit/no-rollback, got %d/%d/%d", r.begun, r.committed, r.rolledBack)
	}
}

func TestTransactRollbackOnBlockError(t *testing.T) {
	errQuota := errors.New("quota exceeded")
	r := &txRecorder{}

	err := resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
		return errQuota
	})
	if !errors.Is(err, errQuota) {
		t.Fatalf("expected block error to surface, got %v", err)
	}
	if r.committed != 0 || r.rolledBack != 1 {
		t.Fatalf("expected rollback without commit, got commit=%d rollback=%d", r.committed, r.rolledBack)
	}
}

func TestTransactBeginFailure(t *testing.T) {
	errDown := errors.New("db down")
	r := &txRecorder{beginErr: errDown}

	err := resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
		t.Fatal("block must not run when begin fails")
		return nil
	})
	if !resguard.IsAcquireError(err) || !errors.Is(err, errDown) {
		t.Fatalf("expected wrapped begin failure, got %v", err)
	}
	if r.committed != 0 || r.rolledBack != 0 {
		t.Fatal("neither commit nor rollback may run after a failed begin")
	}
}

func TestTransactCommitFailure(t *testing.T) {
	errCommit := errors.New("commit conflict")
	r := &txRecorder{commitErr: errCommit}

	err := resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
		return nil
	})
	if !resguard.IsReleaseError(err) || !errors.Is(err, errCommit) {
		t.Fatalf("expected wrapped commit failure, got %v", err)
	}
	if r.rolledBack != 0 {
		t.Fatal("rollback must not run after commit was attempted")
	}
}

func TestTransactRollbackFailureCombined(t *testing.T) {
	errQuota := errors.New("quota exceeded")
	errRb := errors.New("rollback failed")
	r := &txRecorder{rbErr: errRb}

	err := resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
		return errQuota
	})
	if !errors.Is(err, errQuota) {
		t.Fatalf("block failure dropped, got %v", err)
	}
	if !errors.Is(err, errRb) {
		t.Fatalf("rollback failure dropped, got %v", err)
	}
}

func TestTransactPanicRollsBack(t *testing.T) {
	r := &txRecorder{}

	p := capturePanic(func() {
		_ = resguard.Transact(context.Background(), r.tx(), func(ctx context.Context, h *txRecorder) error {
			panic("mid-transaction crash")
		})
	})

	if _, ok := p.(*resguard.PanicError); !ok {
		t.Fatalf("expected *PanicError, got %T: %v", p, p)
	}
	if r.committed != 0 || r.rolledBack != 1 {
		t.Fatalf("expected rollback without commit, got commit=%d rollback=%d", r.committed, r.rolledBack)
	}
}

func TestTransactPanicAsError(t *testing.T) {
	r := &txRecorder{}

	err := resguard.Transact(context.Background(), r.tx(),
		func(ctx context.Context, h *txRecorder) error {
			panic("mid-transaction crash")
		},
		resguard.WithPanicAsError(),
	)

	var pe *resguard.PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PanicError in chain, got %v", err)
	}
	if r.rolledBack != 1 {
		t.Fatal("expected rollback to run")
	}
}
