package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/baxromumarov/resguard"
)

// A small instrument-session walkthrough: a device connection scope
// containing a vacuum-mode scope containing a sample scope. The stack
// unwinds in reverse order no matter where the session fails.

type connection struct{ addr string }

func main() {
	ctx := context.Background()

	st := resguard.NewStack(resguard.WithOnEvent(func(e resguard.Event) {
		if e.Kind == resguard.EventReleased {
			fmt.Println("released:", e.Resource.Name)
		}
	}))

	conn, err := resguard.Enter(st, ctx, resguard.Resource[*connection]{
		Name: "connection",
		Acquire: func(ctx context.Context) (*connection, error) {
			fmt.Println("connecting")
			return &connection{addr: "tcp://microscope:4040"}, nil
		},
		Release: func(ctx context.Context, c *connection) error {
			fmt.Println("disconnecting", c.addr)
			return nil
		},
	})
	if err != nil {
		fmt.Println("session failed:", err)
		return
	}

	_, err = resguard.Enter(st, ctx, resguard.Resource[struct{}]{
		Name: "vacuum-mode",
		Acquire: func(ctx context.Context) (struct{}, error) {
			fmt.Println("entering vacuum mode")
			return struct{}{}, nil
		},
		Release: func(ctx context.Context, _ struct{}) error {
			fmt.Println("leaving vacuum mode")
			return nil
		},
	})
	if err != nil {
		fmt.Println("session failed:", err)
		_ = st.Close(ctx)
		return
	}

	scanErr := resguard.With(ctx, "sample",
		func(ctx context.Context) (string, error) {
			fmt.Println("loading sample")
			return "sample-7", nil
		},
		func(ctx context.Context, id string) error {
			fmt.Println("unloading", id)
			return nil
		},
		func(ctx context.Context, id string) error {
			fmt.Println("scanning", id, "via", conn.addr)
			return errors.New("beam unstable")
		},
	)

	if err := st.Close(ctx); err != nil {
		fmt.Println("teardown failed:", err)
	}

	if scanErr != nil {
		fmt.Println("scan failed:", scanErr)
	}
}
