package resguard_test

import (
	"context"
	"testing"

	"github.com/baxromumarov/resguard"
)

func BenchmarkWith(b *testing.B) {
	ctx := context.Background()
	acquire := func(ctx context.Context) (int, error) { return 1, nil }
	release := func(ctx context.Context, h int) error { return nil }
	block := func(ctx context.Context, h int) error { return nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = resguard.With(ctx, "bench", acquire, release, block)
	}
}

func BenchmarkStackClose(b *testing.B) {
	ctx := context.Background()
	release := func(ctx context.Context) error { return nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		st := resguard.NewStack()
		for j := 0; j < 4; j++ {
			st.Push("bench", release)
		}
		_ = st.Close(ctx)
	}
}

func BenchmarkPoolUse(b *testing.B) {
	ctx := context.Background()
	p := resguard.NewPool(4, func(ctx context.Context) (int, error) { return 1, nil })
	defer p.Close()

	block := func(ctx context.Context, h int) error { return nil }

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Use(ctx, block)
	}
}
