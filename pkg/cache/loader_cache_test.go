package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestLoaderCache_Get_miss_then_hit(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, err := c.Get(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d", loads.Load())
	}

	v, err = c.Get(ctx, "a", load)
	if err != nil {
		t.Fatal(err)
	}

	if v != "v-a" {
		t.Errorf("got %q", v)
	}

	if loads.Load() != 1 {
		t.Errorf("loads = %d after hit", loads.Load())
	}
}

func TestLoaderCache_Get_singleflight(t *testing.T) {
	loads := atomic.Int32{}
	release := make(chan struct{})

	c, err := NewLoaderCache[string, int](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)
		<-release

		return 7, nil
	}

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := c.Get(ctx, "k", load)
			if err != nil {
				t.Error(err)
			}

			if v != 7 {
				t.Errorf("got %d", v)
			}
		}()
	}

	close(release)
	wg.Wait()

	if loads.Load() != 1 {
		t.Errorf("loads = %d, want 1 (coalesced)", loads.Load())
	}
}

func TestLoaderCache_Get_error_not_cached(t *testing.T) {
	loads := atomic.Int32{}
	errBoom := errors.New("boom")

	c, err := NewLoaderCache[string, int](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	_, err = c.Get(ctx, "k", func(context.Context, string) (int, error) {
		loads.Add(1)

		return 0, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v, want boom", err)
	}

	v, err := c.Get(ctx, "k", func(context.Context, string) (int, error) {
		loads.Add(1)

		return 42, nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if v != 42 {
		t.Errorf("got %d", v)
	}

	if loads.Load() != 2 {
		t.Errorf("loads = %d, want 2 (error not cached)", loads.Load())
	}
}

func TestLoaderCache_Invalidate(t *testing.T) {
	loads := atomic.Int32{}

	c, err := NewLoaderCache[string, string](10, func(s string) string { return s })
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v", nil
	}

	if _, err := c.Get(ctx, "a", load); err != nil {
		t.Fatal(err)
	}

	c.Invalidate("a")

	if _, err := c.Get(ctx, "a", load); err != nil {
		t.Fatal(err)
	}

	if loads.Load() != 2 {
		t.Errorf("loads = %d, want 2 after invalidate", loads.Load())
	}
}
