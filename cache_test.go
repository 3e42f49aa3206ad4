package glaze

import (
	"context"
	"errors"
	"testing"
)

func countingCreate(n *int) func() (Resource, error) {
	return func() (Resource, error) {
		*n++
		return &fakeResource{alive: true}, nil
	}
}

func TestCacheReusesWithinContext(t *testing.T) {
	var c resourceCache
	comp := newFakeCompositor()
	creates := 0

	r1, err := c.getOrCreate(comp, countingCreate(&creates))
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	r2, err := c.getOrCreate(comp, countingCreate(&creates))
	if err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	if r1 != r2 {
		t.Error("same context received distinct resources")
	}
	if creates != 1 {
		t.Errorf("create called %d times, want 1", creates)
	}
}

func TestCacheIsolatesContexts(t *testing.T) {
	var c resourceCache
	creates := 0

	r1, _ := c.getOrCreate(newFakeCompositor(), countingCreate(&creates))
	r2, _ := c.getOrCreate(newFakeCompositor(), countingCreate(&creates))
	if r1 == r2 {
		t.Error("different contexts shared a resource")
	}
	if creates != 2 {
		t.Errorf("create called %d times, want 2", creates)
	}
}

func TestCacheRecreatesAfterDispose(t *testing.T) {
	var c resourceCache
	comp := newFakeCompositor()
	creates := 0

	r1, _ := c.getOrCreate(comp, countingCreate(&creates))
	r1.Dispose()

	r2, _ := c.getOrCreate(comp, countingCreate(&creates))
	if r2 == r1 {
		t.Error("dead resource was served from the cache")
	}
	if !r2.Alive() {
		t.Error("replacement resource is not alive")
	}
	if creates != 2 {
		t.Errorf("create called %d times, want 2", creates)
	}
}

func TestCacheCleanup(t *testing.T) {
	var c resourceCache
	live, _ := c.getOrCreate(newFakeCompositor(), countingCreate(new(int)))
	dead, _ := c.getOrCreate(newFakeCompositor(), countingCreate(new(int)))
	dead.Dispose()

	c.cleanup()
	if got := c.size(); got != 1 {
		t.Errorf("size after cleanup = %d, want 1", got)
	}
	if !live.Alive() {
		t.Error("cleanup disturbed a live resource")
	}
}

func TestCacheCleanupEmpty(t *testing.T) {
	var c resourceCache
	c.cleanup()
	if got := c.size(); got != 0 {
		t.Errorf("size = %d, want 0", got)
	}
}

func TestCacheCreateFailureNotCached(t *testing.T) {
	var c resourceCache
	comp := newFakeCompositor()
	boom := errors.New("boom")

	_, err := c.getOrCreate(comp, func() (Resource, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("getOrCreate error = %v, want boom", err)
	}
	if got := c.size(); got != 0 {
		t.Errorf("size after failed create = %d, want 0", got)
	}

	creates := 0
	if _, err := c.getOrCreate(comp, countingCreate(&creates)); err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	if creates != 1 {
		t.Errorf("create called %d times after earlier failure, want 1", creates)
	}
}

// dispatchingCompositor marshals resource creation through RunOnContext.
type dispatchingCompositor struct {
	*fakeCompositor
	dispatched int
}

func (c *dispatchingCompositor) RunOnContext(fn func() error) error {
	c.dispatched++
	return fn()
}

func TestCacheRoutesThroughDispatcher(t *testing.T) {
	var c resourceCache
	comp := &dispatchingCompositor{fakeCompositor: newFakeCompositor()}
	creates := 0

	if _, err := c.getOrCreate(comp, countingCreate(&creates)); err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	if comp.dispatched != 1 {
		t.Errorf("RunOnContext called %d times, want 1", comp.dispatched)
	}

	// Cache hits never dispatch.
	if _, err := c.getOrCreate(comp, countingCreate(&creates)); err != nil {
		t.Fatalf("getOrCreate failed: %v", err)
	}
	if comp.dispatched != 1 {
		t.Errorf("RunOnContext called %d times after hit, want 1", comp.dispatched)
	}
}

func TestBackdropSharingAcrossBuilds(t *testing.T) {
	comp := newFakeCompositor()
	ctx := context.Background()

	if _, err := FromBackdropBrush().Blur(4).BuildWith(ctx, comp); err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	if _, err := FromBackdropBrush().Saturation(0.5).BuildWith(ctx, comp); err != nil {
		t.Fatalf("second Build failed: %v", err)
	}
	if comp.backdropCreates != 1 {
		t.Errorf("backdrop created %d times for one context, want 1", comp.backdropCreates)
	}

	other := newFakeCompositor()
	if _, err := FromBackdropBrush().BuildWith(ctx, other); err != nil {
		t.Fatalf("third Build failed: %v", err)
	}
	if other.backdropCreates != 1 {
		t.Errorf("backdrop created %d times on a fresh context, want 1", other.backdropCreates)
	}
}

func TestAppBackdropSampleSharedWithBuild(t *testing.T) {
	comp := newFakeCompositor()
	if _, err := FromBackdropBrush().BuildWith(context.Background(), comp); err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if _, err := AppBackdropSample(comp); err != nil {
		t.Fatalf("AppBackdropSample failed: %v", err)
	}
	if comp.backdropCreates != 1 {
		t.Errorf("backdrop created %d times, want the build's instance reused", comp.backdropCreates)
	}
}

func TestBackdropKindsUseSeparateCaches(t *testing.T) {
	comp := newFakeCompositor()
	ctx := context.Background()

	if _, err := FromBackdropBrush().BuildWith(ctx, comp); err != nil {
		t.Fatalf("app-local Build failed: %v", err)
	}
	if _, err := FromHostBackdropBrush().BuildWith(ctx, comp); err != nil {
		t.Fatalf("host Build failed: %v", err)
	}
	if comp.backdropCreates != 2 {
		t.Errorf("backdrop created %d times across two kinds, want 2", comp.backdropCreates)
	}
}
