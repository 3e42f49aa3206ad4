package glaze

import "sync"

// resourceCache deduplicates creation of an expensive shared platform
// resource across pipelines while respecting display-context affinity. A
// resource created under one context ID is never handed to a caller building
// under another; cross-context sharing crashes the underlying platform, so
// this is a correctness invariant, not an optimization.
//
// One mutex guards both the scan-and-return and the create-and-insert paths
// as a single atomic region, preventing duplicate creation races
// structurally.
type resourceCache struct {
	mu      sync.Mutex
	entries []cacheEntry
}

type cacheEntry struct {
	ctx uint64
	res Resource
}

// Two independent caches for the two shared resource kinds. They are never
// unified into one cache keyed by kind: the kinds have different creation
// calls and different validity semantics.
var (
	backdropCache     resourceCache
	hostBackdropCache resourceCache
)

// AppBackdropSample returns the shared app-local backdrop sample for the
// compositor's context, creating it if needed. This is the same resource
// pipelines started with FromBackdropBrush bind, so the application can
// refresh its contents each frame.
func AppBackdropSample(comp Compositor) (Resource, error) {
	return backdropCache.getOrCreate(comp, func() (Resource, error) {
		return comp.CreateBackdropSample(BackdropAppLocal)
	})
}

// HostBackdropSample is AppBackdropSample for the host/screen backdrop.
func HostBackdropSample(comp Compositor) (Resource, error) {
	return hostBackdropCache.getOrCreate(comp, func() (Resource, error) {
		return comp.CreateBackdropSample(BackdropHostScreen)
	})
}

// getOrCreate returns a live cached resource created under the caller's
// context, or invokes create to make and register a new one. When the
// compositor implements Dispatcher, creation is marshalled onto the owning
// context.
func (c *resourceCache) getOrCreate(comp Compositor, create func() (Resource, error)) (Resource, error) {
	id := comp.ContextID()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entries {
		if e.ctx == id && e.res.Alive() {
			debugf("backdrop cache hit (context %d)", id)
			return e.res, nil
		}
	}

	var res Resource
	var err error
	if disp, ok := comp.(Dispatcher); ok {
		derr := disp.RunOnContext(func() error {
			res, err = create()
			return err
		})
		if err == nil {
			err = derr
		}
	} else {
		res, err = create()
	}
	if err != nil {
		return nil, err
	}

	c.entries = append(c.entries, cacheEntry{ctx: id, res: res})
	debugf("backdrop cache miss, created resource (context %d, %d cached)", id, len(c.entries))
	return res, nil
}

// cleanup removes entries whose resource is no longer alive. Live entries
// are kept; an empty cache is a no-op. Invoked after every brush
// materialization to bound growth.
func (c *resourceCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.entries[:0]
	for _, e := range c.entries {
		if e.res.Alive() {
			kept = append(kept, e)
		}
	}
	if n := len(c.entries) - len(kept); n > 0 {
		debugf("backdrop cache pruned %d dead entries", n)
	}
	// Zero the tail so pruned resources are not pinned by the backing array.
	for i := len(kept); i < len(c.entries); i++ {
		c.entries[i] = cacheEntry{}
	}
	c.entries = kept
}

// size reports the number of entries currently cached. Diagnostic only.
func (c *resourceCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
