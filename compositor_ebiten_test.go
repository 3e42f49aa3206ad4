package glaze

import (
	"errors"
	"testing"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Surface pool ---

func TestSurfacePoolAcquireReturnsPow2(t *testing.T) {
	var pool surfacePool
	img := pool.acquire(100, 50)
	defer pool.release(img)

	b := img.Bounds()
	if b.Dx() != 128 {
		t.Errorf("width = %d, want 128 (next pow2 of 100)", b.Dx())
	}
	if b.Dy() != 64 {
		t.Errorf("height = %d, want 64 (next pow2 of 50)", b.Dy())
	}
}

func TestSurfacePoolReleaseAndReacquire(t *testing.T) {
	var pool surfacePool
	img1 := pool.acquire(64, 64)
	pool.release(img1)

	img2 := pool.acquire(64, 64)
	if img1 != img2 {
		t.Error("expected pool to return the same image after release")
	}
	pool.release(img2)
}

func TestSurfacePoolDifferentSizes(t *testing.T) {
	var pool surfacePool
	a := pool.acquire(32, 32)
	b := pool.acquire(64, 64)
	if a == b {
		t.Error("different sizes should return different images")
	}
	pool.release(a)
	pool.release(b)
}

func TestSurfacePoolSharesBucketAcrossLogicalSizes(t *testing.T) {
	var pool surfacePool
	a := pool.acquire(100, 50)
	pool.release(a)

	// 65x33 rounds up to the same 128x64 bucket.
	b := pool.acquire(65, 33)
	if a != b {
		t.Error("sizes in the same pow2 bucket should reuse the pooled image")
	}
	pool.release(b)
}

func TestSurfacePoolReleaseNilNoPanic(t *testing.T) {
	var pool surfacePool
	pool.release(nil) // should not panic
}

// --- Backdrop sample ---

func TestBackdropSampleLifecycle(t *testing.T) {
	c := NewEbitenCompositor()
	res, err := c.CreateBackdropSample(BackdropAppLocal)
	if err != nil {
		t.Fatalf("CreateBackdropSample failed: %v", err)
	}
	s := res.(*BackdropSample)
	if s.Kind() != BackdropAppLocal {
		t.Errorf("Kind = %v, want BackdropAppLocal", s.Kind())
	}
	if !s.Alive() {
		t.Error("fresh sample should be alive")
	}
	if s.Image() == nil {
		t.Error("fresh sample should expose a surface")
	}

	s.Dispose()
	if s.Alive() {
		t.Error("disposed sample should not be alive")
	}
	if s.Image() != nil {
		t.Error("disposed sample should drop its surface")
	}
	s.Dispose() // second dispose is a no-op
}

func TestCreateBackdropSampleUsesConfiguredSize(t *testing.T) {
	c := NewEbitenCompositor()

	res, err := c.CreateBackdropSample(BackdropHostScreen)
	if err != nil {
		t.Fatalf("CreateBackdropSample failed: %v", err)
	}
	s := res.(*BackdropSample)
	defer s.Dispose()
	if b := s.Image().Bounds(); b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("default sample = %dx%d, want 256x256", b.Dx(), b.Dy())
	}

	c.SetBackdropSize(40, 30)
	res, err = c.CreateBackdropSample(BackdropHostScreen)
	if err != nil {
		t.Fatalf("CreateBackdropSample failed: %v", err)
	}
	s2 := res.(*BackdropSample)
	defer s2.Dispose()
	if b := s2.Image().Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Errorf("sized sample = %dx%d, want 40x30", b.Dx(), b.Dy())
	}
}

func TestSetBackdropSizeClampsToOne(t *testing.T) {
	c := NewEbitenCompositor()
	c.SetBackdropSize(0, -5)

	res, err := c.CreateBackdropSample(BackdropAppLocal)
	if err != nil {
		t.Fatalf("CreateBackdropSample failed: %v", err)
	}
	s := res.(*BackdropSample)
	defer s.Dispose()
	if b := s.Image().Bounds(); b.Dx() != 1 || b.Dy() != 1 {
		t.Errorf("clamped sample = %dx%d, want 1x1", b.Dx(), b.Dy())
	}
}

func TestCreateBackdropSampleRejectsInvalidKind(t *testing.T) {
	c := NewEbitenCompositor()
	if _, err := c.CreateBackdropSample(BackdropNone); err == nil {
		t.Error("BackdropNone should be rejected")
	}
	if _, err := c.CreateBackdropSample(BackdropKind(99)); err == nil {
		t.Error("unknown backdrop kind should be rejected")
	}
}

// --- Compositor and factory ---

func TestCompositorContextIDsUnique(t *testing.T) {
	a := NewEbitenCompositor()
	b := NewEbitenCompositor()
	if a.ContextID() == b.ContextID() {
		t.Error("compositors should mint distinct context identities")
	}
}

func TestCreateEffectFactoryRejectsInvalidTrees(t *testing.T) {
	c := NewEbitenCompositor()
	tests := []struct {
		name string
		desc *Description
	}{
		{"nil", nil},
		{"custom node", &Description{Kind: OpCustom}},
		{"missing input", &Description{Kind: OpBlur}},
		{"extra input", &Description{Kind: OpColor, Inputs: []*Description{{Kind: OpColor}}}},
		{"unknown kind", &Description{Kind: OpKind(99)}},
		{"invalid nested", &Description{
			Kind:   OpOpacity,
			Inputs: []*Description{{Kind: OpCustom}},
		}},
	}
	for _, tt := range tests {
		if _, err := c.CreateEffectFactory(tt.desc, nil); !errors.Is(err, ErrInvalidDescription) {
			t.Errorf("%s: err = %v, want ErrInvalidDescription", tt.name, err)
		}
	}
}

func TestCreateEffectFactoryClonesDescription(t *testing.T) {
	c := NewEbitenCompositor()
	desc := &Description{Kind: OpColor, Color: ColorWhite}
	f, err := c.CreateEffectFactory(desc, nil)
	if err != nil {
		t.Fatalf("CreateEffectFactory failed: %v", err)
	}
	desc.Color = ColorTransparent

	handle, err := f.CreateBrush()
	if err != nil {
		t.Fatalf("CreateBrush failed: %v", err)
	}
	if br := handle.(*ebitenBrush); br.desc.Color != ColorWhite {
		t.Error("factory should hold its own copy of the description")
	}
}

func TestCreateBrushSeedsAnimatableParameters(t *testing.T) {
	c := NewEbitenCompositor()
	desc := &Description{
		Kind:     OpBlur,
		Amount:   8,
		AnimPath: "blur1.Amount",
		Inputs:   []*Description{{Kind: OpColor, Color: ColorWhite}},
	}
	f, err := c.CreateEffectFactory(desc, []string{"blur1.Amount"})
	if err != nil {
		t.Fatalf("CreateEffectFactory failed: %v", err)
	}
	handle, err := f.CreateBrush()
	if err != nil {
		t.Fatalf("CreateBrush failed: %v", err)
	}

	if err := handle.SetParameter("blur1.Amount", 2); err != nil {
		t.Errorf("SetParameter on a seeded path failed: %v", err)
	}
	if err := handle.SetParameter("nope", 1); !errors.Is(err, ErrUnknownParameter) {
		t.Errorf("unknown path err = %v, want ErrUnknownParameter", err)
	}
}

func TestBrushesFromOneFactoryAreIndependent(t *testing.T) {
	c := NewEbitenCompositor()
	desc := &Description{
		Kind:     OpOpacity,
		Amount:   1,
		AnimPath: "opacity1.Amount",
		Inputs:   []*Description{{Kind: OpColor, Color: ColorWhite}},
	}
	f, err := c.CreateEffectFactory(desc, []string{"opacity1.Amount"})
	if err != nil {
		t.Fatalf("CreateEffectFactory failed: %v", err)
	}
	h1, err := f.CreateBrush()
	if err != nil {
		t.Fatalf("CreateBrush failed: %v", err)
	}
	h2, err := f.CreateBrush()
	if err != nil {
		t.Fatalf("CreateBrush failed: %v", err)
	}

	if err := h1.SetParameter("opacity1.Amount", 0.25); err != nil {
		t.Fatalf("SetParameter failed: %v", err)
	}
	b2 := h2.(*ebitenBrush)
	if v := b2.value(b2.desc, b2.desc.Amount); v != 1 {
		t.Errorf("sibling brush value = %v, want 1 untouched by the other brush", v)
	}
}

func TestBindNamedResourceRequiresSurface(t *testing.T) {
	c := NewEbitenCompositor()
	f, err := c.CreateEffectFactory(&Description{Kind: OpSource, Param: "image1"}, nil)
	if err != nil {
		t.Fatalf("CreateEffectFactory failed: %v", err)
	}
	handle, err := f.CreateBrush()
	if err != nil {
		t.Fatalf("CreateBrush failed: %v", err)
	}

	if err := handle.BindNamedResource("image1", nil); err == nil {
		t.Error("nil resource should be rejected")
	}
	if err := handle.BindNamedResource("image1", &fakeResource{alive: true}); err == nil {
		t.Error("resource without a surface should be rejected")
	}

	sample := &BackdropSample{kind: BackdropAppLocal, img: ebiten.NewImage(4, 4)}
	defer sample.Dispose()
	if err := handle.BindNamedResource("image1", sample); err != nil {
		t.Errorf("binding a surface resource failed: %v", err)
	}
}
