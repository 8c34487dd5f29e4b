package hostbuf

import "testing"

func TestGuard_ReleasesExactlyOnce(t *testing.T) {
	releases := 0
	g := New("sig", func() { releases++ })

	if !g.Valid() {
		t.Fatal("fresh guard should be valid")
	}
	if g.Get() != "sig" {
		t.Errorf("Get() = %q, want sig", g.Get())
	}

	g.Release()
	g.Release()

	if releases != 1 {
		t.Errorf("release calls = %d, want 1", releases)
	}
	if g.Valid() {
		t.Error("released guard should be invalid")
	}
}

func TestGuard_EmptyReleaseIsNoop(t *testing.T) {
	g := Empty[string]()

	if g.Valid() {
		t.Error("empty guard should be invalid")
	}
	if g.Get() != "" {
		t.Errorf("Get() on empty guard = %q, want zero value", g.Get())
	}

	// Must not panic or call anything.
	g.Release()
}

func TestGuard_MoveTransfersOwnership(t *testing.T) {
	releases := 0
	src := New(42, func() { releases++ })

	dst := src.Move()

	if src.Valid() {
		t.Error("moved-from guard should be invalid")
	}
	if !dst.Valid() {
		t.Fatal("moved-to guard should be valid")
	}
	if dst.Get() != 42 {
		t.Errorf("dst.Get() = %d, want 42", dst.Get())
	}

	// Releasing the source after a move must not touch the host.
	src.Release()
	if releases != 0 {
		t.Errorf("release calls after moved-from release = %d, want 0", releases)
	}

	dst.Release()
	if releases != 1 {
		t.Errorf("release calls = %d, want 1", releases)
	}
}

func TestGuard_MoveFromEmpty(t *testing.T) {
	g := Empty[int]()
	moved := g.Move()

	if moved.Valid() {
		t.Error("move of an empty guard should produce an empty guard")
	}
}

func TestGuard_NilReleaseStillTracksValidity(t *testing.T) {
	g := New("wire-copied string", nil)

	if !g.Valid() {
		t.Fatal("guard with nil release should still be valid")
	}
	g.Release()
	if g.Valid() {
		t.Error("guard should be invalid after release")
	}
}

func TestGuard_AllocatorPairing(t *testing.T) {
	// Instrumented fake allocator: every allocation must see exactly one
	// matching release over arbitrary construct/move/release sequences.
	allocated, released := 0, 0
	alloc := func(v string) *Guard[string] {
		allocated++
		return New(v, func() { released++ })
	}

	a := alloc("one")
	b := alloc("two")
	c := b.Move()
	d := c.Move()

	a.Release()
	b.Release() // moved-from, no-op
	c.Release() // moved-from, no-op
	d.Release()
	d.Release() // double release, no-op

	if released != allocated {
		t.Errorf("released = %d, allocated = %d, want 1:1", released, allocated)
	}
}
