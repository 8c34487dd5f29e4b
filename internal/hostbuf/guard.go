package hostbuf

// Guard owns one host-provided value together with the obligation to
// release it. The zero Guard is empty and safe to release.
//
// Guards are passed by pointer. Copying a Guard value would duplicate
// the release obligation, which the host's single-owner allocator does
// not permit.
type Guard[T any] struct {
	value   T
	release func()
	held    bool
}

// New creates a Guard owning value. release is invoked exactly once when
// the Guard is released; a nil release means the value needs no
// deallocation but the Guard still tracks validity.
func New[T any](value T, release func()) *Guard[T] {
	return &Guard[T]{value: value, release: release, held: true}
}

// Empty returns a Guard holding nothing. Callers receive one in place of
// a value when the host query that would have produced it failed.
func Empty[T any]() *Guard[T] {
	return &Guard[T]{}
}

// Valid reports whether the Guard currently holds a value.
func (g *Guard[T]) Valid() bool {
	return g.held
}

// Get returns the held value, read-only. The zero value is returned when
// the Guard is empty or was moved from; check Valid first.
func (g *Guard[T]) Get() T {
	if !g.held {
		var zero T
		return zero
	}
	return g.value
}

// Move transfers ownership to a fresh Guard and empties the receiver.
// The release obligation moves with the value; the source will no longer
// release it.
func (g *Guard[T]) Move() *Guard[T] {
	if !g.held {
		return Empty[T]()
	}
	moved := &Guard[T]{value: g.value, release: g.release, held: true}
	var zero T
	g.value = zero
	g.release = nil
	g.held = false
	return moved
}

// Release returns the value to the host. Releasing an empty or already
// released Guard is a no-op, so exactly one release happens per owned
// value no matter how many times Release runs.
func (g *Guard[T]) Release() {
	if !g.held {
		return
	}
	if g.release != nil {
		g.release()
	}
	var zero T
	g.value = zero
	g.release = nil
	g.held = false
}
