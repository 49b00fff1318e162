package arena

type entry[T any] struct {
	generation uint32
	present    bool
	value      T
}

// Map stores one value per slot index, tagged with the generation of the
// handle that inserted it. Lookups with any other generation behave exactly
// as if the value were absent.
type Map[T any] struct {
	entries []entry[T]
}

// NewMap creates an empty Map.
func NewMap[T any]() *Map[T] {
	return &Map[T]{}
}

// Insert stores v under h. It refuses, returning false, when the slot already
// holds a value from a newer generation.
func (m *Map[T]) Insert(h Handle, v T) bool {
	for int(h.Index) >= len(m.entries) {
		m.entries = append(m.entries, entry[T]{})
	}
	e := &m.entries[h.Index]
	if e.present && e.generation > h.Generation {
		return false
	}
	e.generation = h.Generation
	e.present = true
	e.value = v
	return true
}

func (m *Map[T]) lookup(h Handle) *entry[T] {
	if int(h.Index) >= len(m.entries) {
		return nil
	}
	e := &m.entries[h.Index]
	if !e.present || e.generation != h.Generation {
		return nil
	}
	return e
}

// Get returns a copy of the value stored under h.
func (m *Map[T]) Get(h Handle) (T, bool) {
	if e := m.lookup(h); e != nil {
		return e.value, true
	}
	var zero T
	return zero, false
}

// GetMut returns a pointer to the value stored under h, or nil. The pointer
// is only valid until the next Insert.
func (m *Map[T]) GetMut(h Handle) *T {
	if e := m.lookup(h); e != nil {
		return &e.value
	}
	return nil
}

// Remove deletes and returns the value stored under h.
func (m *Map[T]) Remove(h Handle) (T, bool) {
	var zero T
	e := m.lookup(h)
	if e == nil {
		return zero, false
	}
	v := e.value
	e.value = zero
	e.present = false
	return v, true
}

// Arena pairs an Allocator with a Map so values live exactly as long as
// their handle.
type Arena[T any] struct {
	allocator *Allocator
	values    *Map[T]
}

// New creates an empty Arena.
func New[T any]() *Arena[T] {
	return &Arena[T]{
		allocator: NewAllocator(),
		values:    NewMap[T](),
	}
}

// Spawn allocates a handle and stores v under it.
func (a *Arena[T]) Spawn(v T) (Handle, error) {
	h, err := a.allocator.Allocate()
	if err != nil {
		return Handle{}, err
	}
	a.values.Insert(h, v)
	return h, nil
}

// Despawn removes the value stored under h and frees the handle.
func (a *Arena[T]) Despawn(h Handle) (T, bool) {
	if !a.allocator.IsLive(h) {
		var zero T
		return zero, false
	}
	v, _ := a.values.Remove(h)
	a.allocator.Deallocate(h)
	return v, true
}

// Insert replaces the value stored under a live handle.
func (a *Arena[T]) Insert(h Handle, v T) bool {
	if !a.allocator.IsLive(h) {
		return false
	}
	return a.values.Insert(h, v)
}

func (a *Arena[T]) Get(h Handle) (T, bool) {
	if !a.allocator.IsLive(h) {
		var zero T
		return zero, false
	}
	return a.values.Get(h)
}

func (a *Arena[T]) GetMut(h Handle) *T {
	if !a.allocator.IsLive(h) {
		return nil
	}
	return a.values.GetMut(h)
}

func (a *Arena[T]) Contains(h Handle) bool {
	return a.allocator.IsLive(h)
}

func (a *Arena[T]) Len() int {
	return a.allocator.Len()
}

// Each calls fn for every live value in slot order. fn must not spawn or
// despawn; collect handles and act on them afterwards instead.
func (a *Arena[T]) Each(fn func(h Handle, v *T)) {
	for i := range a.values.entries {
		e := &a.values.entries[i]
		if !e.present {
			continue
		}
		h := Handle{Index: uint32(i), Generation: e.generation}
		if !a.allocator.IsLive(h) {
			continue
		}
		fn(h, &e.value)
	}
}
