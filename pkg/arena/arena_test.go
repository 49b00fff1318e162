package arena

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocator_AllocateDeallocate(t *testing.T) {
	a := NewAllocator()

	h1, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, Handle{Index: 0, Generation: 1}, h1)
	assert.True(t, a.IsLive(h1))

	h2, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, Handle{Index: 1, Generation: 1}, h2)

	assert.True(t, a.Deallocate(h1))
	assert.False(t, a.IsLive(h1))
	assert.False(t, a.Deallocate(h1), "double free must be rejected")
	assert.Equal(t, 1, a.Len())

	h3, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, Handle{Index: 0, Generation: 3}, h3, "freed slot is reused with a new odd generation")
	assert.False(t, a.IsLive(h1))
	assert.True(t, a.IsLive(h3))
}

func TestAllocator_ReusesMostRecentlyFreed(t *testing.T) {
	a := NewAllocator()
	handles := make([]Handle, 3)
	for i := range handles {
		h, err := a.Allocate()
		require.NoError(t, err)
		handles[i] = h
	}

	require.True(t, a.Deallocate(handles[0]))
	require.True(t, a.Deallocate(handles[2]))

	h, err := a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), h.Index)

	h, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), h.Index)

	h, err = a.Allocate()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), h.Index, "grows once the free stack is empty")
}

func TestAllocator_InvalidHandles(t *testing.T) {
	a := NewAllocator()
	h, err := a.Allocate()
	require.NoError(t, err)

	tests := []struct {
		name   string
		handle Handle
	}{
		{name: "out of range", handle: Handle{Index: 42, Generation: 1}},
		{name: "even generation", handle: Handle{Index: h.Index, Generation: 2}},
		{name: "future generation", handle: Handle{Index: h.Index, Generation: 3}},
		{name: "zero value", handle: Handle{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, a.IsLive(tt.handle))
			assert.False(t, a.Deallocate(tt.handle))
		})
	}
	assert.True(t, a.IsLive(h))
}

func TestAllocator_GenerationOverflowRetiresSlot(t *testing.T) {
	a := NewAllocator()
	h, err := a.Allocate()
	require.NoError(t, err)

	a.slots[h.Index].generation = math.MaxUint32
	h.Generation = math.MaxUint32
	require.True(t, a.IsLive(h))

	assert.True(t, a.Deallocate(h))
	assert.False(t, a.IsLive(h))
	assert.False(t, a.Deallocate(h))

	next, err := a.Allocate()
	require.NoError(t, err)
	assert.NotEqual(t, h.Index, next.Index, "retired slot must never be handed out again")
	assert.Equal(t, uint32(1), next.Generation)
}

func TestAllocator_RandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	a := NewAllocator()
	live := map[Handle]bool{}
	var dead []Handle

	for i := 0; i < 5000; i++ {
		if len(live) == 0 || rng.Intn(3) > 0 {
			h, err := a.Allocate()
			require.NoError(t, err)
			require.True(t, a.IsLive(h))
			require.Equal(t, uint32(1), h.Generation%2)
			require.False(t, live[h], "handle %v handed out twice while live", h)
			live[h] = true
			continue
		}
		for h := range live {
			require.True(t, a.Deallocate(h))
			require.False(t, a.IsLive(h))
			delete(live, h)
			dead = append(dead, h)
			break
		}
	}

	slots := map[uint32]bool{}
	for h := range live {
		assert.True(t, a.IsLive(h))
		assert.False(t, slots[h.Index], "two live handles share slot %d", h.Index)
		slots[h.Index] = true
	}
	for _, h := range dead {
		assert.False(t, a.IsLive(h))
	}
	assert.Equal(t, len(live), a.Len())
}

func TestMap_GenerationMismatchIsAbsent(t *testing.T) {
	m := NewMap[string]()
	old := Handle{Index: 0, Generation: 1}
	current := Handle{Index: 0, Generation: 3}

	require.True(t, m.Insert(old, "goblin"))
	require.True(t, m.Insert(current, "dragon"))
	assert.False(t, m.Insert(old, "zombie"), "older generation cannot overwrite")

	_, ok := m.Get(old)
	assert.False(t, ok)
	assert.Nil(t, m.GetMut(old))
	_, ok = m.Remove(old)
	assert.False(t, ok)

	v, ok := m.Get(current)
	require.True(t, ok)
	assert.Equal(t, "dragon", v)

	*m.GetMut(current) = "elder dragon"
	v, ok = m.Remove(current)
	require.True(t, ok)
	assert.Equal(t, "elder dragon", v)

	_, ok = m.Get(current)
	assert.False(t, ok)
}

func TestArena_StaleHandleAfterReuse(t *testing.T) {
	a := New[int]()
	h1, err := a.Spawn(1)
	require.NoError(t, err)

	v, ok := a.Despawn(h1)
	require.True(t, ok)
	assert.Equal(t, 1, v)

	h2, err := a.Spawn(2)
	require.NoError(t, err)
	require.Equal(t, h1.Index, h2.Index)

	_, ok = a.Get(h1)
	assert.False(t, ok, "stale handle must not see the new occupant")
	assert.Nil(t, a.GetMut(h1))
	assert.False(t, a.Insert(h1, 3))
	_, ok = a.Despawn(h1)
	assert.False(t, ok)

	v, ok = a.Get(h2)
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestArena_Each(t *testing.T) {
	a := New[string]()
	hA, _ := a.Spawn("a")
	hB, _ := a.Spawn("b")
	hC, _ := a.Spawn("c")
	a.Despawn(hB)

	seen := map[Handle]string{}
	a.Each(func(h Handle, v *string) {
		seen[h] = *v
	})
	assert.Equal(t, map[Handle]string{hA: "a", hC: "c"}, seen)
	assert.Equal(t, 2, a.Len())
}
