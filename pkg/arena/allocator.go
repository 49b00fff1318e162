// Package arena provides generational-index handles for entities that are
// created and destroyed frequently while other parts of the game hold
// references to them.
//
// A Handle is valid only while the generation stored for its slot matches the
// handle's generation and that generation is odd. Allocating a free slot bumps
// its generation from even to odd, freeing it bumps it again to even, so a
// handle to a freed slot never matches whatever is stored there later.
package arena

import (
	"errors"
	"fmt"
	"math"
)

// ErrArenaFull is returned when no slot can be allocated.
var ErrArenaFull = errors.New("arena is full")

// Handle references a slot in an Allocator.
type Handle struct {
	Index      uint32 `json:"index"`
	Generation uint32 `json:"generation"`
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.Index, h.Generation)
}

type slot struct {
	generation uint32
	// retired slots reached the maximum generation and are never reused
	retired bool
}

func (s slot) live() bool {
	return !s.retired && s.generation%2 == 1
}

// Allocator hands out and invalidates Handles.
// It is not safe for concurrent use.
type Allocator struct {
	slots []slot
	free  []uint32
	live  int
}

// NewAllocator creates an empty Allocator.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// Allocate returns a live handle, reusing the most recently freed slot when
// there is one.
func (a *Allocator) Allocate() (Handle, error) {
	if n := len(a.free); n > 0 {
		index := a.free[n-1]
		a.free = a.free[:n-1]
		s := &a.slots[index]
		s.generation++
		a.live++
		return Handle{Index: index, Generation: s.generation}, nil
	}

	if uint64(len(a.slots)) >= math.MaxUint32 {
		return Handle{}, ErrArenaFull
	}

	index := uint32(len(a.slots))
	a.slots = append(a.slots, slot{generation: 1})
	a.live++
	return Handle{Index: index, Generation: 1}, nil
}

// Deallocate frees the slot referenced by h. It returns false, without any
// effect, if h is not live.
func (a *Allocator) Deallocate(h Handle) bool {
	if !a.IsLive(h) {
		return false
	}
	s := &a.slots[h.Index]
	a.live--
	if s.generation == math.MaxUint32 {
		// the next generation would wrap to 0 and start matching old handles
		s.retired = true
		return true
	}
	s.generation++
	a.free = append(a.free, h.Index)
	return true
}

// IsLive reports whether h references a currently allocated slot.
func (a *Allocator) IsLive(h Handle) bool {
	if int(h.Index) >= len(a.slots) {
		return false
	}
	s := a.slots[h.Index]
	return s.live() && s.generation == h.Generation
}

// Len returns the number of live handles.
func (a *Allocator) Len() int {
	return a.live
}

// Cap returns the number of slots ever created, live or not.
func (a *Allocator) Cap() int {
	return len(a.slots)
}
