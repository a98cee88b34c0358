// Package wait parks lock requests behind the transaction that blocks them.
//
// A blocked request waits on the slot of the lock holder it conflicts with.
// All slots share the lock manager's latch, so a waiter releases the latch
// atomically while parked and holds it again when it returns. Wake is called
// by the holder at commit or abort, still under the latch.
package wait

import (
	"sync"
	"txmanager/pkg/primitives"
)

type slot struct {
	cond       *sync.Cond
	waiters    int
	generation uint64
}

// Slots is the set of wait slots keyed by blocking transaction.
// Every method must be called with the latch held.
type Slots struct {
	latch sync.Locker
	slots map[primitives.SlotID]*slot
}

func NewSlots(latch sync.Locker) *Slots {
	return &Slots{
		latch: latch,
		slots: make(map[primitives.SlotID]*slot),
	}
}

// Wait parks the caller on id until the next Wake for that id.
// Spurious wakeups are absorbed here; the caller still re-checks
// the lock table after returning.
func (s *Slots) Wait(id primitives.SlotID) {
	sl, ok := s.slots[id]
	if !ok {
		sl = &slot{cond: sync.NewCond(s.latch)}
		s.slots[id] = sl
	}

	sl.waiters++
	gen := sl.generation
	for gen == sl.generation {
		sl.cond.Wait()
	}
	sl.waiters--

	if sl.waiters == 0 {
		delete(s.slots, id)
	}
}

// Waiters returns how many requests are parked on id.
func (s *Slots) Waiters(id primitives.SlotID) int {
	if sl, ok := s.slots[id]; ok {
		return sl.waiters
	}
	return 0
}

// Wake releases every request parked on id and returns how many there were.
func (s *Slots) Wake(id primitives.SlotID) int {
	sl, ok := s.slots[id]
	if !ok || sl.waiters == 0 {
		return 0
	}
	sl.generation++
	sl.cond.Broadcast()
	return sl.waiters
}

// Len returns the number of slots that currently have waiters.
func (s *Slots) Len() int {
	return len(s.slots)
}
