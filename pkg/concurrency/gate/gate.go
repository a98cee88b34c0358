// Package gate serializes the operations of one transaction.
//
// Each operation is executed by its own goroutine, but operations of the same
// transaction must run one at a time and in submission order. Every
// transaction id owns an admission counter; an operation carrying sequence
// number n is admitted only once the counter reaches n, and leaving the gate
// advances the counter and wakes the goroutines queued behind it. Operations
// of different transactions never wait on each other here.
package gate

import (
	"fmt"
	"sync"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"
)

type admission struct {
	mu       sync.Mutex
	cond     *sync.Cond
	next     primitives.Sequence
	inFlight bool
	queued   int
}

// Gate is the per-transaction admission table.
type Gate struct {
	mu         sync.Mutex
	admissions map[primitives.TransactionID]*admission
}

func New() *Gate {
	return &Gate{admissions: make(map[primitives.TransactionID]*admission)}
}

func (g *Gate) admissionFor(tid primitives.TransactionID) *admission {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.admissions[tid]
	if !ok {
		a = &admission{next: primitives.BeginSequence}
		a.cond = sync.NewCond(&a.mu)
		g.admissions[tid] = a
	}
	return a
}

func (g *Gate) lookup(tid primitives.TransactionID) (*admission, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a, ok := g.admissions[tid]
	return a, ok
}

// Admit blocks until seq is the next sequence number of tid. There is no
// timeout: a missing predecessor keeps its successors parked forever.
// A sequence number that was already consumed is rejected immediately.
func (g *Gate) Admit(tid primitives.TransactionID, seq primitives.Sequence) error {
	a := g.admissionFor(tid)

	a.mu.Lock()
	defer a.mu.Unlock()

	for a.next != seq {
		if seq < a.next {
			return dberror.From(dberror.ErrInvalidOperation, "Gate", "Admit",
				fmt.Sprintf("%s sequence %d already consumed, next is %d", tid, seq, a.next))
		}
		a.queued++
		a.cond.Wait()
		a.queued--
	}
	a.inFlight = true
	return nil
}

// Done releases the gate after the admitted operation of tid and wakes the
// goroutines waiting for the following sequence numbers.
func (g *Gate) Done(tid primitives.TransactionID) {
	a, ok := g.lookup(tid)
	if !ok {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.inFlight {
		return
	}
	a.inFlight = false
	a.next++
	a.cond.Broadcast()
}

// Do runs fn inside the gate. The gate is released even when fn fails.
func (g *Gate) Do(tid primitives.TransactionID, seq primitives.Sequence, fn func() error) error {
	if err := g.Admit(tid, seq); err != nil {
		return err
	}
	defer g.Done(tid)
	return fn()
}

// Forget drops the admission state of tid once nothing is in flight or
// queued for it, and reports whether it did. A later operation of tid starts
// over at BeginSequence, so callers forget a transaction only after its last
// operation has left the gate.
func (g *Gate) Forget(tid primitives.TransactionID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	a, ok := g.admissions[tid]
	if !ok {
		return true
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inFlight || a.queued > 0 {
		return false
	}
	delete(g.admissions, tid)
	return true
}

// Next returns the sequence number tid will admit next.
func (g *Gate) Next(tid primitives.TransactionID) primitives.Sequence {
	a, ok := g.lookup(tid)
	if !ok {
		return primitives.BeginSequence
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Queued returns how many operations of tid are parked at the gate.
func (g *Gate) Queued(tid primitives.TransactionID) int {
	a, ok := g.lookup(tid)
	if !ok {
		return 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queued
}

// Len returns the number of transactions with admission state.
func (g *Gate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.admissions)
}
