package lock

import (
	"txmanager/pkg/primitives"
)

// Decision is the outcome of evaluating a lock request against the table.
type Decision int

const (
	// Reentrant: the requester already owns an entry on the resource.
	Reentrant Decision = iota
	// Grantable: no holder, or shared request against shared holders.
	Grantable
	// Conflict: the request must wait for the returned holder.
	Conflict
)

func (d Decision) String() string {
	switch d {
	case Reentrant:
		return "REENTRANT"
	case Grantable:
		return "GRANTABLE"
	case Conflict:
		return "CONFLICT"
	default:
		return "UNKNOWN"
	}
}

type LockGrantor struct {
	lockTable *LockTable
}

// NewLockGrantor creates a new lock grantor.
func NewLockGrantor(lockTable *LockTable) *LockGrantor {
	return &LockGrantor{lockTable: lockTable}
}

// Evaluate decides what happens to a request. On Conflict the returned lock
// is the holder the requester has to wait behind.
func (lg *LockGrantor) Evaluate(tid primitives.TransactionID, res primitives.ResourceID, lockType LockType) (Decision, *Lock) {
	if owned := lg.lockTable.FindOwned(tid, res.Segment, res.Object); owned != nil {
		return Reentrant, owned
	}

	holder := lg.lockTable.FindAny(res.Segment, res.Object)
	if holder == nil || Compatible(holder.LockType, lockType) {
		return Grantable, nil
	}
	return Conflict, holder
}

// GrantLock inserts the entry for a Grantable request.
func (lg *LockGrantor) GrantLock(tid primitives.TransactionID, res primitives.ResourceID, lockType LockType) error {
	return lg.lockTable.Add(tid, res.Segment, res.Object, lockType)
}
