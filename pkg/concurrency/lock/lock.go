package lock

import (
	"time"
	"txmanager/pkg/primitives"
)

type LockType int

const (
	SharedLock LockType = iota
	ExclusiveLock
)

func (lt LockType) String() string {
	switch lt {
	case SharedLock:
		return "SHARED"
	case ExclusiveLock:
		return "EXCLUSIVE"
	default:
		return "UNKNOWN"
	}
}

// Letter is the single-character form used in the audit log.
func (lt LockType) Letter() byte {
	if lt == ExclusiveLock {
		return 'X'
	}
	return 'S'
}

// Compatible reports whether a request of mode requested may coexist with a
// lock of mode held owned by another transaction.
func Compatible(held, requested LockType) bool {
	return held == SharedLock && requested == SharedLock
}

// Lock is one holder entry in the lock table.
type Lock struct {
	TID       primitives.TransactionID
	Resource  primitives.ResourceID
	LockType  LockType
	GrantTime time.Time
}

func NewLock(tid primitives.TransactionID, res primitives.ResourceID, lockType LockType) *Lock {
	return &Lock{
		TID:       tid,
		Resource:  res,
		LockType:  lockType,
		GrantTime: time.Now(),
	}
}
