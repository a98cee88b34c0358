package transaction

import (
	"fmt"
	"sync"
	"time"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/primitives"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// TransactionStatus represents the current state of a transaction
type TransactionStatus int

const (
	TxActive TransactionStatus = iota
	TxWaiting
	TxCommitted
	TxAborted
)

func (ts TransactionStatus) String() string {
	switch ts {
	case TxActive:
		return "ACTIVE"
	case TxWaiting:
		return "WAITING"
	case TxCommitted:
		return "COMMITTED"
	case TxAborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}

// Letter is the status column of the audit log.
func (ts TransactionStatus) Letter() byte {
	switch ts {
	case TxActive:
		return 'P'
	case TxWaiting:
		return 'W'
	case TxCommitted:
		return 'C'
	case TxAborted:
		return 'A'
	default:
		return '?'
	}
}

// Kind is fixed when the transaction begins.
type Kind int

const (
	ReadOnly Kind = iota
	ReadWrite
)

func (k Kind) String() string {
	if k == ReadOnly {
		return "READ_ONLY"
	}
	return "READ_WRITE"
}

func (k Kind) Letter() byte {
	if k == ReadOnly {
		return 'R'
	}
	return 'W'
}

// ParseKind accepts the audit letters R/W as well as the long names.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "R", "r", "READ_ONLY", "read":
		return ReadOnly, nil
	case "W", "w", "READ_WRITE", "write":
		return ReadWrite, nil
	default:
		return ReadWrite, fmt.Errorf("unknown transaction kind %q", s)
	}
}

// Transaction is the record of one active transaction.
//
// waitOn is set only while the status is TxWaiting. waitSlot is the slot other
// transactions park on while waiting for this one; it stays set until the
// transaction terminates. heldLocks keeps insertion order and never holds an
// object twice.
type Transaction struct {
	ID    primitives.TransactionID
	Kind  Kind
	Delay int64

	mutex         sync.RWMutex
	status        TransactionStatus
	lockMode      lock.LockType
	hasLockMode   bool
	pendingObject primitives.ObjectID
	waitOn        primitives.TransactionID
	waitSlot      primitives.SlotID
	heldLocks     *linkedhashset.Set
	startTime     time.Time
}

func NewTransaction(tid primitives.TransactionID, kind Kind, delay int64) *Transaction {
	return &Transaction{
		ID:            tid,
		Kind:          kind,
		Delay:         delay,
		status:        TxActive,
		pendingObject: primitives.InvalidObjectID,
		waitOn:        primitives.InvalidTransactionID,
		waitSlot:      primitives.InvalidSlotID,
		heldLocks:     linkedhashset.New(),
		startTime:     time.Now(),
	}
}

func (tx *Transaction) Status() TransactionStatus {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()
	return tx.status
}

func (tx *Transaction) IsActive() bool {
	return tx.Status() == TxActive
}

// SetStatus records a terminal or active status. Waiting goes through MarkWaiting.
func (tx *Transaction) SetStatus(status TransactionStatus) {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.status = status
	if status != TxWaiting {
		tx.waitOn = primitives.InvalidTransactionID
	}
}

// LockMode returns the mode of the most recent request, if any.
func (tx *Transaction) LockMode() (lock.LockType, bool) {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()
	return tx.lockMode, tx.hasLockMode
}

func (tx *Transaction) SetLockMode(mode lock.LockType) {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.lockMode = mode
	tx.hasLockMode = true
}

func (tx *Transaction) PendingObject() primitives.ObjectID {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()
	return tx.pendingObject
}

// MarkWaiting moves the transaction to TxWaiting behind holder while it
// negotiates obj in the given mode.
func (tx *Transaction) MarkWaiting(obj primitives.ObjectID, mode lock.LockType, holder primitives.TransactionID) {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.status = TxWaiting
	tx.pendingObject = obj
	tx.lockMode = mode
	tx.hasLockMode = true
	tx.waitOn = holder
}

// Wake returns a waiting transaction to TxActive.
func (tx *Transaction) Wake() {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.status = TxActive
	tx.waitOn = primitives.InvalidTransactionID
}

// WaitOn returns the transaction this one is blocked behind.
func (tx *Transaction) WaitOn() (primitives.TransactionID, bool) {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()
	return tx.waitOn, tx.waitOn != primitives.InvalidTransactionID
}

// RegisterWaitSlot records that other transactions park on slot while waiting
// for tx. It reports false when a different slot is already registered.
func (tx *Transaction) RegisterWaitSlot(slot primitives.SlotID) bool {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	if tx.waitSlot == primitives.InvalidSlotID || tx.waitSlot == slot {
		tx.waitSlot = slot
		return true
	}
	return false
}

func (tx *Transaction) WaitSlot() primitives.SlotID {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()
	return tx.waitSlot
}

// HoldLock records obj as held. Re-adding a held object keeps its position.
func (tx *Transaction) HoldLock(obj primitives.ObjectID) {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.heldLocks.Add(obj)
	tx.pendingObject = primitives.InvalidObjectID
}

// HeldLocks returns held objects in acquisition order.
func (tx *Transaction) HeldLocks() []primitives.ObjectID {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()

	values := tx.heldLocks.Values()
	held := make([]primitives.ObjectID, 0, len(values))
	for _, v := range values {
		held = append(held, v.(primitives.ObjectID))
	}
	return held
}

// ClearHeldLocks forgets every held object once the lock table is released.
func (tx *Transaction) ClearHeldLocks() {
	tx.mutex.Lock()
	defer tx.mutex.Unlock()
	tx.heldLocks.Clear()
}

// Duration returns how long the transaction has been running
func (tx *Transaction) Duration() time.Duration {
	return time.Since(tx.startTime)
}

func (tx *Transaction) String() string {
	tx.mutex.RLock()
	defer tx.mutex.RUnlock()

	return fmt.Sprintf("Transaction %s [Kind=%s, Status=%s, Held=%d, Pending=%d, WaitSlot=%d]",
		tx.ID, tx.Kind, tx.status, tx.heldLocks.Size(), tx.pendingObject, tx.waitSlot)
}
