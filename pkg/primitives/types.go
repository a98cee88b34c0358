package primitives

import "fmt"

// TransactionID identifies one logical transaction. Ids are chosen by the
// caller that submits operations and stay stable for the transaction's lifetime.
type TransactionID int64

// ObjectID is the index of a cell in the object store.
type ObjectID int64

// SegmentID groups lockable resources. Only DefaultSegment is in use, but it
// stays part of the lock address.
type SegmentID int64

// SlotID names a wait slot. A slot is keyed by the transaction being waited on.
type SlotID int64

// Sequence is the position of an operation in its transaction's submission order.
type Sequence int64

// Sentinel values for invalid/unset identifiers
const (
	InvalidTransactionID TransactionID = -1
	InvalidObjectID      ObjectID      = -1
	InvalidSlotID        SlotID        = -1

	// DefaultSegment is the only segment objects live in.
	DefaultSegment SegmentID = 1

	// BeginSequence is the admission slot of a transaction's begin operation.
	BeginSequence Sequence = 0
)

func (t TransactionID) String() string {
	return fmt.Sprintf("T%d", int64(t))
}

// Slot returns the wait slot other transactions park on while waiting for t.
func (t TransactionID) Slot() SlotID {
	return SlotID(t)
}

func (o ObjectID) Valid() bool {
	return o >= 0
}

func (s SlotID) Valid() bool {
	return s >= 0
}
