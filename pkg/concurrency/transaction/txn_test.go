package transaction

import (
	"errors"
	"sync"
	"testing"
	"txmanager/pkg/concurrency/lock"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionStatus_String(t *testing.T) {
	tests := []struct {
		status   TransactionStatus
		expected string
		letter   byte
	}{
		{TxActive, "ACTIVE", 'P'},
		{TxWaiting, "WAITING", 'W'},
		{TxCommitted, "COMMITTED", 'C'},
		{TxAborted, "ABORTED", 'A'},
		{TransactionStatus(999), "UNKNOWN", '?'},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.String())
			assert.Equal(t, tt.letter, tt.status.Letter())
		})
	}
}

func TestParseKind(t *testing.T) {
	kind, err := ParseKind("R")
	require.NoError(t, err)
	assert.Equal(t, ReadOnly, kind)

	kind, err = ParseKind("write")
	require.NoError(t, err)
	assert.Equal(t, ReadWrite, kind)
	assert.Equal(t, byte('W'), kind.Letter())

	_, err = ParseKind("Q")
	assert.Error(t, err)
}

func TestNewTransaction(t *testing.T) {
	tx := NewTransaction(7, ReadWrite, 5)

	assert.Equal(t, primitives.TransactionID(7), tx.ID)
	assert.Equal(t, TxActive, tx.Status())
	assert.True(t, tx.IsActive())
	assert.Equal(t, primitives.InvalidObjectID, tx.PendingObject())
	assert.Equal(t, primitives.InvalidSlotID, tx.WaitSlot())
	assert.Empty(t, tx.HeldLocks())

	_, hasMode := tx.LockMode()
	assert.False(t, hasMode)
	_, waiting := tx.WaitOn()
	assert.False(t, waiting)
}

func TestWaitingLifecycle(t *testing.T) {
	tx := NewTransaction(2, ReadWrite, 0)

	tx.MarkWaiting(3, lock.ExclusiveLock, 1)
	assert.Equal(t, TxWaiting, tx.Status())
	assert.Equal(t, primitives.ObjectID(3), tx.PendingObject())
	holder, waiting := tx.WaitOn()
	assert.True(t, waiting)
	assert.Equal(t, primitives.TransactionID(1), holder)
	mode, _ := tx.LockMode()
	assert.Equal(t, lock.ExclusiveLock, mode)

	tx.Wake()
	assert.Equal(t, TxActive, tx.Status())
	_, waiting = tx.WaitOn()
	assert.False(t, waiting)

	tx.HoldLock(3)
	assert.Equal(t, primitives.InvalidObjectID, tx.PendingObject())
}

func TestRegisterWaitSlot(t *testing.T) {
	tx := NewTransaction(1, ReadWrite, 0)

	assert.True(t, tx.RegisterWaitSlot(1))
	assert.True(t, tx.RegisterWaitSlot(1))
	assert.False(t, tx.RegisterWaitSlot(4))
	assert.Equal(t, primitives.SlotID(1), tx.WaitSlot())
}

func TestHeldLocksKeepOrderWithoutDuplicates(t *testing.T) {
	tx := NewTransaction(1, ReadWrite, 0)

	tx.HoldLock(5)
	tx.HoldLock(2)
	tx.HoldLock(5)
	tx.HoldLock(9)

	assert.Equal(t, []primitives.ObjectID{5, 2, 9}, tx.HeldLocks())

	tx.ClearHeldLocks()
	assert.Empty(t, tx.HeldLocks())
}

func TestRegistryBeginGetRemove(t *testing.T) {
	tr := NewTransactionRegistry()

	tx, err := tr.Begin(1, ReadOnly, 3)
	require.NoError(t, err)
	assert.Equal(t, ReadOnly, tx.Kind)
	assert.Equal(t, int64(3), tx.Delay)

	got, err := tr.Get(1)
	require.NoError(t, err)
	assert.Same(t, tx, got)

	require.NoError(t, tr.Remove(1))
	_, err = tr.Get(1)
	assert.True(t, errors.Is(err, dberror.ErrTxnNotFound))

	err = tr.Remove(1)
	assert.True(t, errors.Is(err, dberror.ErrTxnNotFound))
	assert.Equal(t, 0, tr.Count())
}

func TestRegistryRejectsDuplicateBegin(t *testing.T) {
	tr := NewTransactionRegistry()

	_, err := tr.Begin(1, ReadWrite, 0)
	require.NoError(t, err)

	_, err = tr.Begin(1, ReadWrite, 0)
	assert.True(t, errors.Is(err, dberror.ErrTxnAlreadyExists))
	assert.Equal(t, 1, tr.Count())
}

func TestRegistryIDsSorted(t *testing.T) {
	tr := NewTransactionRegistry()
	for _, tid := range []primitives.TransactionID{3, 1, 2} {
		_, err := tr.Begin(tid, ReadWrite, 0)
		require.NoError(t, err)
	}

	assert.Equal(t, []primitives.TransactionID{1, 2, 3}, tr.IDs())
	assert.Equal(t, 3, tr.Count())
}

func TestRegistryConcurrentBegin(t *testing.T) {
	tr := NewTransactionRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(tid primitives.TransactionID) {
			defer wg.Done()
			_, _ = tr.Begin(tid, ReadWrite, 0)
			_, _ = tr.Get(tid)
		}(primitives.TransactionID(i))
	}
	wg.Wait()

	assert.Equal(t, 100, tr.Count())
}
