package lock

import (
	"errors"
	"testing"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seg = primitives.DefaultSegment

func TestNewLockTable(t *testing.T) {
	lt := NewLockTable()

	require.NotNil(t, lt)
	assert.Equal(t, 0, lt.Len())
	assert.Nil(t, lt.FindAny(seg, 1))
	assert.Empty(t, lt.Snapshot())
}

func TestAddExclusive(t *testing.T) {
	lt := NewLockTable()

	require.NoError(t, lt.Add(1, seg, 3, ExclusiveLock))

	holder := lt.FindAny(seg, 3)
	require.NotNil(t, holder)
	assert.Equal(t, primitives.TransactionID(1), holder.TID)
	assert.Equal(t, ExclusiveLock, holder.LockType)
	assert.Equal(t, primitives.NewResourceID(3), holder.Resource)
	assert.Nil(t, lt.FindAny(seg, 4))
}

func TestAddManyShared(t *testing.T) {
	lt := NewLockTable()

	require.NoError(t, lt.Add(1, seg, 2, SharedLock))
	require.NoError(t, lt.Add(2, seg, 2, SharedLock))
	require.NoError(t, lt.Add(3, seg, 2, SharedLock))

	holders := lt.Snapshot()
	require.Len(t, holders, 3)
	for i, h := range holders {
		assert.Equal(t, primitives.TransactionID(i+1), h.TID)
		assert.Equal(t, SharedLock, h.LockType)
	}
	assert.Equal(t, 3, lt.Len())
}

func TestAddRejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name  string
		setup func(lt *LockTable)
		tid   primitives.TransactionID
		mode  LockType
	}{
		{
			name:  "exclusive over shared",
			setup: func(lt *LockTable) { _ = lt.Add(1, seg, 5, SharedLock) },
			tid:   2,
			mode:  ExclusiveLock,
		},
		{
			name:  "shared over exclusive",
			setup: func(lt *LockTable) { _ = lt.Add(1, seg, 5, ExclusiveLock) },
			tid:   2,
			mode:  SharedLock,
		},
		{
			name:  "exclusive over exclusive",
			setup: func(lt *LockTable) { _ = lt.Add(1, seg, 5, ExclusiveLock) },
			tid:   2,
			mode:  ExclusiveLock,
		},
		{
			name:  "duplicate owner",
			setup: func(lt *LockTable) { _ = lt.Add(1, seg, 5, SharedLock) },
			tid:   1,
			mode:  SharedLock,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lt := NewLockTable()
			tt.setup(lt)
			before := lt.Len()

			err := lt.Add(tt.tid, seg, 5, tt.mode)
			assert.True(t, errors.Is(err, dberror.ErrLockInsertFailed))
			assert.Equal(t, before, lt.Len())
		})
	}
}

func TestFindOwned(t *testing.T) {
	lt := NewLockTable()
	require.NoError(t, lt.Add(1, seg, 2, SharedLock))
	require.NoError(t, lt.Add(2, seg, 2, SharedLock))

	owned := lt.FindOwned(2, seg, 2)
	require.NotNil(t, owned)
	assert.Equal(t, primitives.TransactionID(2), owned.TID)

	assert.Nil(t, lt.FindOwned(3, seg, 2))
	assert.Nil(t, lt.FindOwned(1, seg, 9))
}

func TestRemove(t *testing.T) {
	lt := NewLockTable()
	require.NoError(t, lt.Add(1, seg, 2, SharedLock))
	require.NoError(t, lt.Add(2, seg, 2, SharedLock))

	require.NoError(t, lt.Remove(1, seg, 2))
	assert.Nil(t, lt.FindOwned(1, seg, 2))
	assert.Empty(t, lt.OwnedBy(1))

	holder := lt.FindAny(seg, 2)
	require.NotNil(t, holder)
	assert.Equal(t, primitives.TransactionID(2), holder.TID)

	require.NoError(t, lt.Remove(2, seg, 2))
	assert.Nil(t, lt.FindAny(seg, 2))
	assert.Equal(t, 0, lt.Len())
}

func TestRemoveNotFound(t *testing.T) {
	lt := NewLockTable()
	require.NoError(t, lt.Add(1, seg, 2, ExclusiveLock))

	err := lt.Remove(2, seg, 2)
	assert.True(t, errors.Is(err, dberror.ErrLockEntryNotFound))

	err = lt.Remove(1, seg, 3)
	assert.True(t, errors.Is(err, dberror.ErrLockEntryNotFound))
	assert.Equal(t, 1, lt.Len())
}

func TestOwnedByAndSnapshotOrdering(t *testing.T) {
	lt := NewLockTable()
	require.NoError(t, lt.Add(1, seg, 9, ExclusiveLock))
	require.NoError(t, lt.Add(1, seg, 2, SharedLock))
	require.NoError(t, lt.Add(2, seg, 2, SharedLock))
	require.NoError(t, lt.Add(1, seg, 5, ExclusiveLock))

	assert.Equal(t, []primitives.ResourceID{
		primitives.NewResourceID(2),
		primitives.NewResourceID(5),
		primitives.NewResourceID(9),
	}, lt.OwnedBy(1))

	snap := lt.Snapshot()
	require.Len(t, snap, 4)
	assert.Equal(t, primitives.ObjectID(2), snap[0].Resource.Object)
	assert.Equal(t, primitives.TransactionID(1), snap[0].TID)
	assert.Equal(t, primitives.TransactionID(2), snap[1].TID)
	assert.Equal(t, primitives.ObjectID(5), snap[2].Resource.Object)
	assert.Equal(t, primitives.ObjectID(9), snap[3].Resource.Object)
}
