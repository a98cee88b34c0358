package lock

import (
	"fmt"
	"slices"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"

	"github.com/google/btree"
)

const tableDegree = 16

// resourceLocks is one node of the ordered index: every holder of a resource.
type resourceLocks struct {
	resource primitives.ResourceID
	holders  []*Lock
}

func lessResourceLocks(a, b *resourceLocks) bool {
	return a.resource.Less(b.resource)
}

// LockTable maps resources to their holders and transactions to the resources
// they hold. It is not safe for concurrent use; callers serialize access.
type LockTable struct {
	resourceLocks    *btree.BTreeG[*resourceLocks]
	transactionLocks map[primitives.TransactionID]map[primitives.ResourceID]LockType
}

func NewLockTable() *LockTable {
	return &LockTable{
		resourceLocks:    btree.NewG(tableDegree, lessResourceLocks),
		transactionLocks: make(map[primitives.TransactionID]map[primitives.ResourceID]LockType),
	}
}

// FindAny returns some current holder of the resource, or nil when it is free.
func (lt *LockTable) FindAny(seg primitives.SegmentID, obj primitives.ObjectID) *Lock {
	entry, ok := lt.get(primitives.ResourceID{Segment: seg, Object: obj})
	if !ok || len(entry.holders) == 0 {
		return nil
	}
	return entry.holders[0]
}

// FindOwned returns the entry tid holds on the resource, or nil.
func (lt *LockTable) FindOwned(tid primitives.TransactionID, seg primitives.SegmentID, obj primitives.ObjectID) *Lock {
	res := primitives.ResourceID{Segment: seg, Object: obj}
	if _, held := lt.transactionLocks[tid][res]; !held {
		return nil
	}

	entry, ok := lt.get(res)
	if !ok {
		return nil
	}
	for _, l := range entry.holders {
		if l.TID == tid {
			return l
		}
	}
	return nil
}

// Add inserts a holder entry. It fails without touching the table if tid
// already holds the resource or if the new entry would break the
// "one exclusive or many shared" rule.
func (lt *LockTable) Add(tid primitives.TransactionID, seg primitives.SegmentID, obj primitives.ObjectID, lockType LockType) error {
	res := primitives.ResourceID{Segment: seg, Object: obj}
	entry, ok := lt.get(res)
	if !ok {
		entry = &resourceLocks{resource: res}
	}

	for _, l := range entry.holders {
		if l.TID == tid {
			return insertError(fmt.Sprintf("%s already holds %s", tid, formatResource(res)))
		}
		if !Compatible(l.LockType, lockType) {
			return insertError(fmt.Sprintf("%s lock of %s conflicts with %s request",
				l.LockType, l.TID, lockType))
		}
	}

	entry.holders = append(entry.holders, NewLock(tid, res, lockType))
	lt.resourceLocks.ReplaceOrInsert(entry)

	if lt.transactionLocks[tid] == nil {
		lt.transactionLocks[tid] = make(map[primitives.ResourceID]LockType)
	}
	lt.transactionLocks[tid][res] = lockType
	return nil
}

// Remove deletes the entry tid holds on the resource.
func (lt *LockTable) Remove(tid primitives.TransactionID, seg primitives.SegmentID, obj primitives.ObjectID) error {
	res := primitives.ResourceID{Segment: seg, Object: obj}
	entry, ok := lt.get(res)
	if !ok {
		return removeError(tid, res)
	}

	idx := slices.IndexFunc(entry.holders, func(l *Lock) bool { return l.TID == tid })
	if idx < 0 {
		return removeError(tid, res)
	}

	entry.holders = slices.Delete(entry.holders, idx, idx+1)
	if len(entry.holders) == 0 {
		lt.resourceLocks.Delete(entry)
	}

	if txResources, exists := lt.transactionLocks[tid]; exists {
		delete(txResources, res)
		if len(txResources) == 0 {
			delete(lt.transactionLocks, tid)
		}
	}
	return nil
}

// OwnedBy returns the resources tid holds, ordered by resource.
func (lt *LockTable) OwnedBy(tid primitives.TransactionID) []primitives.ResourceID {
	owned := make([]primitives.ResourceID, 0, len(lt.transactionLocks[tid]))
	for res := range lt.transactionLocks[tid] {
		owned = append(owned, res)
	}
	slices.SortFunc(owned, func(a, b primitives.ResourceID) int {
		switch {
		case a.Less(b):
			return -1
		case b.Less(a):
			return 1
		default:
			return 0
		}
	})
	return owned
}

// Len returns the number of holder entries in the table.
func (lt *LockTable) Len() int {
	n := 0
	lt.resourceLocks.Ascend(func(entry *resourceLocks) bool {
		n += len(entry.holders)
		return true
	})
	return n
}

// Snapshot returns every entry ordered by resource, then by grant order.
func (lt *LockTable) Snapshot() []Lock {
	var out []Lock
	lt.resourceLocks.Ascend(func(entry *resourceLocks) bool {
		for _, l := range entry.holders {
			out = append(out, *l)
		}
		return true
	})
	return out
}

func (lt *LockTable) get(res primitives.ResourceID) (*resourceLocks, bool) {
	return lt.resourceLocks.Get(&resourceLocks{resource: res})
}

func insertError(detail string) error {
	return dberror.From(dberror.ErrLockInsertFailed, "LockTable", "Add", detail)
}

func removeError(tid primitives.TransactionID, res primitives.ResourceID) error {
	return dberror.From(dberror.ErrLockEntryNotFound, "LockTable", "Remove",
		fmt.Sprintf("%s holds no lock on %s", tid, formatResource(res)))
}

func formatResource(res primitives.ResourceID) string {
	return fmt.Sprintf("%d:%d", res.Segment, res.Object)
}
