package transaction

import (
	"fmt"
	"slices"
	"sync"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"
)

// TransactionRegistry owns every live Transaction record, keyed by id.
// A record stays valid until Remove is called for its id.
type TransactionRegistry struct {
	transactions map[primitives.TransactionID]*Transaction
	mutex        sync.RWMutex
}

func NewTransactionRegistry() *TransactionRegistry {
	return &TransactionRegistry{
		transactions: make(map[primitives.TransactionID]*Transaction),
	}
}

// Begin creates an ACTIVE transaction and registers it.
func (tr *TransactionRegistry) Begin(tid primitives.TransactionID, kind Kind, delay int64) (*Transaction, error) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if _, exists := tr.transactions[tid]; exists {
		return nil, dberror.From(dberror.ErrTxnAlreadyExists, "Registry", "Begin",
			fmt.Sprintf("%s is already registered", tid))
	}

	tx := NewTransaction(tid, kind, delay)
	tr.transactions[tid] = tx
	return tx, nil
}

// Get retrieves a transaction by id.
func (tr *TransactionRegistry) Get(tid primitives.TransactionID) (*Transaction, error) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	tx, exists := tr.transactions[tid]
	if !exists {
		return nil, notFound(tid, "Get")
	}
	return tx, nil
}

// Remove unlinks the record for tid.
func (tr *TransactionRegistry) Remove(tid primitives.TransactionID) error {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	if _, exists := tr.transactions[tid]; !exists {
		return notFound(tid, "Remove")
	}
	delete(tr.transactions, tid)
	return nil
}

// Count returns the number of registered transactions
func (tr *TransactionRegistry) Count() int {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()
	return len(tr.transactions)
}

// IDs returns every registered id in ascending order.
func (tr *TransactionRegistry) IDs() []primitives.TransactionID {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	tids := make([]primitives.TransactionID, 0, len(tr.transactions))
	for tid := range tr.transactions {
		tids = append(tids, tid)
	}
	slices.Sort(tids)
	return tids
}

func notFound(tid primitives.TransactionID, op string) error {
	return dberror.From(dberror.ErrTxnNotFound, "Registry", op,
		fmt.Sprintf("%s is not registered", tid))
}
