package txmanager

import (
	"fmt"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/logging"
	"txmanager/pkg/primitives"

	"go.uber.org/zap"
)

type OperationKind int

const (
	OpBegin OperationKind = iota
	OpRead
	OpWrite
	OpCommit
	OpAbort
)

func (k OperationKind) String() string {
	switch k {
	case OpBegin:
		return "BeginTx"
	case OpRead:
		return "ReadTx"
	case OpWrite:
		return "WriteTx"
	case OpCommit:
		return "CommitTx"
	case OpAbort:
		return "AbortTx"
	default:
		return "Unknown"
	}
}

// Operation is one unit of work handed to Submit. Seq orders the operations
// of a transaction: BeginTx carries 0, the following ones 1, 2, ...
// Object applies to reads and writes; TxKind and Delay to BeginTx.
type Operation struct {
	Kind   OperationKind
	TID    primitives.TransactionID
	Seq    primitives.Sequence
	Object primitives.ObjectID
	TxKind transaction.Kind
	Delay  int64
}

func (op Operation) String() string {
	switch op.Kind {
	case OpRead, OpWrite:
		return fmt.Sprintf("%s %s #%d obj=%d", op.Kind, op.TID, op.Seq, op.Object)
	case OpBegin:
		return fmt.Sprintf("%s %s #%d kind=%c delay=%d", op.Kind, op.TID, op.Seq, op.TxKind.Letter(), op.Delay)
	default:
		return fmt.Sprintf("%s %s #%d", op.Kind, op.TID, op.Seq)
	}
}

// Submit runs op once every earlier operation of the same transaction has
// finished. The gate is released whatever the outcome, so a failed
// operation never stalls the ones behind it.
func (m *Manager) Submit(op Operation) error {
	return m.gate.Do(op.TID, op.Seq, func() error {
		err := m.execute(op)
		if err != nil {
			m.logger.Debug("operation failed", zap.Stringer("op", op), zap.Error(err))
		}
		return err
	})
}

func (m *Manager) execute(op Operation) error {
	switch op.Kind {
	case OpBegin:
		return m.Begin(op.TID, op.TxKind, op.Delay)
	case OpRead:
		return m.Read(op.TID, op.Object)
	case OpWrite:
		return m.Write(op.TID, op.Object)
	case OpCommit:
		return m.Commit(op.TID)
	case OpAbort:
		return m.Abort(op.TID)
	default:
		return fmt.Errorf("unknown operation kind %d", op.Kind)
	}
}

// Begin registers tid as an active transaction. The calls below are not
// gated; concurrent callers of one transaction go through Submit.
func (m *Manager) Begin(tid primitives.TransactionID, kind transaction.Kind, delay int64) error {
	logger := logging.WithTx(m.logger, tid)

	m.latch.Lock()
	_, err := m.registry.Begin(tid, kind, delay)
	m.latch.Unlock()

	if err != nil {
		logger.Warn("begin rejected", zap.Error(err))
		return err
	}

	m.metrics.Began()
	m.logAudit(m.audit.LogBegin(tid, kind))
	logger.Debug("transaction began", zap.Stringer("kind", kind), zap.Int64("delay", delay))
	return nil
}

// Read takes a shared lock on obj and decrements it by 4.
func (m *Manager) Read(tid primitives.TransactionID, obj primitives.ObjectID) error {
	return m.access(tid, obj, lock.SharedLock)
}

// Write takes an exclusive lock on obj and increments it by 7.
func (m *Manager) Write(tid primitives.TransactionID, obj primitives.ObjectID) error {
	return m.access(tid, obj, lock.ExclusiveLock)
}

func (m *Manager) Commit(tid primitives.TransactionID) error {
	return m.terminate(tid, transaction.TxCommitted)
}

func (m *Manager) Abort(tid primitives.TransactionID) error {
	return m.terminate(tid, transaction.TxAborted)
}

func (m *Manager) access(tid primitives.TransactionID, obj primitives.ObjectID, mode lock.LockType) error {
	logger := logging.WithLock(m.logger, tid, obj)

	if _, err := m.store.Get(obj); err != nil {
		logger.Warn("object out of range")
		return err
	}

	tx, err := m.Transaction(tid)
	if err != nil {
		logger.Warn("operation on unknown transaction", zap.Stringer("mode", mode))
		return err
	}

	if !tx.IsActive() {
		logger.Warn("operation on inactive transaction, aborting", zap.Stringer("status", tx.Status()))
		return m.terminate(tid, transaction.TxAborted)
	}

	return m.requestLock(tx, obj, mode)
}

func (m *Manager) logAudit(err error) {
	if err != nil {
		m.logger.Error("audit write failed", zap.Error(err))
	}
}
