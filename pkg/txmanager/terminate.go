package txmanager

import (
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/log"
	"txmanager/pkg/logging"
	"txmanager/pkg/primitives"

	"go.uber.org/zap"
)

// terminate commits or aborts tid. Everything from the audit line to the
// wake-up happens under the latch, so a requester sees the transaction
// either holding all its locks or gone.
func (m *Manager) terminate(tid primitives.TransactionID, status transaction.TransactionStatus) error {
	logger := logging.WithTx(m.logger, tid).With(zap.Stringer("status", status))

	m.latch.Lock()

	tx, err := m.registry.Get(tid)
	if err != nil {
		m.latch.Unlock()
		logger.Warn("terminate of unknown transaction", zap.Error(err))
		return err
	}

	held := tx.HeldLocks()
	m.logAudit(m.audit.LogTerminate(tid, status, m.releasedValues(held)))
	tx.SetStatus(status)

	for _, obj := range held {
		if err := m.table.Remove(tid, primitives.DefaultSegment, obj); err != nil {
			logger.Error("lock entry missing on release", zap.Int64("object", int64(obj)), zap.Error(err))
		}
	}
	tx.ClearHeldLocks()

	for _, res := range m.table.OwnedBy(tid) {
		logger.Error("lock entry outlived its held-lock record", zap.Int64("object", int64(res.Object)))
		if err := m.table.Remove(tid, res.Segment, res.Object); err != nil {
			logger.Error("leaked lock entry could not be removed", zap.Int64("object", int64(res.Object)), zap.Error(err))
		}
	}

	slot := tx.WaitSlot()
	if err := m.registry.Remove(tid); err != nil {
		logger.Error("registry entry vanished during terminate", zap.Error(err))
	}

	woken := 0
	if slot.Valid() && m.slots.Waiters(slot) > 0 {
		woken = m.slots.Wake(slot)
	}

	m.latch.Unlock()

	m.metrics.Terminated(status == transaction.TxCommitted)
	logger.Debug("transaction terminated",
		zap.Int("released", len(held)), zap.Int("woken", woken), zap.Int("live", m.registry.Count()),
		zap.Duration("duration", tx.Duration()))
	return nil
}

func (m *Manager) releasedValues(held []primitives.ObjectID) []log.Release {
	released := make([]log.Release, 0, len(held))
	for _, obj := range held {
		value, err := m.store.Get(obj)
		if err != nil {
			continue
		}
		released = append(released, log.Release{Object: obj, Value: value})
	}
	return released
}
