package txmanager

import (
	"fmt"
	"time"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/logging"
	"txmanager/pkg/metrics"
	"txmanager/pkg/primitives"

	"go.uber.org/zap"
)

// requestLock acquires obj in mode for tx and runs the read or write body.
//
// The loop runs under the latch. A reentrant request only updates the
// transaction's lock mode; the mode itself is not re-checked, so a shared
// holder asking for exclusive access is let through. A conflicting request
// parks on the holder's wait slot and starts over once woken.
func (m *Manager) requestLock(tx *transaction.Transaction, obj primitives.ObjectID, mode lock.LockType) error {
	res := primitives.NewResourceID(obj)
	logger := logging.WithLock(m.logger, tx.ID, obj).With(zap.Stringer("mode", mode))

	var waitStart time.Time
	waited := false

	m.latch.Lock()
	for {
		decision, holder := m.grantor.Evaluate(tx.ID, res, mode)

		switch decision {
		case lock.Reentrant:
			tx.SetLockMode(mode)
			m.latch.Unlock()

			m.finishWait(waited, waitStart)
			m.metrics.LockRequest(mode, metrics.OutcomeReentrant)
			logger.Debug("lock already held", zap.Stringer("held", holder.LockType))
			return m.perform(tx, obj, mode)

		case lock.Grantable:
			if err := m.grantor.GrantLock(tx.ID, res, mode); err != nil {
				m.latch.Unlock()

				m.finishWait(waited, waitStart)
				m.metrics.LockRequest(mode, metrics.OutcomeFailed)
				logger.Error("lock table insert failed", zap.Error(err))
				return err
			}
			tx.HoldLock(obj)
			tx.SetLockMode(mode)
			m.latch.Unlock()

			outcome := metrics.OutcomeGranted
			if waited {
				outcome = metrics.OutcomeWaited
			}
			m.finishWait(waited, waitStart)
			m.metrics.LockRequest(mode, outcome)
			logger.Debug("lock granted", zap.Bool("waited", waited))
			return m.perform(tx, obj, mode)

		case lock.Conflict:
			if !waited {
				waited = true
				waitStart = time.Now()
				m.metrics.StartWait()
			}
			if err := m.park(tx, obj, mode, holder.TID); err != nil {
				m.latch.Unlock()
				m.finishWait(waited, waitStart)
				return m.violation("RequestLock", err.Error())
			}
			logger.Debug("woken, retrying")
		}
	}
}

// park blocks tx behind holder. Called and returns with the latch held.
// On error tx is back to active and has not parked.
func (m *Manager) park(tx *transaction.Transaction, obj primitives.ObjectID, mode lock.LockType, holder primitives.TransactionID) error {
	m.logAudit(m.audit.LogNotGranted(tx.ID, mode, obj, holder))
	tx.MarkWaiting(obj, mode, holder)

	holderTx, err := m.registry.Get(holder)
	if err != nil {
		tx.Wake()
		return fmt.Errorf("%s holds a lock on object %d but is not registered", holder, obj)
	}

	slot := holder.Slot()
	if !holderTx.RegisterWaitSlot(slot) {
		tx.Wake()
		return fmt.Errorf("%s already has wait slot %d, %s asked for slot %d",
			holder, holderTx.WaitSlot(), tx.ID, slot)
	}

	logging.WithLock(m.logger, tx.ID, obj).Debug("waiting", zap.Int64("holder", int64(holder)))
	m.slots.Wait(slot)
	tx.Wake()
	return nil
}

// perform is the read or write body. It runs with the object lock held and
// the latch released.
func (m *Manager) perform(tx *transaction.Transaction, obj primitives.ObjectID, mode lock.LockType) error {
	delta := ReadDelta
	if mode == lock.ExclusiveLock {
		delta = WriteDelta
	}

	value, err := m.store.Add(obj, delta)
	if err != nil {
		return err
	}

	m.logAudit(m.audit.LogGranted(tx.ID, mode, obj, value, tx.Delay, tx.Status()))
	if tx.Delay > 0 {
		m.sleep(time.Duration(tx.Delay) * m.delayUnit)
	}
	return nil
}

func (m *Manager) finishWait(waited bool, since time.Time) {
	if waited {
		m.metrics.EndWait(time.Since(since))
	}
}
