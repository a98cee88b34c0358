// Package txmanager coordinates concurrent transactions over a table of
// integer objects using strict two-phase locking.
//
// Every operation (begin, read, write, commit, abort) is executed by its own
// goroutine. Operations of one transaction are serialized through a
// per-transaction gate in submission order; operations of different
// transactions interleave freely and meet only in the lock table.
//
// A request that conflicts with a holder parks on that holder's wait slot
// until the holder commits or aborts, then re-evaluates from scratch. There
// is no queue, no timeout and no deadlock detection: a cycle of waiters
// blocks forever.
//
// Registry and lock table mutation happens under a single manager latch,
// which is also the locker of every wait slot condition. The read or write
// body runs outside the latch while the object lock is held.
package txmanager

import (
	"time"
	"txmanager/pkg/concurrency/gate"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/concurrency/wait"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/log"
	"txmanager/pkg/logging"
	"txmanager/pkg/metrics"
	"txmanager/pkg/primitives"
	"txmanager/pkg/storage/object"

	"github.com/google/uuid"
	golock "github.com/viney-shih/go-lock"
	"go.uber.org/zap"
)

const (
	DefaultDelayUnit = 10 * time.Microsecond

	// Value changes applied by the operation bodies.
	WriteDelta int64 = 7
	ReadDelta  int64 = -4
)

// FatalHandler receives broken-invariant errors. The default logs at fatal
// level, which terminates the process.
type FatalHandler func(err error)

// ManagerConfig holds the collaborators of a Manager. Zero fields get defaults.
type ManagerConfig struct {
	AuditLog  log.LogFile
	Metrics   *metrics.Metrics
	DelayUnit time.Duration
	Sleep     func(time.Duration)
	Fatal     FatalHandler
}

type Manager struct {
	latch    golock.Mutex
	registry *transaction.TransactionRegistry
	table    *lock.LockTable
	grantor  *lock.LockGrantor
	slots    *wait.Slots
	gate     *gate.Gate
	store    *object.Store

	audit     log.LogFile
	metrics   *metrics.Metrics
	delayUnit time.Duration
	sleep     func(time.Duration)
	fatal     FatalHandler

	runID  string
	logger *zap.Logger
}

func NewManager(store *object.Store, config ManagerConfig) *Manager {
	latch := golock.NewCASMutex()
	table := lock.NewLockTable()
	runID := uuid.NewString()

	m := &Manager{
		latch:     latch,
		registry:  transaction.NewTransactionRegistry(),
		table:     table,
		grantor:   lock.NewLockGrantor(table),
		slots:     wait.NewSlots(latch),
		gate:      gate.New(),
		store:     store,
		audit:     config.AuditLog,
		metrics:   config.Metrics,
		delayUnit: config.DelayUnit,
		sleep:     config.Sleep,
		fatal:     config.Fatal,
		runID:     runID,
		logger:    logging.WithComponent("TxManager").With(zap.String("run_id", runID)),
	}

	if m.audit == nil {
		m.audit = log.Discard()
	}
	if m.metrics == nil {
		m.metrics = metrics.MustNew(nil)
	}
	if m.delayUnit <= 0 {
		m.delayUnit = DefaultDelayUnit
	}
	if m.sleep == nil {
		m.sleep = time.Sleep
	}
	if m.fatal == nil {
		m.fatal = func(err error) {
			logging.Fatal("lock protocol invariant broken", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return m
}

func (m *Manager) RunID() string {
	return m.runID
}

// Snapshot returns the current value of every object.
func (m *Manager) Snapshot() []int64 {
	return m.store.Snapshot()
}

// Locks returns the lock table ordered by object.
func (m *Manager) Locks() []lock.Lock {
	m.latch.Lock()
	defer m.latch.Unlock()
	return m.table.Snapshot()
}

// Transactions returns the ids of the live transactions.
func (m *Manager) Transactions() []primitives.TransactionID {
	m.latch.Lock()
	defer m.latch.Unlock()
	return m.registry.IDs()
}

// Transaction returns the live transaction tid.
func (m *Manager) Transaction(tid primitives.TransactionID) (*transaction.Transaction, error) {
	m.latch.Lock()
	defer m.latch.Unlock()
	return m.registry.Get(tid)
}

// Waiters returns how many requests are parked behind tid.
func (m *Manager) Waiters(tid primitives.TransactionID) int {
	m.latch.Lock()
	defer m.latch.Unlock()
	return m.slots.Waiters(tid.Slot())
}

func (m *Manager) violation(operation, detail string) error {
	err := dberror.From(dberror.ErrConsistencyViolation, "TxManager", operation, detail)
	m.logger.Error("consistency violation", zap.String("operation", operation), zap.String("detail", detail))
	m.fatal(err)
	return err
}
