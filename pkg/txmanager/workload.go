package txmanager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/config"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/logging"
	"txmanager/pkg/primitives"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BuildWorkload turns configured operation specs into operations, numbering
// each transaction's operations in list order starting at BeginTx = 0.
func BuildWorkload(specs []config.OperationSpec) ([]Operation, error) {
	next := make(map[primitives.TransactionID]primitives.Sequence)
	ops := make([]Operation, 0, len(specs))

	for i, spec := range specs {
		tid := primitives.TransactionID(spec.TID)
		op := Operation{
			TID:    tid,
			Seq:    next[tid],
			Object: primitives.ObjectID(spec.Object),
		}

		switch spec.Op {
		case config.OpBegin:
			kind, err := transaction.ParseKind(spec.Kind)
			if err != nil {
				return nil, fmt.Errorf("workload[%d]: %w", i, err)
			}
			op.Kind = OpBegin
			op.TxKind = kind
			op.Delay = spec.Delay
		case config.OpRead:
			op.Kind = OpRead
		case config.OpWrite:
			op.Kind = OpWrite
		case config.OpCommit:
			op.Kind = OpCommit
		case config.OpAbort:
			op.Kind = OpAbort
		default:
			return nil, fmt.Errorf("workload[%d]: unknown op %q", i, spec.Op)
		}

		next[tid]++
		ops = append(ops, op)
	}
	return ops, nil
}

// Report summarizes a workload run.
type Report struct {
	Submitted int
	Failed    []OperationError
}

type OperationError struct {
	Op  Operation
	Err error
}

func (e OperationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e OperationError) Unwrap() error {
	return e.Err
}

// Run submits every operation from its own goroutine and waits for all of
// them. Failed operations do not stop the run; they are collected in the
// report, and only a broken lock invariant is returned as the run error.
// Cancelling ctx stops launching new operations but cannot pull back
// one that is already parked at a gate or a wait slot.
//
// A transaction's gate state is dropped once its last operation in ops has
// returned, so ids must not be reused across concurrent runs.
func (m *Manager) Run(ctx context.Context, ops []Operation) (*Report, error) {
	report := &Report{}
	var mu sync.Mutex

	remaining := make(map[primitives.TransactionID]int)
	for _, op := range ops {
		remaining[op.TID]++
	}
	finished := func(tid primitives.TransactionID) {
		mu.Lock()
		remaining[tid]--
		last := remaining[tid] == 0
		if last {
			delete(remaining, tid)
		}
		mu.Unlock()

		if last && !m.gate.Forget(tid) {
			logging.WithTx(m.logger, tid).Warn("gate state still busy after last operation")
		}
	}

	var g errgroup.Group
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			m.logger.Warn("workload cancelled", zap.Int("submitted", report.Submitted), zap.Int("total", len(ops)))
			break
		}

		report.Submitted++
		g.Go(func() error {
			defer finished(op.TID)

			if err := m.Submit(op); err != nil {
				mu.Lock()
				report.Failed = append(report.Failed, OperationError{Op: op, Err: err})
				mu.Unlock()

				var dbErr *dberror.DBError
				if errors.As(err, &dbErr) && dbErr.IsFatal() {
					return err
				}
			}
			return nil
		})
	}

	err := g.Wait()

	// Transactions cut short by cancellation never reach their last operation.
	for tid := range remaining {
		m.gate.Forget(tid)
	}

	if err == nil {
		err = ctx.Err()
	}
	return report, err
}
