package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"
)

// AuditLog is the append-only, human-readable protocol trace. Lines from
// different transactions interleave in arrival order; each line is written
// whole under the log's own mutex.
type AuditLog struct {
	mutex  sync.Mutex
	writer *LogWriter
	closer io.Closer
	counts map[LogRecordType]int
}

var _ LogFile = (*AuditLog)(nil)

// NewAuditLog writes audit lines to w. A bufferSize of 0 hands every line
// to w as soon as it is logged.
func NewAuditLog(w io.Writer, bufferSize int) *AuditLog {
	a := &AuditLog{
		writer: NewLogWriter(w, bufferSize),
		counts: make(map[LogRecordType]int),
	}
	if c, ok := w.(io.Closer); ok && w != os.Stdout && w != os.Stderr {
		a.closer = c
	}
	return a
}

// OpenAuditLog truncates or creates the file at path and writes audit lines to it.
func OpenAuditLog(path string, bufferSize int) (*AuditLog, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, dberror.Wrap(fmt.Errorf("failed to open audit log %s: %w", path, err),
			dberror.CodeInvalidOperation, "OpenAuditLog", "AuditLog")
	}
	return NewAuditLog(file, bufferSize), nil
}

// Discard returns an audit log that drops every line.
func Discard() *AuditLog {
	return NewAuditLog(io.Discard, 0)
}

func (a *AuditLog) write(t LogRecordType, line string) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if _, err := a.writer.Write([]byte(line)); err != nil {
		return dberror.Wrap(err, dberror.CodeInvalidOperation, "Write"+t.String(), "AuditLog")
	}
	a.counts[t]++
	return nil
}

// LogRunHeader stamps the run id at the top of the trace.
func (a *AuditLog) LogRunHeader(runID string, startedAt time.Time) error {
	return a.write(HeaderRecord, formatHeader(runID, startedAt.Format(time.RFC3339)))
}

func (a *AuditLog) LogBegin(tid primitives.TransactionID, kind transaction.Kind) error {
	return a.write(BeginRecord, formatBegin(tid, kind))
}

// LogGranted records a granted request; value is the object's value after the
// operation and status the requester's status letter at that point.
func (a *AuditLog) LogGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID,
	value, delay int64, status transaction.TransactionStatus) error {
	return a.write(recordTypeFor(mode), formatGranted(tid, mode, obj, value, delay, status))
}

func (a *AuditLog) LogNotGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID,
	holder primitives.TransactionID) error {
	return a.write(recordTypeFor(mode), formatNotGranted(tid, mode, obj, holder))
}

func (a *AuditLog) LogTerminate(tid primitives.TransactionID, status transaction.TransactionStatus, released []Release) error {
	t := AbortRecord
	if status == transaction.TxCommitted {
		t = CommitRecord
	}
	return a.write(t, formatTerminate(tid, status, released))
}

// Count returns how many lines of type t have been logged.
func (a *AuditLog) Count(t LogRecordType) int {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.counts[t]
}

// Flush hands any buffered lines to the underlying writer.
func (a *AuditLog) Flush() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.writer.Force(a.writer.CurrentLSN())
}

func (a *AuditLog) Close() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if err := a.writer.Close(); err != nil {
		return err
	}
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

func recordTypeFor(mode lock.LockType) LogRecordType {
	if mode == lock.ExclusiveLock {
		return WriteRecord
	}
	return ReadRecord
}
