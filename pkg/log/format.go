package log

import (
	"fmt"
	"strings"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/primitives"
)

// Column texts. The padding keeps the tab-separated columns aligned.
const (
	beginTx  = "BeginTx"
	readTx   = "ReadTx   "
	writeTx  = "WriteTx  "
	commitTx = "CommitTx"
	abortTx  = "AbortTx "

	readLock  = "ReadLock "
	writeLock = "WriteLock"

	granted    = "Granted"
	notGranted = "NotGranted"

	headerPrefix = "# run "
)

func operationColumns(mode lock.LockType) (op, lockName string) {
	if mode == lock.ExclusiveLock {
		return writeTx, writeLock
	}
	return readTx, readLock
}

func formatHeader(runID, startedAt string) string {
	return fmt.Sprintf("%s%s started %s\n", headerPrefix, runID, startedAt)
}

func formatBegin(tid primitives.TransactionID, kind transaction.Kind) string {
	return fmt.Sprintf("T%-4d    %c    \t%s\n", int64(tid), kind.Letter(), beginTx)
}

func formatGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID,
	value, delay int64, status transaction.TransactionStatus) string {
	op, lockName := operationColumns(mode)
	return fmt.Sprintf("T%-4d         \t%s\t%d:%d:%-14d\t%s\t%s\t\t%c\n",
		int64(tid), op, int64(obj), value, delay, lockName, granted, status.Letter())
}

func formatNotGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID,
	holder primitives.TransactionID) string {
	op, lockName := operationColumns(mode)
	return fmt.Sprintf("T%-4d         \t%s\t%d:X:X              \t%s\t%s\tW for T%d\n",
		int64(tid), op, int64(obj), lockName, notGranted, int64(holder))
}

// formatTerminate builds the whole commit or abort line, released objects
// included, so it reaches the writer in one piece.
func formatTerminate(tid primitives.TransactionID, status transaction.TransactionStatus, released []Release) string {
	word := abortTx
	if status == transaction.TxCommitted {
		word = commitTx
	}

	var b strings.Builder
	fmt.Fprintf(&b, "T%-4d         \t%s\t", int64(tid), word)
	for _, r := range released {
		fmt.Fprintf(&b, "%d : %d, ", int64(r.Object), r.Value)
	}
	b.WriteString("\n")
	return b.String()
}
