package log

import (
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/primitives"
)

// LogFile is the sink the transaction manager reports protocol events to.
type LogFile interface {
	LogBegin(tid primitives.TransactionID, kind transaction.Kind) error
	LogGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID, value, delay int64, status transaction.TransactionStatus) error
	LogNotGranted(tid primitives.TransactionID, mode lock.LockType, obj primitives.ObjectID, holder primitives.TransactionID) error
	LogTerminate(tid primitives.TransactionID, status transaction.TransactionStatus, released []Release) error
	Close() error
}
