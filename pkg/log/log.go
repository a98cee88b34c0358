package log

import (
	"txmanager/pkg/primitives"
)

// LogRecordType represents the kind of event an audit line records
type LogRecordType uint8

const (
	HeaderRecord LogRecordType = iota // Run header written by the CLI
	BeginRecord                       // Transaction start
	ReadRecord                        // Shared lock request on an object
	WriteRecord                       // Exclusive lock request on an object
	CommitRecord                      // Transaction commit, with released objects
	AbortRecord                       // Transaction abort, with released objects
)

func (t LogRecordType) String() string {
	switch t {
	case HeaderRecord:
		return "Header"
	case BeginRecord:
		return "BeginTx"
	case ReadRecord:
		return "ReadTx"
	case WriteRecord:
		return "WriteTx"
	case CommitRecord:
		return "CommitTx"
	case AbortRecord:
		return "AbortTx"
	default:
		return "Unknown"
	}
}

// LSN is the byte offset of a line in the audit output
type LSN uint64

// Release is one object freed at commit or abort, with its value at that moment
type Release struct {
	Object primitives.ObjectID
	Value  int64
}

// LogRecord is a single parsed audit line
type LogRecord struct {
	LSN  LSN
	Type LogRecordType
	TID  primitives.TransactionID

	// BeginRecord
	Kind byte // 'R' or 'W'

	// ReadRecord / WriteRecord
	Object    primitives.ObjectID
	Granted   bool
	Value     int64                    // value after the operation, granted only
	Delay     int64                    // delay factor, granted only
	Status    byte                     // status letter, granted only
	BlockedBy primitives.TransactionID // holder named in "W for T<n>", not granted only

	// CommitRecord / AbortRecord
	Released []Release

	// HeaderRecord
	RunID string

	Raw string
}
