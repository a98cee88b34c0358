package error

import (
	"fmt"
	"runtime"
	"strings"
)

// ErrorCategory classifies errors by how the caller is expected to react.
type ErrorCategory int

const (
	// ErrCategoryUser represents errors caused by the submitted operation itself,
	// such as an unknown transaction id or an object index outside the store.
	// The operation is dropped and the process continues.
	ErrCategoryUser ErrorCategory = iota

	// ErrCategoryConcurrency represents errors raised by the lock table while a
	// request was being granted or released. The request fails, nothing is retried.
	ErrCategoryConcurrency

	// ErrCategorySystem represents broken invariants among the synchronization
	// primitives. Continuing would risk corrupting the lock table, so these are fatal.
	ErrCategorySystem
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryUser:
		return "USER"
	case ErrCategoryConcurrency:
		return "CONCURRENCY"
	case ErrCategorySystem:
		return "SYSTEM"
	default:
		return "UNKNOWN"
	}
}

// Error codes
const (
	CodeTxnNotFound          = "TXN_NOT_FOUND"
	CodeTxnAlreadyExists     = "TXN_ALREADY_EXISTS"
	CodeLockEntryNotFound    = "LOCK_ENTRY_NOT_FOUND"
	CodeLockInsertFailed     = "LOCK_TABLE_INSERT_FAILED"
	CodeConsistencyViolation = "LOCK_CONSISTENCY_VIOLATION"
	CodeObjectOutOfRange     = "OBJECT_OUT_OF_RANGE"
	CodeInvalidOperation     = "INVALID_OPERATION"
)

// Sentinels usable with errors.Is. A DBError matches a sentinel when the codes agree.
var (
	ErrTxnNotFound          = &DBError{Code: CodeTxnNotFound, Category: ErrCategoryUser, Message: "transaction not found"}
	ErrTxnAlreadyExists     = &DBError{Code: CodeTxnAlreadyExists, Category: ErrCategoryUser, Message: "transaction already exists"}
	ErrLockEntryNotFound    = &DBError{Code: CodeLockEntryNotFound, Category: ErrCategoryConcurrency, Message: "lock entry not found"}
	ErrLockInsertFailed     = &DBError{Code: CodeLockInsertFailed, Category: ErrCategoryConcurrency, Message: "lock table insert failed"}
	ErrConsistencyViolation = &DBError{Code: CodeConsistencyViolation, Category: ErrCategorySystem, Message: "lock protocol consistency violation"}
	ErrObjectOutOfRange     = &DBError{Code: CodeObjectOutOfRange, Category: ErrCategoryUser, Message: "object id out of range"}
	ErrInvalidOperation     = &DBError{Code: CodeInvalidOperation, Category: ErrCategoryUser, Message: "invalid operation"}
)

// DBError is a structured error carrying where and why a request failed.
type DBError struct {
	// Code is a stable identifier for this error type, e.g. "TXN_NOT_FOUND".
	Code string

	Category ErrorCategory

	// Message is a human-readable description of what went wrong.
	Message string

	// Detail describes this particular instance, e.g. "T4 is not registered".
	Detail string

	// Operation is the request being served, e.g. "Commit", "RequestLock".
	Operation string

	// Component is where the error originated, e.g. "LockTable", "Registry".
	Component string

	Cause error

	// Stack is captured in New and Wrap.
	Stack []uintptr
}

// New creates a new DBError with the specified code, category, and message.
func New(category ErrorCategory, code, message string) *DBError {
	return &DBError{
		Code:     code,
		Category: category,
		Message:  message,
		Stack:    captureStack(),
	}
}

// From builds a fresh, stack-carrying error from one of the package sentinels.
func From(sentinel *DBError, component, operation, detail string) *DBError {
	return &DBError{
		Code:      sentinel.Code,
		Category:  sentinel.Category,
		Message:   sentinel.Message,
		Detail:    detail,
		Operation: operation,
		Component: component,
		Stack:     captureStack(),
	}
}

// Wrap wraps an existing error with operation and component context.
// If the error is already a DBError, only the missing fields are filled in.
func Wrap(err error, code, operation, component string) *DBError {
	if err == nil {
		return nil
	}

	if dbErr, ok := err.(*DBError); ok {
		if dbErr.Operation == "" {
			dbErr.Operation = operation
		}
		if dbErr.Component == "" {
			dbErr.Component = component
		}
		return dbErr
	}

	return &DBError{
		Code:      code,
		Category:  ErrCategorySystem,
		Message:   err.Error(),
		Operation: operation,
		Component: component,
		Cause:     err,
		Stack:     captureStack(),
	}
}

// captureStack skips runtime.Callers, captureStack and the constructor.
func captureStack() []uintptr {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[0:n]
}

// Error formats as
// [CODE] Message: Detail (operation: Operation, component: Component) caused by: cause
func (e *DBError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Detail != "" {
		b.WriteString(fmt.Sprintf(": %s", e.Detail))
	}

	if e.Operation != "" {
		b.WriteString(fmt.Sprintf(" (operation: %s", e.Operation))
		if e.Component != "" {
			b.WriteString(fmt.Sprintf(", component: %s", e.Component))
		}
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(" caused by: %v", e.Cause))
	}

	return b.String()
}

func (e *DBError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a DBError with the same code.
func (e *DBError) Is(target error) bool {
	t, ok := target.(*DBError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsFatal reports whether the error breaks a synchronization invariant.
func (e *DBError) IsFatal() bool {
	return e.Category == ErrCategorySystem
}

// FormatStack returns a human-readable stack trace for debugging purposes.
func (e *DBError) FormatStack() string {
	if len(e.Stack) == 0 {
		return ""
	}

	var b strings.Builder
	frames := runtime.CallersFrames(e.Stack)

	b.WriteString("Stack trace:\n")
	for {
		f, more := frames.Next()
		b.WriteString(fmt.Sprintf("  %s\n    %s:%d\n",
			f.Function, f.File, f.Line))
		if !more {
			break
		}
	}

	return b.String()
}
