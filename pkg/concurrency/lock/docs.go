// Package lock implements the object lock table for txmanager's concurrency
// control layer.
//
// # Overview
//
// Every lockable resource is addressed by a (segment, object) pair. For one
// resource the table holds either nothing, exactly one [ExclusiveLock] entry,
// or one or more [SharedLock] entries. [LockTable.Add] refuses any insertion
// that would break that rule.
//
// Two lock modes are supported:
//
//   - [SharedLock] is taken to read an object; compatible with other shared locks.
//   - [ExclusiveLock] is taken to write an object; incompatible with every other lock.
//
// # Components
//
//   - [LockTable] is an ordered index from resource to holder entries, plus a reverse
//     index from transaction to the resources it holds.
//   - [LockGrantor] evaluates a request against the table: re-entry by the
//     current owner, immediate grant, or conflict with a named holder.
//
// The table has no latch of its own. The transaction manager mutates it only
// while holding its global latch, together with the transaction registry.
//
// # Re-entry
//
// A transaction that already owns an entry on a resource is told [Reentrant]
// whatever mode it asks for. No S→X upgrade check is made and no second entry
// is created. Callers that need strict upgrade semantics must check
// [LockTable.FindOwned] themselves.
package lock
