// Package logging provides the process-wide structured logger for txmanager.
//
// The package wraps [go.uber.org/zap] and exposes a single global logger
// that is initialised once and then retrieved via GetLogger. Every component
// obtains its logger through this package so that level, format and output
// destination are controlled from one place.
//
// # Initialisation
//
// Call Init (or InitDefault) once at program startup, before spawning the
// goroutines that execute operations:
//
//	if err := logging.Init(logging.Config{Level: logging.LevelDebug, Format: "console"}); err != nil {
//	    log.Fatal(err)
//	}
//
// If GetLogger is called before Init, a default stderr logger is created
// lazily so that packages logging during tests are safe.
//
// # Context helpers
//
//	log := logging.WithTx(base, tid)        // adds tx_id
//	log := logging.WithLock(base, tid, obj) // adds tx_id and object
//	log := logging.WithComponent("gate")    // adds component
//
// The audit trail of lock grants lives in package log, not here; this logger
// carries diagnostics only.
package logging
