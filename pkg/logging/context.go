package logging

import (
	"txmanager/pkg/primitives"

	"go.uber.org/zap"
)

// WithTx returns base carrying the transaction id. A nil base means the
// process-wide logger.
//
//	log := logging.WithTx(m.logger, tid)
//	log.Info("transaction began", zap.String("kind", "W"))
func WithTx(base *zap.Logger, tid primitives.TransactionID) *zap.Logger {
	return orGlobal(base).With(zap.Int64("tx_id", int64(tid)))
}

// WithLock returns base carrying the transaction and the object under negotiation.
//
//	log := logging.WithLock(m.logger, tid, obj)
//	log.Debug("lock granted", zap.String("mode", "X"))
func WithLock(base *zap.Logger, tid primitives.TransactionID, obj primitives.ObjectID) *zap.Logger {
	return orGlobal(base).With(zap.Int64("tx_id", int64(tid)), zap.Int64("object", int64(obj)))
}

// WithComponent returns a logger carrying the subsystem name.
func WithComponent(component string) *zap.Logger {
	return GetLogger().With(zap.String("component", component))
}

func orGlobal(base *zap.Logger) *zap.Logger {
	if base == nil {
		return GetLogger()
	}
	return base
}
