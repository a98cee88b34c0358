package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitToFile(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	path := filepath.Join(t.TempDir(), "logs", "txmanager.log")
	require.NoError(t, Init(Config{Level: LevelDebug, OutputPath: path, Format: "json"}))

	Info("transaction began", zap.Int64("tx_id", 1))
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"transaction began"`)
	assert.Contains(t, string(data), `"tx_id":1`)
	assert.Contains(t, string(data), `"service":"txmanager"`)
}

func TestInitTwiceFails(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	require.NoError(t, Init(Config{Level: LevelInfo}))
	assert.Error(t, Init(Config{Level: LevelInfo}))
}

func TestGetLoggerLazyDefault(t *testing.T) {
	require.NoError(t, Close())
	t.Cleanup(func() { _ = Close() })

	assert.NotNil(t, GetLogger())
	assert.NoError(t, Close())
	assert.NoError(t, Close())
}

func TestContextHelpers(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	restore := Replace(zap.New(core))
	t.Cleanup(restore)

	WithLock(nil, 3, 7).Debug("lock granted")
	WithComponent("gate").Info("admitted")
	WithTx(WithComponent("TxManager").With(zap.String("run_id", "r1")), 4).Warn("begin rejected")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, int64(3), entries[0].ContextMap()["tx_id"])
	assert.Equal(t, int64(7), entries[0].ContextMap()["object"])
	assert.Equal(t, "gate", entries[1].ContextMap()["component"])

	fields := entries[2].ContextMap()
	assert.Equal(t, int64(4), fields["tx_id"])
	assert.Equal(t, "TxManager", fields["component"])
	assert.Equal(t, "r1", fields["run_id"])
}

func TestZapLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, zapLevel("debug"))
	assert.Equal(t, zap.WarnLevel, zapLevel(LevelWarn))
	assert.Equal(t, zap.ErrorLevel, zapLevel(LevelError))
	assert.Equal(t, zap.InfoLevel, zapLevel("verbose"))
}
