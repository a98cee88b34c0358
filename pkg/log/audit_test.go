package log

import (
	"bytes"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"txmanager/pkg/concurrency/lock"
	"txmanager/pkg/concurrency/transaction"
	"txmanager/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLineLayout(t *testing.T) {
	tests := []struct {
		name  string
		write func(a *AuditLog) error
		want  string
	}{
		{
			name:  "begin",
			write: func(a *AuditLog) error { return a.LogBegin(1, transaction.ReadWrite) },
			want:  "T1       W    \tBeginTx\n",
		},
		{
			name: "write granted",
			write: func(a *AuditLog) error {
				return a.LogGranted(1, lock.ExclusiveLock, 3, 17, 5, transaction.TxActive)
			},
			want: "T1            \tWriteTx  \t3:17:5             \tWriteLock\tGranted\t\tP\n",
		},
		{
			name: "read granted",
			write: func(a *AuditLog) error {
				return a.LogGranted(12, lock.SharedLock, 0, -4, 0, transaction.TxActive)
			},
			want: "T12           \tReadTx   \t0:-4:0             \tReadLock \tGranted\t\tP\n",
		},
		{
			name:  "write not granted",
			write: func(a *AuditLog) error { return a.LogNotGranted(2, lock.ExclusiveLock, 3, 1) },
			want:  "T2            \tWriteTx  \t3:X:X              \tWriteLock\tNotGranted\tW for T1\n",
		},
		{
			name:  "read not granted",
			write: func(a *AuditLog) error { return a.LogNotGranted(2, lock.SharedLock, 3, 1) },
			want:  "T2            \tReadTx   \t3:X:X              \tReadLock \tNotGranted\tW for T1\n",
		},
		{
			name: "commit",
			write: func(a *AuditLog) error {
				return a.LogTerminate(1, transaction.TxCommitted, []Release{{3, 17}, {5, 1}})
			},
			want: "T1            \tCommitTx\t3 : 17, 5 : 1, \n",
		},
		{
			name: "abort without locks",
			write: func(a *AuditLog) error {
				return a.LogTerminate(7, transaction.TxAborted, nil)
			},
			want: "T7            \tAbortTx \t\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			a := NewAuditLog(&buf, 0)
			require.NoError(t, tt.write(a))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestAuditCounts(t *testing.T) {
	a := Discard()
	require.NoError(t, a.LogBegin(1, transaction.ReadOnly))
	require.NoError(t, a.LogGranted(1, lock.SharedLock, 1, 6, 0, transaction.TxActive))
	require.NoError(t, a.LogNotGranted(2, lock.ExclusiveLock, 1, 1))
	require.NoError(t, a.LogTerminate(1, transaction.TxCommitted, nil))

	assert.Equal(t, 1, a.Count(BeginRecord))
	assert.Equal(t, 1, a.Count(ReadRecord))
	assert.Equal(t, 1, a.Count(WriteRecord))
	assert.Equal(t, 1, a.Count(CommitRecord))
	assert.Equal(t, 0, a.Count(AbortRecord))
}

func TestBufferedAuditFlush(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLog(&buf, 4096)

	require.NoError(t, a.LogBegin(1, transaction.ReadOnly))
	assert.Zero(t, buf.Len())

	require.NoError(t, a.Flush())
	assert.Equal(t, "T1       R    \tBeginTx\n", buf.String())
}

func TestConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer
	a := NewAuditLog(&buf, 256)

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(tid primitives.TransactionID) {
			defer wg.Done()
			released := []Release{{1, 10}, {2, 20}, {3, 30}}
			assert.NoError(t, a.LogTerminate(tid, transaction.TxCommitted, released))
		}(primitives.TransactionID(i))
	}
	wg.Wait()
	require.NoError(t, a.Close())

	records, err := NewStreamReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 50)
	for _, r := range records {
		assert.Equal(t, CommitRecord, r.Type)
		assert.Len(t, r.Released, 3)
	}
}

func TestOpenAuditLogRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	a, err := OpenAuditLog(path, 1024)
	require.NoError(t, err)

	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, a.LogRunHeader("run-1", started))
	require.NoError(t, a.LogBegin(1, transaction.ReadWrite))
	require.NoError(t, a.LogGranted(1, lock.ExclusiveLock, 3, 17, 2, transaction.TxActive))
	require.NoError(t, a.LogNotGranted(2, lock.SharedLock, 3, 1))
	require.NoError(t, a.LogTerminate(1, transaction.TxCommitted, []Release{{3, 17}}))
	require.NoError(t, a.Close())

	lr, err := NewLogReader(path)
	require.NoError(t, err)
	defer lr.Close()

	records, err := lr.ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, HeaderRecord, records[0].Type)
	assert.Equal(t, "run-1", records[0].RunID)

	assert.Equal(t, BeginRecord, records[1].Type)
	assert.Equal(t, byte('W'), records[1].Kind)

	w := records[2]
	assert.Equal(t, WriteRecord, w.Type)
	assert.True(t, w.Granted)
	assert.Equal(t, primitives.ObjectID(3), w.Object)
	assert.Equal(t, int64(17), w.Value)
	assert.Equal(t, int64(2), w.Delay)
	assert.Equal(t, byte('P'), w.Status)

	r := records[3]
	assert.Equal(t, ReadRecord, r.Type)
	assert.False(t, r.Granted)
	assert.Equal(t, primitives.TransactionID(2), r.TID)
	assert.Equal(t, primitives.TransactionID(1), r.BlockedBy)

	c := records[4]
	assert.Equal(t, CommitRecord, c.Type)
	assert.Equal(t, []Release{{3, 17}}, c.Released)

	assert.Less(t, records[3].LSN, records[4].LSN)

	require.NoError(t, lr.Reset())
	again, err := lr.ReadAll()
	require.NoError(t, err)
	assert.Len(t, again, 5)
}

func TestParseLineErrors(t *testing.T) {
	bad := []string{
		"garbage",
		"X1\tBeginTx",
		"T1\tBeginTx",
		"T1    \tFrobTx\t",
		"T1    \tWriteTx  \t3:17\tWriteLock\tGranted\t\tP",
		"T1    \tWriteTx  \t3:X:X\tWriteLock\tNotGranted\tW for nobody",
		"T1    \tCommitTx\t3 - 4, ",
	}
	for _, line := range bad {
		_, err := ParseLine(line)
		assert.Error(t, err, line)
	}
}

func TestReaderSkipsBlankLines(t *testing.T) {
	input := strings.Join([]string{
		"T1       R    \tBeginTx",
		"",
		"T1            \tAbortTx \t",
	}, "\n")

	records, err := NewStreamReader(strings.NewReader(input)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, AbortRecord, records[1].Type)
	assert.Empty(t, records[1].Released)
}
