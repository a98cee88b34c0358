package gate

import (
	"errors"
	"sync"
	"testing"
	"time"
	dberror "txmanager/pkg/error"
	"txmanager/pkg/primitives"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmitInOrder(t *testing.T) {
	g := New()
	const tid = primitives.TransactionID(1)
	const n = 20

	var (
		mu    sync.Mutex
		order []primitives.Sequence
		wg    sync.WaitGroup
	)

	// Submit in reverse so every goroutine but the last has to queue.
	for seq := primitives.Sequence(n - 1); seq >= 0; seq-- {
		wg.Add(1)
		go func(seq primitives.Sequence) {
			defer wg.Done()
			err := g.Do(tid, seq, func() error {
				mu.Lock()
				order = append(order, seq)
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}(seq)
	}
	wg.Wait()

	require.Len(t, order, n)
	for i, seq := range order {
		assert.Equal(t, primitives.Sequence(i), seq)
	}
	assert.Equal(t, primitives.Sequence(n), g.Next(tid))
}

func TestOneOperationInFlight(t *testing.T) {
	g := New()
	const tid = primitives.TransactionID(4)

	var inFlight, maxInFlight int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for seq := primitives.Sequence(0); seq < 10; seq++ {
		wg.Add(1)
		go func(seq primitives.Sequence) {
			defer wg.Done()
			_ = g.Do(tid, seq, func() error {
				mu.Lock()
				inFlight++
				maxInFlight = max(maxInFlight, inFlight)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inFlight--
				mu.Unlock()
				return nil
			})
		}(seq)
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

func TestDifferentTransactionsDoNotBlockEachOther(t *testing.T) {
	g := New()

	require.NoError(t, g.Admit(1, 0))

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, g.Do(2, 0, func() error { return nil }))
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("transaction 2 was blocked by transaction 1's gate")
	}
	g.Done(1)
}

func TestFailedOperationStillAdvances(t *testing.T) {
	g := New()
	boom := errors.New("boom")

	err := g.Do(1, 0, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, primitives.Sequence(1), g.Next(1))
}

func TestStaleSequenceRejected(t *testing.T) {
	g := New()
	require.NoError(t, g.Do(1, 0, func() error { return nil }))

	err := g.Admit(1, 0)
	assert.True(t, errors.Is(err, dberror.ErrInvalidOperation))
}

func TestLaterSequenceWaits(t *testing.T) {
	g := New()
	admitted := make(chan struct{})

	go func() {
		_ = g.Admit(1, 1)
		close(admitted)
		g.Done(1)
	}()

	require.Eventually(t, func() bool { return g.Queued(1) == 1 }, time.Second, time.Millisecond)
	select {
	case <-admitted:
		t.Fatal("sequence 1 admitted before sequence 0")
	default:
	}

	require.NoError(t, g.Do(1, 0, func() error { return nil }))
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("sequence 1 never admitted")
	}
}

func TestDoneWithoutAdmitIsIgnored(t *testing.T) {
	g := New()
	g.Done(9)
	assert.Equal(t, primitives.Sequence(0), g.Next(9))
	assert.Zero(t, g.Len())
}

func TestReadersDoNotCreateState(t *testing.T) {
	g := New()
	assert.Equal(t, primitives.BeginSequence, g.Next(4))
	assert.Zero(t, g.Queued(4))
	assert.Zero(t, g.Len())
}

func TestForgetAfterLastOperation(t *testing.T) {
	g := New()
	require.NoError(t, g.Do(1, 0, func() error { return nil }))
	require.NoError(t, g.Do(1, 1, func() error { return nil }))
	require.Equal(t, 1, g.Len())

	assert.True(t, g.Forget(1))
	assert.Zero(t, g.Len())
	assert.Equal(t, primitives.BeginSequence, g.Next(1))

	require.NoError(t, g.Do(1, 0, func() error { return nil }), "a forgotten id starts over")
	assert.True(t, g.Forget(7), "unknown ids are already forgotten")
}

func TestForgetKeepsBusyState(t *testing.T) {
	g := New()
	require.NoError(t, g.Admit(1, 0))
	assert.False(t, g.Forget(1), "operation in flight")

	admitted := make(chan struct{})
	go func() {
		_ = g.Admit(1, 2)
		close(admitted)
		g.Done(1)
	}()
	require.Eventually(t, func() bool { return g.Queued(1) == 1 }, time.Second, time.Millisecond)

	g.Done(1)
	assert.False(t, g.Forget(1), "operation queued")
	assert.Equal(t, 1, g.Len())

	require.NoError(t, g.Do(1, 1, func() error { return nil }))
	select {
	case <-admitted:
	case <-time.After(time.Second):
		t.Fatal("sequence 2 never admitted")
	}
	require.Eventually(t, func() bool { return g.Forget(1) }, time.Second, time.Millisecond)
	assert.Zero(t, g.Len())
}
