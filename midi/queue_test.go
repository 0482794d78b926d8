package midi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	require.True(t, q.Empty())
	require.False(t, q.Full())

	for i := uint64(1); i <= 3; i++ {
		q.Put(Event{Absolute: i})
	}
	require.Equal(t, 3, q.Len())

	for i := uint64(1); i <= 3; i++ {
		e, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, i, e.Absolute)
	}
	_, ok := q.Get()
	require.False(t, ok)
	require.True(t, q.Empty())
}

func TestQueueOverwritesOldest(t *testing.T) {
	t.Parallel()

	const capacity = QueueSize
	for _, extra := range []int{1, 5, capacity, 3*capacity + 7} {
		q := NewQueue(capacity)
		total := capacity + extra
		for i := 0; i < total; i++ {
			q.Put(Event{Absolute: uint64(i)})
			require.LessOrEqual(t, q.Len(), capacity)
		}
		require.True(t, q.Full())

		for i := total - capacity; i < total; i++ {
			e, ok := q.Get()
			require.True(t, ok)
			require.Equal(t, uint64(i), e.Absolute)
		}
		require.True(t, q.Empty())
	}
}

func TestQueueInterleaved(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	q.Put(Event{Absolute: 1})
	q.Put(Event{Absolute: 2})
	e, _ := q.Get()
	require.Equal(t, uint64(1), e.Absolute)

	q.Put(Event{Absolute: 3})
	q.Put(Event{Absolute: 4})
	q.Put(Event{Absolute: 5}) // evicts 2

	var got []uint64
	for !q.Empty() {
		e, _ := q.Get()
		got = append(got, e.Absolute)
	}
	assert.Equal(t, []uint64{3, 4, 5}, got)
}

func TestQueueClear(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	q.Put(Event{Absolute: 1})
	q.Put(Event{Absolute: 2})
	q.Clear()
	require.True(t, q.Empty())
	require.Equal(t, 2, q.Cap())

	q.Put(Event{Absolute: 9})
	e, ok := q.Get()
	require.True(t, ok)
	require.Equal(t, uint64(9), e.Absolute)
}
