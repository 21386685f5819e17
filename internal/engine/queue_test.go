package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue(t *testing.T) {
	q := NewQueue(1, 2)
	q.Enqueue(3, 4)
	assert.Equal(t, 4, q.Size())

	item, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, 1, item)
	assert.Equal(t, 3, q.Size())

	assert.Equal(t, []int{2, 3, 4}, q.Drain())
	assert.Zero(t, q.Size())

	_, ok = q.Dequeue()
	assert.False(t, ok)

	q.Enqueue(5, 6)
	assert.Equal(t, 2, q.Clear())
	assert.Nil(t, q.Drain())
}

func TestQueue_ConcurrentDequeueIsExactlyOnce(t *testing.T) {
	const n = 1000
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}
	q := NewQueue(items...)

	var mu sync.Mutex
	seen := make(map[int]int, n)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, ok := q.Dequeue()
				if !ok {
					return
				}
				mu.Lock()
				seen[item]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for item, count := range seen {
		assert.Equal(t, 1, count, "item %d", item)
	}
}

func TestMailbox_PreservesSendOrder(t *testing.T) {
	mb := newMailbox[int]()
	go func() {
		for i := 0; i < 100; i++ {
			mb.send(i)
		}
	}()

	var got []int
	deadline := time.After(testTimeout)
	for len(got) < 100 {
		select {
		case <-mb.ready():
			got = append(got, mb.drain()...)
		case <-deadline:
			t.Fatalf("received %d of 100 messages", len(got))
		}
	}
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}
