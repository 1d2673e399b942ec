package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mesh-intelligence/scribo/pkg/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestFIFO(t *testing.T) {
	q := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Push(fmt.Sprintf("p%d", i)))
	}
	assert.Equal(t, 5, q.Len())

	for i := 0; i < 5; i++ {
		got, ok := q.Pop(context.Background())
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("p%d", i), got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestPopWaitsForPush(t *testing.T) {
	q := New()
	got := make(chan string)
	go func() {
		p, _ := q.Pop(context.Background())
		got <- p
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push("late")

	select {
	case p := <-got:
		assert.Equal(t, "late", p)
	case <-time.After(2 * time.Second):
		t.Fatal("pop did not wake up")
	}
}

func TestPopHonoursContext(t *testing.T) {
	q := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestCloseDrains(t *testing.T) {
	q := New()
	q.Push("a")
	q.Push("b")
	q.Close()
	q.Close()

	assert.ErrorIs(t, q.Push("c"), types.ErrQueueClosed, "closed queue must refuse pushes")

	p, ok := q.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, "a", p)
	p, ok = q.Pop(context.Background())
	require.True(t, ok)
	assert.Equal(t, "b", p)

	_, ok = q.Pop(context.Background())
	assert.False(t, ok)
}

func TestCloseWakesWaiters(t *testing.T) {
	q := New()
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok := q.Pop(context.Background())
			assert.False(t, ok)
		}()
	}
	time.Sleep(20 * time.Millisecond)
	q.Close()
	wg.Wait()
}

func TestBurstWithConcurrentConsumers(t *testing.T) {
	q := New()
	const n = 200

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				p, ok := q.Pop(context.Background())
				if !ok {
					return
				}
				mu.Lock()
				seen[p]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < n; i++ {
		q.Push(fmt.Sprintf("p%03d", i))
	}
	q.Close()
	wg.Wait()

	assert.Len(t, seen, n)
	for p, count := range seen {
		assert.Equal(t, 1, count, "%s delivered more than once", p)
	}
}
