package lane

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLane_ReceiptOrderWithinSession(t *testing.T) {
	var mu sync.Mutex
	var seen []int

	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, payload any) {
			// Slow handler so queued items pile up behind it.
			time.Sleep(5 * time.Millisecond)
			mu.Lock()
			seen = append(seen, payload.(int))
			mu.Unlock()
		},
	})
	defer m.Stop()

	ctx := context.Background()
	var dones []<-chan struct{}
	for i := 0; i < 10; i++ {
		done, err := m.Submit(ctx, "telegram:1", i)
		require.NoError(t, err)
		dones = append(dones, done)
	}
	for _, done := range dones {
		<-done
	}

	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
}

func TestLane_NoOverlapWithinSession(t *testing.T) {
	var mu sync.Mutex
	inFlight := 0
	maxInFlight := 0

	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, _ any) {
			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			inFlight--
			mu.Unlock()
		},
	})
	defer m.Stop()

	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.SubmitWait(ctx, "same:chat", "msg"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
}

func TestLane_SessionsRunConcurrently(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})

	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, sessionKey string, _ any) {
			started <- sessionKey
			<-release
		},
	})
	defer m.Stop()

	ctx := context.Background()
	_, err := m.Submit(ctx, "telegram:a", "x")
	require.NoError(t, err)
	_, err = m.Submit(ctx, "telegram:b", "y")
	require.NoError(t, err)

	// Both handlers run at once despite neither having finished.
	keys := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case k := <-started:
			keys[k] = true
		case <-time.After(2 * time.Second):
			t.Fatal("handlers did not start concurrently")
		}
	}
	close(release)
	assert.True(t, keys["telegram:a"])
	assert.True(t, keys["telegram:b"])
}

func TestLane_HandlerPanicDoesNotKillLane(t *testing.T) {
	calls := 0
	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, payload any) {
			calls++
			if payload == "boom" {
				panic("boom")
			}
		},
	})
	defer m.Stop()

	ctx := context.Background()
	require.NoError(t, m.SubmitWait(ctx, "s", "boom"))
	require.NoError(t, m.SubmitWait(ctx, "s", "fine"))
	assert.Equal(t, 2, calls)
}

func TestLane_SubmitCancelled(t *testing.T) {
	block := make(chan struct{})
	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, _ any) { <-block },
	})
	defer m.Stop()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.SubmitWait(ctx, "s", "x")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLane_IdleWorkerExpires(t *testing.T) {
	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, _ any) {},
		IdleTTL: 20 * time.Millisecond,
	})
	defer m.Stop()

	require.NoError(t, m.SubmitWait(context.Background(), "s", "x"))
	assert.Equal(t, 1, m.Stats()["total"])

	assert.Eventually(t, func() bool {
		return m.Stats()["total"] == 0
	}, time.Second, 10*time.Millisecond)

	// A new message after expiry recreates the lane.
	require.NoError(t, m.SubmitWait(context.Background(), "s", "y"))
}

func TestLane_SubmitAcrossExpiryBoundary(t *testing.T) {
	// Submits timed to land right as the idle timer fires must never be
	// dropped: every one gets processed and its done channel closed.
	var processed atomic.Int64
	m := NewManager(ManagerConfig{
		Handler: func(_ context.Context, _ string, _ any) { processed.Add(1) },
		IdleTTL: time.Millisecond,
	})
	defer m.Stop()

	const n = 200
	for i := 0; i < n; i++ {
		done, err := m.Submit(context.Background(), "chat", i)
		require.NoError(t, err)
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d was dropped", i)
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, int64(n), processed.Load())
}
