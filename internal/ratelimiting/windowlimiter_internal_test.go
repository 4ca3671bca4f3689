package ratelimiting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockedTime struct {
	lock        sync.Mutex
	currentTime time.Time
	timers      []mockedTimer
}

type mockedTimer struct {
	expiresAt time.Time
	ch        chan time.Time
}

func newMockedTime(start time.Time) *mockedTime {
	return &mockedTime{currentTime: start}
}

func (m *mockedTime) Now() time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.currentTime
}

func (m *mockedTime) After(d time.Duration) <-chan time.Time {
	m.lock.Lock()
	defer m.lock.Unlock()

	ch := make(chan time.Time, 1)
	m.timers = append(m.timers, mockedTimer{expiresAt: m.currentTime.Add(d), ch: ch})
	return ch
}

func (m *mockedTime) pendingTimers() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.timers)
}

func (m *mockedTime) advance(d time.Duration) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.currentTime = m.currentTime.Add(d)

	var remaining []mockedTimer
	for _, timer := range m.timers {
		if !m.currentTime.Before(timer.expiresAt) {
			timer.ch <- m.currentTime
			close(timer.ch)
		} else {
			remaining = append(remaining, timer)
		}
	}
	m.timers = remaining
}

func TestInsertSortedOrder(t *testing.T) {
	t.Parallel()

	t1 := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, time.January, 2, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2026, time.January, 3, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		arr      []time.Time
		toInsert time.Time
		expected []time.Time
	}{
		{name: "empty", arr: []time.Time{}, toInsert: t1, expected: []time.Time{t1}},
		{name: "beginning", arr: []time.Time{t2, t3}, toInsert: t1, expected: []time.Time{t1, t2, t3}},
		{name: "middle", arr: []time.Time{t1, t3}, toInsert: t2, expected: []time.Time{t1, t2, t3}},
		{name: "end", arr: []time.Time{t1, t2}, toInsert: t3, expected: []time.Time{t1, t2, t3}},
		{name: "duplicate", arr: []time.Time{t1, t2, t3}, toInsert: t2, expected: []time.Time{t1, t2, t2, t3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, c.expected, insertSortedOrder(c.arr, c.toInsert))
		})
	}
}

func TestWindowLimiter(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)

	t.Run("requests within the limit run immediately", func(t *testing.T) {
		t.Parallel()

		mocked := newMockedTime(start)
		l := NewWindowLimiter(3, time.Minute, mocked.Now, mocked.After)

		for range 3 {
			ran := false
			err := l.Limit(t.Context(), time.Second, func(ctx context.Context) {
				ran = true
			})
			require.NoError(t, err)
			require.True(t, ran)
		}
		require.Equal(t, 0, mocked.pendingTimers())
	})

	t.Run("request over the limit waits for the window", func(t *testing.T) {
		t.Parallel()

		mocked := newMockedTime(start)
		l := NewWindowLimiter(1, time.Minute, mocked.Now, mocked.After)

		require.NoError(t, l.Limit(t.Context(), time.Second, func(ctx context.Context) {}))

		done := make(chan time.Time)
		go func() {
			err := l.Limit(context.Background(), time.Second, func(ctx context.Context) {
				done <- mocked.Now()
			})
			assert.NoError(t, err)
		}()

		require.Eventually(t, func() bool { return mocked.pendingTimers() == 1 }, time.Second, time.Millisecond)

		mocked.advance(30 * time.Second)
		select {
		case <-done:
			t.Fatal("operation ran before the window passed")
		case <-time.After(20 * time.Millisecond):
		}

		mocked.advance(30 * time.Second)
		select {
		case ranAt := <-done:
			require.Equal(t, start.Add(time.Minute), ranAt)
		case <-time.After(time.Second):
			t.Fatal("operation did not run after the window passed")
		}
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		t.Parallel()

		mocked := newMockedTime(start)
		l := NewWindowLimiter(1, time.Minute, mocked.Now, mocked.After)
		require.NoError(t, l.Limit(t.Context(), time.Second, func(ctx context.Context) {}))

		ctx, cancel := context.WithCancel(t.Context())
		errCh := make(chan error)
		go func() {
			errCh <- l.Limit(ctx, time.Second, func(ctx context.Context) {
				t.Error("operation should not run")
			})
		}()

		require.Eventually(t, func() bool { return mocked.pendingTimers() == 1 }, time.Second, time.Millisecond)
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)

		// The slot is returned, and the original finish time is kept
		mocked.advance(time.Minute)
		require.NoError(t, l.Limit(t.Context(), time.Second, func(ctx context.Context) {}))
	})

	t.Run("deadline too soon", func(t *testing.T) {
		t.Parallel()

		// The context deadline is checked against real time
		now := time.Now()
		mocked := newMockedTime(now)
		l := NewWindowLimiter(1, time.Minute, mocked.Now, mocked.After)
		require.NoError(t, l.Limit(t.Context(), time.Second, func(ctx context.Context) {}))

		ctx, cancel := context.WithDeadline(t.Context(), now.Add(10*time.Second))
		defer cancel()

		err := l.Limit(ctx, time.Second, func(ctx context.Context) {
			t.Error("operation should not run")
		})
		require.ErrorIs(t, err, ErrDeadlineTooSoon)
	})
}
