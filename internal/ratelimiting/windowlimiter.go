package ratelimiting

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

// ErrDeadlineTooSoon is returned when waiting for a slot would not leave enough
// time before the context deadline to complete the operation.
var ErrDeadlineTooSoon = errors.New("deadline too soon to wait for a request slot")

// WindowLimiter allows at most `limit` operations to finish within any `window`.
type WindowLimiter struct {
	limit     int
	window    time.Duration
	nowFunc   func() time.Time
	afterFunc func(time.Duration) <-chan time.Time

	availableSlots   chan struct{}
	finishedRequests []time.Time
	mutex            sync.Mutex
}

func NewWindowLimiter(
	limit int,
	window time.Duration,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) *WindowLimiter {
	availableSlots := make(chan struct{}, limit)
	for range limit {
		availableSlots <- struct{}{}
	}

	// No finished requests within the window -> no waiting for the first requests
	finishedRequests := make([]time.Time, limit)
	veryOldTime := nowFunc().Add(-window)
	for i := range limit {
		finishedRequests[i] = veryOldTime
	}

	return &WindowLimiter{
		limit:     limit,
		window:    window,
		nowFunc:   nowFunc,
		afterFunc: afterFunc,

		availableSlots:   availableSlots,
		finishedRequests: finishedRequests,
	}
}

func insertSortedOrder(arr []time.Time, t time.Time) []time.Time {
	i, _ := slices.BinarySearchFunc(arr, t, func(a, b time.Time) int {
		return a.Compare(b)
	})
	return slices.Insert(arr, i, t)
}

// Limit waits for a free slot and runs operation.
//
// Returns the context error if ctx is done while waiting, or ErrDeadlineTooSoon
// if the wait plus maxOperationTime would overrun the context deadline.
func (l *WindowLimiter) Limit(ctx context.Context, maxOperationTime time.Duration, operation func(ctx context.Context)) error {
	select {
	case <-l.availableSlots:
		defer func() {
			l.availableSlots <- struct{}{}
		}()
	case <-ctx.Done():
		return ctx.Err()
	}

	oldestRequest, err := l.grabOldestFinishedRequest(ctx, maxOperationTime)
	if err != nil {
		return err
	}
	// Put back what we grabbed unless the operation runs and finishes
	requestToInsert := oldestRequest
	defer func() {
		l.insertFinishedRequest(requestToInsert)
	}()

	if wait := l.computeWait(oldestRequest); wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.afterFunc(wait):
		}
	}

	operation(ctx)

	requestToInsert = l.nowFunc()
	return nil
}

func (l *WindowLimiter) computeWait(oldRequest time.Time) time.Duration {
	return l.window - l.nowFunc().Sub(oldRequest)
}

func (l *WindowLimiter) insertFinishedRequest(finishedRequest time.Time) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.finishedRequests = insertSortedOrder(l.finishedRequests, finishedRequest)
}

func (l *WindowLimiter) grabOldestFinishedRequest(ctx context.Context, maxOperationTime time.Duration) (time.Time, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	oldestRequest := l.finishedRequests[0]

	if deadline, ok := ctx.Deadline(); ok {
		wait := max(l.computeWait(oldestRequest), 0)
		untilDeadline := deadline.Sub(l.nowFunc())
		if wait+maxOperationTime > untilDeadline {
			return time.Time{}, fmt.Errorf("%w: need %s, have %s", ErrDeadlineTooSoon, wait+maxOperationTime, untilDeadline)
		}
	}

	l.finishedRequests = l.finishedRequests[1:]
	return oldestRequest, nil
}
