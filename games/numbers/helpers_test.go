package numbers

import (
	"testing"
	"time"
)

// queueSource returns queued values in order, then zeroes.
type queueSource struct {
	values []int
	calls  int
}

func (q *queueSource) Intn(n int) int {
	q.calls++
	if len(q.values) == 0 {
		return 0
	}

	v := q.values[0]
	q.values = q.values[1:]

	return v % n
}

func (q *queueSource) queue(values ...int) {
	q.values = append(q.values, values...)
}

func receive[T any](t *testing.T, ch chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}

	var zero T
	return zero
}

func expectNothing[T any](t *testing.T, ch chan T) {
	t.Helper()

	select {
	case v := <-ch:
		t.Fatalf("unexpected value: %v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
