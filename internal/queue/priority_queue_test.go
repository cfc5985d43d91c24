package queue

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"simon/internal/task"
)

func TestPriorityQueue_PopsLowestPriorityFirst(t *testing.T) {
	q := NewPriorityQueue()
	low := task.New("echo low", 0, "low", nil)
	high := task.New("echo high", 5, "high", nil)
	mid := task.New("echo mid", 2, "mid", nil)

	if err := q.Add(high, 5); err != nil {
		t.Fatalf("Add high: %v", err)
	}
	if err := q.Add(low, 0); err != nil {
		t.Fatalf("Add low: %v", err)
	}
	if err := q.Add(mid, 2); err != nil {
		t.Fatalf("Add mid: %v", err)
	}

	order := []*task.Task{low, mid, high}
	for i, want := range order {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop %d: %v", i, err)
		}
		if !got.Equal(want) {
			t.Fatalf("Pop %d = %v, want %v", i, got, want)
		}
	}
}

func TestPriorityQueue_FIFOWithinPriority(t *testing.T) {
	q := NewPriorityQueue()
	first := task.New("echo first", 1, "first", nil)
	second := task.New("echo second", 1, "second", nil)
	third := task.New("echo third", 1, "third", nil)
	for _, tk := range []*task.Task{first, second, third} {
		if err := q.Add(tk, 1); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	for i, want := range []*task.Task{first, second, third} {
		got, err := q.Pop()
		if err != nil {
			t.Fatalf("Pop %d: %v", i, err)
		}
		if !got.Equal(want) {
			t.Fatalf("Pop %d = %v, want %v (FIFO within a priority bucket violated)", i, got, want)
		}
	}
}

func TestPriorityQueue_PopEmptyReturnsErrEmpty(t *testing.T) {
	q := NewPriorityQueue()
	if _, err := q.Pop(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("got %v, want ErrEmpty", err)
	}
}

func TestPriorityQueue_RejectsNegativePriority(t *testing.T) {
	q := NewPriorityQueue()
	if err := q.Add(task.New("echo x", -1, "x", nil), -1); err == nil {
		t.Fatalf("expected error for negative priority")
	}
}

func TestPriorityQueue_LenAndEmpty(t *testing.T) {
	q := NewPriorityQueue()
	require.True(t, q.Empty())
	require.Equal(t, 0, q.Len())

	require.NoError(t, q.Add(task.New("echo x", 0, "x", nil), 0))
	require.False(t, q.Empty())
	require.Equal(t, 1, q.Len())

	_, err := q.Pop()
	require.NoError(t, err)
	require.True(t, q.Empty())
	require.Equal(t, 0, q.Len())
}

func TestPriorityQueue_BucketRemovedWhenDrained(t *testing.T) {
	q := NewPriorityQueue()
	_ = q.Add(task.New("echo a", 3, "a", nil), 3)
	_, _ = q.Pop()
	_ = q.Add(task.New("echo b", 1, "b", nil), 1)
	got, err := q.Pop()
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if got.Command != "echo b" {
		t.Fatalf("expected drained priority bucket to not resurface, got %v", got)
	}
}
