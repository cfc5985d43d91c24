package queue

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"simon/internal/task"
)

func newTestLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func TestTaskQueue_RespectsCapacity(t *testing.T) {
	q := New(2, newTestLogger())
	ctx := context.Background()
	// Distinct commands so the queue's dedup-by-command doesn't collapse them.
	tasks := []*task.Task{
		task.New("sleep 1 # a", 0, "a", nil),
		task.New("sleep 1 # b", 0, "b", nil),
		task.New("sleep 1 # c", 0, "c", nil),
	}
	if err := q.Add(ctx, tasks...); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := len(q.Running()); got != 2 {
		t.Fatalf("running = %d, want 2 (capacity)", got)
	}
	if q.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 total tracked", q.Len())
	}
}

func TestTaskQueue_PromotesPendingAsSlotsFree(t *testing.T) {
	q := New(1, newTestLogger())
	ctx := context.Background()
	first := task.New("true", 0, "first", nil)
	second := task.New("true", 0, "second", nil)
	if err := q.Add(ctx, first); err != nil {
		t.Fatalf("Add first: %v", err)
	}
	// second has a distinct command so it isn't deduped against first.
	second.Command = "true # second"
	if err := q.Add(ctx, second); err != nil {
		t.Fatalf("Add second: %v", err)
	}
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}

	for i := 0; i < 100 && len(q.Running()) > 0 && q.Running()[0] == first; i++ {
		time.Sleep(10 * time.Millisecond)
		_ = q.Update(ctx)
	}

	found := false
	for _, r := range q.Running() {
		if r.Equal(second) {
			found = true
		}
	}
	if !found && q.Len() != 0 {
		t.Fatalf("expected second task to eventually be promoted into the running set")
	}
}

func TestTaskQueue_DedupesByCommand(t *testing.T) {
	q := New(4, newTestLogger())
	ctx := context.Background()
	a := task.New("echo dup", 0, "a", nil)
	b := task.New("echo dup", 0, "b", nil)
	if err := q.Add(ctx, a); err != nil {
		t.Fatalf("Add a: %v", err)
	}
	if err := q.Add(ctx, b); err != nil {
		t.Fatalf("Add b: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after adding a duplicate command", q.Len())
	}
}
