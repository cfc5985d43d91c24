package queue

import (
	"context"

	"github.com/sirupsen/logrus"

	"simon/internal/task"
)

// TaskQueue is a bounded-concurrency scheduler: it keeps up to Capacity
// Tasks running at once and drains completed ones.
//
// Concurrency model:
//   - The queue itself is single-threaded cooperative: Update() is only
//     ever called from the Driver's own goroutine, never concurrently
//     with itself. Parallelism comes entirely from the external
//     processes each running Task spawns, not from goroutines owned by
//     the queue.
//   - There is no separate processor goroutine because a Task's Run()
//     already returns immediately and reaps itself in the background.
type TaskQueue struct {
	Capacity int

	pending *PriorityQueue
	running []*task.Task

	log *logrus.Entry
}

// New constructs a TaskQueue with the given concurrency cap.
func New(capacity int, log *logrus.Entry) *TaskQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &TaskQueue{
		Capacity: capacity,
		pending:  NewPriorityQueue(),
		log:      log,
	}
}

// Add enqueues tasks by their own priority and immediately attempts to
// promote pending work into the running set.
func (q *TaskQueue) Add(ctx context.Context, tasks ...*task.Task) error {
	for _, t := range tasks {
		if q.alreadyTracked(t) {
			continue
		}
		if err := q.pending.Add(t, t.Priority); err != nil {
			return err
		}
	}
	return q.Update(ctx)
}

// alreadyTracked reports whether t (by command identity) is already
// running or pending, so a redundant Plan() call doesn't double-submit
// the same work within one process lifetime.
func (q *TaskQueue) alreadyTracked(t *task.Task) bool {
	for _, r := range q.running {
		if r.Equal(t) {
			return true
		}
	}
	for _, p := range q.pending.Tasks() {
		if p.Equal(t) {
			return true
		}
	}
	return false
}

// Update drains any running tasks that have completed, then promotes
// pending tasks (by priority, FIFO within a priority) into the running
// set until it reaches Capacity.
func (q *TaskQueue) Update(ctx context.Context) error {
	stillRunning := q.running[:0:0]
	for _, t := range q.running {
		if !t.IsComplete() {
			stillRunning = append(stillRunning, t)
			continue
		}
		if t.WasSuccessful() == task.Failure {
			t.LogFailure(q.log)
		}
	}
	q.running = stillRunning

	for len(q.running) < q.Capacity && !q.pending.Empty() {
		t, err := q.pending.Pop()
		if err != nil {
			break
		}
		if err := t.Run(ctx); err != nil {
			q.log.WithField("task", t.String()).WithError(err).Warn("failed to start task")
			continue
		}
		q.running = append(q.running, t)
	}
	return nil
}

// Len reports the total number of tasks tracked, running plus pending.
func (q *TaskQueue) Len() int { return len(q.running) + q.pending.Len() }

// Running returns the tasks currently running, for inspection.
func (q *TaskQueue) Running() []*task.Task {
	out := make([]*task.Task, len(q.running))
	copy(out, q.running)
	return out
}
