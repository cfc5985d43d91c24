// Package queue implements the priority-ordered, bounded-concurrency
// scheduler that drives Tasks to completion.
package queue

import (
	"container/list"
	"sort"

	"simon/internal/simerr"
	"simon/internal/task"
)

// PriorityQueue is a FIFO-within-priority, ascending-by-priority queue
// of Tasks. Lower priority numbers are popped first; among equal
// priorities, insertion order is preserved.
type PriorityQueue struct {
	buckets  map[int]*list.List
	priority []int // sorted ascending, only priorities with a non-empty bucket
}

// NewPriorityQueue constructs an empty queue.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{buckets: make(map[int]*list.List)}
}

// Add enqueues t at the given priority. Negative priorities are
// rejected.
func (q *PriorityQueue) Add(t *task.Task, priority int) error {
	if priority < 0 {
		return simerr.ErrInvalidConfiguration
	}
	bucket, ok := q.buckets[priority]
	if !ok {
		bucket = list.New()
		q.buckets[priority] = bucket
		i := sort.SearchInts(q.priority, priority)
		q.priority = append(q.priority, 0)
		copy(q.priority[i+1:], q.priority[i:])
		q.priority[i] = priority
	}
	bucket.PushBack(t)
	return nil
}

// Pop removes and returns the head of the lowest-priority-number
// non-empty bucket. Returns ErrEmpty if the queue has nothing queued.
func (q *PriorityQueue) Pop() (*task.Task, error) {
	if len(q.priority) == 0 {
		return nil, ErrEmpty
	}
	p := q.priority[0]
	bucket := q.buckets[p]
	front := bucket.Front()
	t := bucket.Remove(front).(*task.Task)
	if bucket.Len() == 0 {
		delete(q.buckets, p)
		q.priority = q.priority[1:]
	}
	return t, nil
}

// Len returns the total number of queued tasks across all priorities.
func (q *PriorityQueue) Len() int {
	n := 0
	for _, p := range q.priority {
		n += q.buckets[p].Len()
	}
	return n
}

// Empty reports whether the queue has no queued tasks.
func (q *PriorityQueue) Empty() bool { return len(q.priority) == 0 }

// Tasks returns all queued tasks in priority-then-FIFO order without
// removing them. Intended for inspection (status reporting, tests).
func (q *PriorityQueue) Tasks() []*task.Task {
	out := make([]*task.Task, 0, q.Len())
	for _, p := range q.priority {
		for e := q.buckets[p].Front(); e != nil; e = e.Next() {
			out = append(out, e.Value.(*task.Task))
		}
	}
	return out
}

// ErrEmpty is returned by Pop when the queue has nothing queued.
var ErrEmpty = simerr.Wrap(simerr.ErrNotFound, "priority queue is empty")
