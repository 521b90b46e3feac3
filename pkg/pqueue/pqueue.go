// Package pqueue provides an array-backed binary min-heap of tasks ordered
// by priority. It is the dispatcher's staging area for work drained from
// the index: cheap to fill in batches, cheap to pop from the top.
//
// Unlike the index it allows duplicate priorities; ties are broken by
// insertion order so equal-priority tasks come out FIFO.
package pqueue

import (
	"container/heap"
	"errors"
	"sync"

	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

// ErrNilTask is returned when a nil task is pushed.
var ErrNilTask = errors.New("pqueue: nil task")

type item struct {
	task *tasks.Task
	seq  int64
}

// items implements heap.Interface as a min-heap on (priority, seq).
type items []item

func (h items) Len() int { return len(h) }

func (h items) Less(i, j int) bool {
	if h[i].task.Priority != h[j].task.Priority {
		return h[i].task.Priority < h[j].task.Priority
	}
	return h[i].seq < h[j].seq
}

func (h items) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *items) Push(x any) { *h = append(*h, x.(item)) }

func (h *items) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = item{}
	*h = old[:n-1]
	return it
}

// Queue is a concurrency-safe binary-heap priority queue.
// The zero value is not usable; create instances with New.
type Queue struct {
	mu   sync.Mutex
	heap items
	seq  int64
}

// New creates an empty queue.
func New() *Queue {
	return &Queue{}
}

// Push adds a single task. Returns ErrNilTask for nil input.
func (q *Queue) Push(t *tasks.Task) error {
	if t == nil {
		return ErrNilTask
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.push(t)
	return nil
}

// PushBatch adds all given tasks under a single lock acquisition.
// If any task is nil the whole batch is rejected and nothing is added.
func (q *Queue) PushBatch(ts []*tasks.Task) error {
	for _, t := range ts {
		if t == nil {
			return ErrNilTask
		}
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range ts {
		q.push(t)
	}
	return nil
}

func (q *Queue) push(t *tasks.Task) {
	q.seq++
	heap.Push(&q.heap, item{task: t, seq: q.seq})
}

// Pop removes and returns the lowest-priority-value task, or (nil, false)
// when the queue is empty.
func (q *Queue) Pop() (*tasks.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, false
	}
	it := heap.Pop(&q.heap).(item)
	return it.task, true
}

// Peek returns the lowest-priority-value task without removing it.
func (q *Queue) Peek() (*tasks.Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return nil, false
	}
	return q.heap[0].task, true
}

// Len returns the number of queued tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Drain removes and returns every task in ascending priority order
// (FIFO within equal priorities), leaving the queue empty.
func (q *Queue) Drain() []*tasks.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*tasks.Task, 0, len(q.heap))
	for len(q.heap) > 0 {
		it := heap.Pop(&q.heap).(item)
		out = append(out, it.task)
	}
	return out
}

// Stats is an aggregate snapshot of the queue.
type Stats struct {
	Count       int  `json:"count"`
	MinPriority int  `json:"min_priority"`
	MaxPriority int  `json:"max_priority"`
	HasTasks    bool `json:"has_tasks"`
}

// Statistics scans the backing array and returns an aggregate snapshot.
// The minimum is the heap top; the maximum requires the O(n) scan.
func (q *Queue) Statistics() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{Count: len(q.heap)}
	if len(q.heap) == 0 {
		return s
	}
	s.HasTasks = true
	s.MinPriority = q.heap[0].task.Priority
	s.MaxPriority = q.heap[0].task.Priority
	for _, it := range q.heap[1:] {
		if it.task.Priority > s.MaxPriority {
			s.MaxPriority = it.task.Priority
		}
	}
	return s
}
