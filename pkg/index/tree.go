// Package index provides an in-memory, priority-ordered store for tasks,
// backed by a height-balanced (AVL) binary search tree. It supports:
//   - Insertion with last-write-wins semantics for duplicate priorities
//   - Exact-key lookup, minimum and maximum
//   - Inclusive range queries and full in-order traversal
//   - Deletion with successor replacement
//   - Aggregate statistics with an independent balance self-check
//
// Every operation runs in O(log n) except traversal, range collection and
// statistics, which are linear in the result or tree size.
//
// The Tree type is the main entry point. All operations are safe for
// concurrent use: mutations take an exclusive lock for the full structural
// change (including rebalancing), reads share a reader lock. No caller can
// ever observe a partially rotated tree.
package index

import (
	"sync"

	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

// Tree is a height-balanced binary search tree keyed by task priority.
// The zero value is not usable; create instances with New.
//
// The tree exclusively owns its node hierarchy. Internal nodes are never
// exposed; queries return the stored *tasks.Task values directly.
type Tree struct {
	mu    sync.RWMutex
	root  *node
	count int
}

// New creates an empty tree.
func New() *Tree {
	return &Tree{}
}

// Insert adds t to the index keyed by t.Priority, rebalancing as needed.
// If a task with the same priority is already present, its payload is
// overwritten in place (the node and subtree shape are unchanged and no
// rotation runs).
//
// Returns ErrNilTask when t is nil; the check runs before the lock is
// taken, so a rejected call never touches the tree.
func (tr *Tree) Insert(t *tasks.Task) error {
	if t == nil {
		return ErrNilTask
	}

	tr.mu.Lock()
	defer tr.mu.Unlock()

	var replaced bool
	tr.root = insert(tr.root, t, &replaced)
	if !replaced {
		tr.count++
	}
	return nil
}

// Search returns the task stored under the given priority. The second
// return value reports whether a match was found; an absent key is an
// expected outcome, not an error.
func (tr *Tree) Search(priority int) (*tasks.Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	n := tr.root
	for n != nil {
		switch {
		case priority < n.task.Priority:
			n = n.left
		case priority > n.task.Priority:
			n = n.right
		default:
			return n.task, true
		}
	}
	return nil, false
}

// Minimum returns the task with the smallest priority, or (nil, false) on
// an empty tree.
func (tr *Tree) Minimum() (*tasks.Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.root == nil {
		return nil, false
	}
	return minNode(tr.root).task, true
}

// Maximum returns the task with the largest priority, or (nil, false) on
// an empty tree.
func (tr *Tree) Maximum() (*tasks.Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if tr.root == nil {
		return nil, false
	}
	return maxNode(tr.root).task, true
}

// RangeQuery returns all tasks with priority in [min, max], inclusive, in
// ascending priority order. Branches that cannot contain a match are
// pruned, so the cost is O(log n + k) for k results.
//
// Returns ErrInvalidRange when min > max; the check runs before the lock
// is taken. An empty result is not an error.
func (tr *Tree) RangeQuery(min, max int) ([]*tasks.Task, error) {
	if min > max {
		return nil, ErrInvalidRange
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]*tasks.Task, 0)
	collectRange(tr.root, min, max, &out)
	return out, nil
}

// InOrderTraversal returns every task in ascending priority order. The
// walk uses an explicit stack rather than call recursion, so traversal
// depth does not depend on the goroutine stack even for adversarial
// shapes.
//
// The returned slice is a fresh snapshot taken under the lock;
// re-querying after concurrent mutation produces a new consistent view.
func (tr *Tree) InOrderTraversal() []*tasks.Task {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	out := make([]*tasks.Task, 0, tr.count)
	stack := make([]*node, 0, height(tr.root))
	cur := tr.root
	for cur != nil || len(stack) > 0 {
		for cur != nil {
			stack = append(stack, cur)
			cur = cur.left
		}
		cur = stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, cur.task)
		cur = cur.right
	}
	return out
}

// Delete removes the task stored under the given priority and rebalances
// every ancestor on the way back to the root. It reports whether a match
// existed; deleting an absent key is a no-op, not an error.
func (tr *Tree) Delete(priority int) bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	var removed bool
	tr.root = remove(tr.root, priority, &removed)
	if removed {
		tr.count--
	}
	return removed
}

// Len returns the number of tasks currently stored.
func (tr *Tree) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return tr.count
}

// Reset drops the entire node hierarchy atomically. Concurrent readers
// either see the old tree or the empty one, never an intermediate state.
func (tr *Tree) Reset() {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.root = nil
	tr.count = 0
}
