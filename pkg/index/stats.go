package index

// Stats is an aggregate snapshot of the tree, intended for diagnostics
// rather than hot-path use.
type Stats struct {
	// Count is the number of tasks stored.
	Count int `json:"count"`

	// Height is the height of the tree (0 for empty, 1 for a single node).
	Height int `json:"height"`

	// Balanced reports whether every node satisfies the AVL invariant.
	// It is re-derived by walking the whole tree and recomputing subtree
	// heights from scratch, not read from the cached values, so it works
	// as an independent self-check. It is always true in a correct build.
	Balanced bool `json:"balanced"`

	// MinPriority and MaxPriority are the smallest and largest keys
	// currently present. They are only meaningful when HasTasks is true.
	MinPriority int `json:"min_priority"`
	MaxPriority int `json:"max_priority"`

	// HasTasks distinguishes an empty tree from one whose extreme
	// priorities happen to be zero.
	HasTasks bool `json:"has_tasks"`
}

// Statistics walks the whole tree and returns an aggregate snapshot.
// O(n); the walk runs under the reader lock, so the snapshot is
// consistent.
func (tr *Tree) Statistics() Stats {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	s := Stats{Count: tr.count}
	h, balanced := verify(tr.root)
	s.Height = h
	s.Balanced = balanced

	if tr.root != nil {
		s.HasTasks = true
		s.MinPriority = minNode(tr.root).task.Priority
		s.MaxPriority = maxNode(tr.root).task.Priority
	}
	return s
}
