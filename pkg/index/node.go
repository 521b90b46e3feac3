package index

import "github.com/guido-cesarano/taskindex/pkg/tasks"

// node is a single tree node. It owns exactly one task and its two child
// subtrees; nodes are never shared and never escape the package.
//
// height is cached: an empty subtree has height 0, a leaf has height 1.
// Rotations and the insert/delete unwind paths keep it current.
type node struct {
	task   *tasks.Task
	left   *node
	right  *node
	height int
}

// height returns the cached height of n, treating nil as the empty subtree.
func height(n *node) int {
	if n == nil {
		return 0
	}
	return n.height
}

// balance returns the balance factor of n: height(left) - height(right).
// The AVL invariant requires this to stay within [-1, 1] for every node.
func balance(n *node) int {
	if n == nil {
		return 0
	}
	return height(n.left) - height(n.right)
}

// recalc recomputes n's cached height from its children.
func (n *node) recalc() {
	n.height = 1 + max(height(n.left), height(n.right))
}

// rotateRight performs a single right rotation around n and returns the new
// subtree root (n's former left child). Ownership of the transferred subtree
// moves between the two nodes; nothing is copied.
//
//	      n                l
//	     / \              / \
//	    l   c    ->      a   n
//	   / \                  / \
//	  a   b                b   c
func rotateRight(n *node) *node {
	l := n.left
	n.left = l.right
	l.right = n
	n.recalc()
	l.recalc()
	return l
}

// rotateLeft is the mirror of rotateRight.
func rotateLeft(n *node) *node {
	r := n.right
	n.right = r.left
	r.left = n
	n.recalc()
	r.recalc()
	return r
}

// minNode returns the leftmost node of the subtree rooted at n.
// n must be non-nil.
func minNode(n *node) *node {
	for n.left != nil {
		n = n.left
	}
	return n
}

// maxNode returns the rightmost node of the subtree rooted at n.
// n must be non-nil.
func maxNode(n *node) *node {
	for n.right != nil {
		n = n.right
	}
	return n
}

// insert adds t to the subtree rooted at n and returns the new subtree root.
// If a node with the same priority already exists its payload is replaced in
// place (replaced is set, the shape is untouched and no rotation runs).
//
// On the unwind path each ancestor recomputes its height and, when the
// balance factor leaves [-1, 1], applies one of the four AVL cases. The case
// is chosen by comparing the inserted key against the child key, which is
// cheaper than re-deriving grandchild balance factors and is deterministic:
// the key that caused the imbalance fully determines the rotation.
func insert(n *node, t *tasks.Task, replaced *bool) *node {
	if n == nil {
		return &node{task: t, height: 1}
	}

	key := t.Priority
	switch {
	case key < n.task.Priority:
		n.left = insert(n.left, t, replaced)
	case key > n.task.Priority:
		n.right = insert(n.right, t, replaced)
	default:
		// Duplicate priority: overwrite the payload, keep the node.
		n.task = t
		*replaced = true
		return n
	}

	n.recalc()
	bf := balance(n)

	// Left-Left: single right rotation
	if bf > 1 && key < n.left.task.Priority {
		return rotateRight(n)
	}
	// Right-Right: single left rotation
	if bf < -1 && key > n.right.task.Priority {
		return rotateLeft(n)
	}
	// Left-Right: rotate the left child left, then this node right
	if bf > 1 && key > n.left.task.Priority {
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	}
	// Right-Left: rotate the right child right, then this node left
	if bf < -1 && key < n.right.task.Priority {
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}

	return n
}

// remove deletes the node with the given priority from the subtree rooted at
// n and returns the new subtree root. removed is set when a match was found.
//
// A node with at most one child is spliced out directly. A node with two
// children takes over the payload of its in-order successor (the minimum of
// the right subtree), and the successor node is deleted instead.
//
// Unlike insert, the rebalancing case on the unwind path is keyed off the
// balance factors of the node's current children rather than the deleted
// key: the direction a deletion tips a subtree in is not inferable from the
// key that was removed.
func remove(n *node, priority int, removed *bool) *node {
	if n == nil {
		return nil
	}

	switch {
	case priority < n.task.Priority:
		n.left = remove(n.left, priority, removed)
	case priority > n.task.Priority:
		n.right = remove(n.right, priority, removed)
	default:
		*removed = true
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		succ := minNode(n.right)
		n.task = succ.task
		var inner bool
		n.right = remove(n.right, succ.task.Priority, &inner)
	}

	n.recalc()
	bf := balance(n)

	// Left-heavy
	if bf > 1 {
		if balance(n.left) >= 0 {
			return rotateRight(n)
		}
		n.left = rotateLeft(n.left)
		return rotateRight(n)
	}
	// Right-heavy
	if bf < -1 {
		if balance(n.right) <= 0 {
			return rotateLeft(n)
		}
		n.right = rotateRight(n.right)
		return rotateLeft(n)
	}

	return n
}

// collectRange walks the subtree in order, pruning branches that cannot
// contain keys in [min, max], and appends matching tasks to out.
func collectRange(n *node, min, max int, out *[]*tasks.Task) {
	if n == nil {
		return
	}
	if min < n.task.Priority {
		collectRange(n.left, min, max, out)
	}
	if min <= n.task.Priority && n.task.Priority <= max {
		*out = append(*out, n.task)
	}
	if max > n.task.Priority {
		collectRange(n.right, min, max, out)
	}
}

// verify recomputes the height of the subtree rooted at n from scratch and
// reports whether every node satisfies the AVL invariant. It deliberately
// ignores the cached heights so it can be used as an independent self-check.
func verify(n *node) (h int, balanced bool) {
	if n == nil {
		return 0, true
	}
	lh, lok := verify(n.left)
	rh, rok := verify(n.right)
	h = 1 + max(lh, rh)
	if !lok || !rok {
		return h, false
	}
	diff := lh - rh
	return h, diff >= -1 && diff <= 1
}
