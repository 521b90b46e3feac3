package index

import "errors"

var (
	// ErrNilTask is returned by Insert when the task is nil. It is
	// detected before the tree lock is taken, so a failed call never
	// touches the structure.
	ErrNilTask = errors.New("index: nil task")

	// ErrInvalidRange is returned by RangeQuery when min > max.
	ErrInvalidRange = errors.New("index: invalid range (min > max)")
)
