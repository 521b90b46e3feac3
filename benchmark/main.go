// Package main provides a benchmark tool for the TaskIndex priority store.
// It measures concurrent insert throughput, checks the resulting tree
// height against the AVL bound, and times range queries and traversal.
//
// Usage:
//
//	go run benchmark/main.go -tasks 100000 -workers 10
package main

import (
	"flag"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

func main() {
	numTasks := flag.Int("tasks", 100000, "Number of tasks to insert")
	numWorkers := flag.Int("workers", 10, "Number of concurrent inserters")
	numQueries := flag.Int("queries", 10000, "Number of range queries to run")
	flag.Parse()

	idx := index.New()

	fmt.Printf("TaskIndex Benchmark\n")
	fmt.Printf("===================\n")
	fmt.Printf("Tasks to insert: %d\n", *numTasks)
	fmt.Printf("Concurrent workers: %d\n\n", *numWorkers)

	// Insert phase: each worker owns a disjoint key range, inserted in
	// ascending order. Sequential keys are the worst case for a plain
	// BST, so this doubles as a rebalancing stress test.
	fmt.Printf("Starting insert phase...\n")
	startInsert := time.Now()

	var wg sync.WaitGroup
	var inserted atomic.Int64
	tasksPerWorker := *numTasks / *numWorkers

	for i := 0; i < *numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			base := workerID * tasksPerWorker
			for j := 0; j < tasksPerWorker; j++ {
				t := tasks.New(base+j, fmt.Sprintf("benchmark-%d-%d", workerID, j))
				if err := idx.Insert(t); err != nil {
					fmt.Printf("Error inserting: %v\n", err)
					return
				}
				inserted.Add(1)
			}
		}(i)
	}

	wg.Wait()
	insertTime := time.Since(startInsert)

	fmt.Printf("✓ Inserted %d tasks in %s\n", inserted.Load(), insertTime)
	fmt.Printf("  Throughput: %.2f inserts/sec\n\n", float64(inserted.Load())/insertTime.Seconds())

	// Shape check: height must stay within the AVL bound.
	stats := idx.Statistics()
	bound := 1.44 * math.Log2(float64(stats.Count+1))
	fmt.Printf("Tree shape\n")
	fmt.Printf("  Nodes:    %d\n", stats.Count)
	fmt.Printf("  Height:   %d (AVL bound %.1f; a plain BST would reach %d)\n", stats.Height, bound, tasksPerWorker)
	fmt.Printf("  Balanced: %v\n\n", stats.Balanced)

	// Query phase: fixed-width range scans across the key space.
	fmt.Printf("Starting query phase (%d range queries)...\n", *numQueries)
	width := *numTasks / 100
	startQuery := time.Now()
	var results int64
	for i := 0; i < *numQueries; i++ {
		lo := (i * 37) % (*numTasks - width)
		ts, err := idx.RangeQuery(lo, lo+width)
		if err != nil {
			fmt.Printf("Error querying: %v\n", err)
			return
		}
		results += int64(len(ts))
	}
	queryTime := time.Since(startQuery)

	fmt.Printf("✓ Ran %d range queries in %s (%d tasks returned)\n", *numQueries, queryTime, results)
	fmt.Printf("  Throughput: %.2f queries/sec\n\n", float64(*numQueries)/queryTime.Seconds())

	// Traversal phase: full ordered snapshots.
	startScan := time.Now()
	all := idx.InOrderTraversal()
	scanTime := time.Since(startScan)
	fmt.Printf("✓ Full in-order traversal of %d tasks in %s\n", len(all), scanTime)

	totalTime := insertTime + queryTime + scanTime
	fmt.Printf("\nTotal time: %s\n", totalTime)
}
