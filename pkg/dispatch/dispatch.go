// Package dispatch drains the priority index and executes tasks. It is the
// task-execution pipeline sitting on top of the index:
//
//   - A single feeder goroutine claims the lowest-priority-value task from
//     the index (lower value = higher precedence) and moves it into an
//     in-memory binary-heap staging queue.
//   - A pool of worker goroutines pops staged tasks and runs them through
//     the configured handler.
//   - Failed tasks are re-inserted into the index after an exponential
//     backoff (2^retry * base) until MaxRetries is exhausted, then marked
//     failed for good.
//
// Status transitions (Pending -> InProgress -> Done/Failed) happen here;
// the index never touches task status.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/logger"
	"github.com/guido-cesarano/taskindex/pkg/pqueue"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

// Prometheus metrics for monitoring task processing.
var (
	// tasksProcessed tracks the total number of processed tasks by outcome.
	// Labels:
	//   - status: "success", "retry", or "failed"
	tasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskindex_processed_total",
		Help: "The total number of processed tasks",
	}, []string{"status"})

	// taskDuration tracks handler execution latency in seconds.
	taskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "taskindex_task_duration_seconds",
		Help:    "Duration of task processing",
		Buckets: prometheus.DefBuckets,
	})

	// indexDepth tracks the number of tasks currently in the index.
	indexDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskindex_index_depth",
		Help: "Number of tasks in the priority index",
	})

	// indexHeight tracks the current tree height, which should stay within
	// ~1.44*log2(n+1) if rebalancing is working.
	indexHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskindex_index_height",
		Help: "Height of the priority index tree",
	})

	// stagingDepth tracks the number of tasks waiting in the heap between
	// the feeder and the workers.
	stagingDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "taskindex_staging_depth",
		Help: "Number of tasks in the dispatcher staging heap",
	})
)

// Handler processes a single task. A non-nil error schedules a retry (or a
// permanent failure once retries are exhausted).
type Handler func(ctx context.Context, t *tasks.Task) error

// Options configures a Dispatcher.
type Options struct {
	// Workers is the number of concurrent handler goroutines. Minimum 1.
	Workers int

	// MaxRetries is how many times a failing task is retried before being
	// marked failed.
	MaxRetries int

	// RetryBase is the base delay for exponential backoff.
	RetryBase time.Duration

	// PollInterval is how often the feeder checks the index when it is
	// empty. Defaults to 50ms.
	PollInterval time.Duration
}

// Dispatcher pulls tasks out of the index and executes them.
type Dispatcher struct {
	idx     *index.Tree
	staging *pqueue.Queue
	handler Handler
	opts    Options

	// retries tracks in-flight backoff timers so Run can wait for them
	// during shutdown instead of leaking re-inserts into a dead index.
	retries sync.WaitGroup
}

// New creates a dispatcher over the given index. The handler is invoked
// once per claimed task from one of the worker goroutines.
func New(idx *index.Tree, handler Handler, opts Options) *Dispatcher {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 50 * time.Millisecond
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = 100 * time.Millisecond
	}
	return &Dispatcher{
		idx:     idx,
		staging: pqueue.New(),
		handler: handler,
		opts:    opts,
	}
}

// Run starts the feeder, the worker pool and the metrics collector, and
// blocks until ctx is cancelled and every in-flight task and retry timer
// has settled.
func (d *Dispatcher) Run(ctx context.Context) {
	log := logger.For("dispatch")
	log.Info().Int("workers", d.opts.Workers).Msg("Dispatcher started")

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.feed(ctx)
	}()

	for i := 0; i < d.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.work(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.collectMetrics(ctx)
	}()

	wg.Wait()
	d.retries.Wait()
	log.Info().Msg("Dispatcher stopped")
}

// feed claims tasks from the index and stages them for the workers. It is
// the only goroutine that deletes from the index on the claim path, so a
// claimed task is removed exactly once.
func (d *Dispatcher) feed(ctx context.Context) {
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				min, ok := d.idx.Minimum()
				if !ok {
					break
				}
				if !d.idx.Delete(min.Priority) {
					break
				}
				if err := d.staging.Push(min); err != nil {
					// Only possible with a nil task, which the index
					// never stores.
					log := logger.For("dispatch")
					log.Error().Err(err).Msg("Failed to stage task")
				}
			}
		}
	}
}

// work pops staged tasks and executes them until the context ends.
func (d *Dispatcher) work(ctx context.Context) {
	log := logger.For("dispatch")
	ticker := time.NewTicker(d.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				t, ok := d.staging.Pop()
				if !ok {
					break
				}
				d.process(ctx, t, log)
			}
		}
	}
}

// process runs one task through the handler and applies the outcome:
// success marks it done, failure schedules a retry or marks it failed.
func (d *Dispatcher) process(ctx context.Context, t *tasks.Task, log zerolog.Logger) {
	t.Status = tasks.StatusInProgress

	start := time.Now()
	err := d.handler(ctx, t)
	taskDuration.Observe(time.Since(start).Seconds())

	if err == nil {
		t.Status = tasks.StatusDone
		tasksProcessed.WithLabelValues("success").Inc()
		return
	}

	log.Error().Err(err).
		Str("task_id", t.ID).
		Int("priority", t.Priority).
		Int("retry_count", t.RetryCount).
		Msg("Task failed")

	if t.RetryCount >= d.opts.MaxRetries {
		t.Status = tasks.StatusFailed
		tasksProcessed.WithLabelValues("failed").Inc()
		return
	}

	t.RetryCount++
	t.Status = tasks.StatusPending
	tasksProcessed.WithLabelValues("retry").Inc()

	// Exponential backoff: 2^retry * base. The task goes back through the
	// index, so a newer task submitted at the same priority in the
	// meantime wins (last-write-wins contract).
	backoff := time.Duration(1<<t.RetryCount) * d.opts.RetryBase
	d.retries.Add(1)
	timer := time.AfterFunc(backoff, func() {
		defer d.retries.Done()
		if err := d.idx.Insert(t); err != nil {
			log.Error().Err(err).Str("task_id", t.ID).Msg("Failed to re-insert task for retry")
		}
	})

	// Drop the timer on shutdown so Run does not hang on d.retries.Wait.
	go func() {
		<-ctx.Done()
		if timer.Stop() {
			d.retries.Done()
		}
	}()
}

// collectMetrics refreshes the index gauges on a fixed interval.
func (d *Dispatcher) collectMetrics(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := d.idx.Statistics()
			indexDepth.Set(float64(s.Count))
			indexHeight.Set(float64(s.Height))
			stagingDepth.Set(float64(d.staging.Len()))
		}
	}
}
