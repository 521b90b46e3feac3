package dispatch

import (
	"github.com/robfig/cron/v3"

	"github.com/guido-cesarano/taskindex/pkg/index"
	"github.com/guido-cesarano/taskindex/pkg/logger"
	"github.com/guido-cesarano/taskindex/pkg/tasks"
)

// Scheduler inserts recurring tasks into the index on a cron schedule.
// Each firing constructs a fresh task (new UUID, new timestamp) from the
// registered template, so runs are individually trackable.
type Scheduler struct {
	c   *cron.Cron
	idx *index.Tree
}

// NewScheduler creates a scheduler over the given index. Cron specs use
// the standard five-field syntax plus the @every shorthand.
func NewScheduler(idx *index.Tree) *Scheduler {
	return &Scheduler{
		c:   cron.New(),
		idx: idx,
	}
}

// Add registers a recurring task. Every firing inserts a fresh pending
// task with the given priority and description; if a task already sits at
// that priority the usual last-write-wins overwrite applies.
func (s *Scheduler) Add(spec string, priority int, description string) (cron.EntryID, error) {
	log := logger.For("scheduler")
	return s.c.AddFunc(spec, func() {
		t := tasks.New(priority, description)
		if err := s.idx.Insert(t); err != nil {
			log.Error().Err(err).Str("spec", spec).Msg("Failed to insert scheduled task")
			return
		}
		log.Info().
			Str("task_id", t.ID).
			Int("priority", priority).
			Str("spec", spec).
			Msg("Scheduled task inserted")
	})
}

// Start begins firing registered entries in a background goroutine.
func (s *Scheduler) Start() {
	s.c.Start()
}

// Stop halts the scheduler. Entries already firing run to completion.
func (s *Scheduler) Stop() {
	s.c.Stop()
}
