// Package batch runs detection over many sessions in parallel with a
// wall-clock deadline.
//
// The deadline is advisory. When it passes, Run returns with TimedOut set
// while unfinished tasks keep running in the background; their results are
// still applied to their sessions when they complete.
package batch

import (
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/colony-counter-mcp/internal/apperr"
	"github.com/ironsheep/colony-counter-mcp/internal/detection"
	"github.com/ironsheep/colony-counter-mcp/internal/logger"
)

// Task is one unit of batch work, typically a *session.Session.
type Task interface {
	Detect(p detection.Params) error
	Source() string
}

// Progress is called with the number of finished tasks, starting at zero
// and increasing by one per completion. It runs on the caller's goroutine.
type Progress func(completed, total int)

// TaskFailure records a task that returned an error or panicked.
type TaskFailure struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Err    error  `json:"-"`
}

func (f TaskFailure) Error() string {
	return fmt.Sprintf("%s: %v", f.Source, f.Err)
}

func (f TaskFailure) Unwrap() error { return f.Err }

// Result summarises one batch.
type Result struct {
	ID        string        `json:"id"`
	Total     int           `json:"total"`
	Completed int           `json:"completed"`
	TimedOut  bool          `json:"timed_out"`
	Failures  []TaskFailure `json:"failures"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Err combines all failures into one error, or nil when there were none.
func (r Result) Err() error {
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, apperr.TaskFailure(f.Source, f.Err))
	}
	return err
}

// Coordinator runs batches on a bounded pool of goroutines.
type Coordinator struct {
	workers int
}

// NewCoordinator creates a coordinator running at most workers tasks at
// once. workers <= 0 selects runtime.NumCPU().
func NewCoordinator(workers int) *Coordinator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Coordinator{workers: workers}
}

// Workers is the pool size.
func (c *Coordinator) Workers() int { return c.workers }

type outcome struct {
	index  int
	source string
	err    error
}

// Run calls Detect(p) on every task and waits until all of them finished
// or timeout elapsed, whichever comes first. A timeout <= 0 starts the tasks
// and returns immediately with TimedOut set. A failing task never stops the
// others. progress may be nil.
func (c *Coordinator) Run(tasks []Task, p detection.Params, timeout time.Duration, progress Progress) Result {
	start := time.Now()
	res := Result{
		ID:       uuid.NewString(),
		Total:    len(tasks),
		Failures: []TaskFailure{},
	}
	log := logger.WithFields(logrus.Fields{"batch": res.ID, "total": res.Total})

	if progress != nil {
		progress(0, res.Total)
	}
	if len(tasks) == 0 {
		return res
	}

	// Buffered so tasks finishing after Run returned never block.
	outcomes := make(chan outcome, len(tasks))

	go func() {
		var g errgroup.Group
		g.SetLimit(c.workers)
		for i, t := range tasks {
			i, t := i, t
			g.Go(func() error {
				outcomes <- runTask(i, t, p)
				return nil
			})
		}
		_ = g.Wait()
	}()

	record := func(o outcome) {
		res.Completed++
		if o.err != nil {
			res.Failures = append(res.Failures, TaskFailure{Index: o.index, Source: o.source, Err: o.err})
			log.WithField("source", o.source).WithError(o.err).Error("Batch task failed")
		}
		if progress != nil {
			progress(res.Completed, res.Total)
		}
	}

	// drain counts whatever already finished, without waiting.
	drain := func() {
		for res.Completed < res.Total {
			select {
			case o := <-outcomes:
				record(o)
			default:
				return
			}
		}
	}
	timedOut := func() Result {
		res.TimedOut = true
		res.Elapsed = time.Since(start)
		log.WithField("completed", res.Completed).Warn("Batch timed out, remaining tasks continue in background")
		return res
	}

	if timeout <= 0 {
		drain()
		return timedOut()
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for res.Completed < res.Total {
		select {
		case o := <-outcomes:
			record(o)
		case <-timer.C:
			drain()
			if res.Completed < res.Total {
				return timedOut()
			}
		}
	}

	res.Elapsed = time.Since(start)
	log.WithFields(logrus.Fields{
		"completed": res.Completed,
		"failures":  len(res.Failures),
		"elapsed":   res.Elapsed,
	}).Info("Batch complete")
	return res
}

// runTask converts a panic into a failure so one bad image cannot take the
// process down.
func runTask(index int, t Task, p detection.Params) (o outcome) {
	o.index = index
	o.source = t.Source()
	defer func() {
		if r := recover(); r != nil {
			o.err = fmt.Errorf("panic: %v", r)
		}
	}()
	o.err = t.Detect(p)
	return o
}
