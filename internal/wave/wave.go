// Package wave runs independent tasks concurrently in bounded waves.
//
// Tasks are launched in waves no larger than the configured width. Each wave is
// fully drained before the next one starts, so a failure is observed only once the
// wave it belongs to has finished. Once a wave reports a failure no further waves
// are submitted; the failures of that wave are joined and returned.
package wave

import (
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// MinWorkers is used when the hardware concurrency cannot be determined.
const MinWorkers = 2

// Workers returns the default wave width: the number of usable CPUs, at least MinWorkers.
func Workers() int {
	n := runtime.NumCPU()
	if n < MinWorkers {
		return MinWorkers
	}
	return n
}

// Task is a unit of work. Returning a non-nil error marks the whole run as failed.
type Task func() error

// Run executes tasks in waves of at most width concurrent tasks. A width below one
// selects Workers().
func Run(tasks []Task, width int) error {
	if width < 1 {
		width = Workers()
	}
	for start := 0; start < len(tasks); start += width {
		end := min(start+width, len(tasks))

		// Every task of the wave runs to completion; Wait only signals that one failed,
		// the full set of failures is joined from errs.
		errs := make([]error, end-start)
		var g errgroup.Group
		g.SetLimit(width)
		for i := start; i < end; i++ {
			slot := i - start
			task := tasks[i]
			g.Go(func() error {
				errs[slot] = runTask(task, i)
				return errs[slot]
			})
		}
		if g.Wait() != nil {
			return errors.Join(errs...)
		}
	}
	return nil
}

// runTask calls task and converts a panic into an error so that one faulty task
// cannot take the rest of its wave down with it.
func runTask(task Task, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", i, r)
		}
	}()
	if err := task(); err != nil {
		return fmt.Errorf("task %d: %w", i, err)
	}
	return nil
}
