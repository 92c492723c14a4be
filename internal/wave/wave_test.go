package wave

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRunAllTasks(t *testing.T) {
	var count atomic.Int64
	tasks := make([]Task, 37)
	for i := range tasks {
		tasks[i] = func() error {
			count.Add(1)
			return nil
		}
	}
	if err := Run(tasks, 4); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if count.Load() != 37 {
		t.Errorf("expected 37 tasks to run, got %d", count.Load())
	}
}

func TestRunWaveBound(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func() error {
			mu.Lock()
			running++
			peak = max(peak, running)
			mu.Unlock()

			mu.Lock()
			running--
			mu.Unlock()
			return nil
		}
	}
	if err := Run(tasks, 3); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if peak > 3 {
		t.Errorf("expected at most 3 concurrent tasks, saw %d", peak)
	}
}

func TestRunStopsAfterFailingWave(t *testing.T) {
	errBoom := errors.New("boom")
	var count atomic.Int64
	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func() error {
			count.Add(1)
			if i == 1 || i == 2 {
				return errBoom
			}
			return nil
		}
	}
	err := Run(tasks, 4)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected joined errBoom, got %v", err)
	}
	// The first wave (tasks 0-3) drains completely; later waves never start.
	if count.Load() != 4 {
		t.Errorf("expected exactly one wave of 4 tasks, got %d", count.Load())
	}
	if msg := err.Error(); !strings.Contains(msg, "task 1: boom") || !strings.Contains(msg, "task 2: boom") {
		t.Errorf("expected both failures of the wave, got %q", msg)
	}
}

func TestRunRecoversPanics(t *testing.T) {
	tasks := []Task{
		func() error { panic("bad task") },
		func() error { return nil },
	}
	if err := Run(tasks, 0); err == nil {
		t.Fatal("expected an error from a panicking task")
	}
}

func TestWorkers(t *testing.T) {
	if Workers() < MinWorkers {
		t.Errorf("Workers() = %d, below minimum %d", Workers(), MinWorkers)
	}
}
