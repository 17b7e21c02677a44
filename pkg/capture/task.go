package capture

import (
	"context"
	"sync"
)

// Task is one in-flight capture. It settles exactly once.
type Task struct {
	ID string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	result Result
}

func newTask(id string, cancel context.CancelFunc) *Task {
	return &Task{
		ID:     id,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// settle records r. Only the first call has an effect.
func (t *Task) settle(r Result) bool {
	settled := false
	t.once.Do(func() {
		t.result = r
		settled = true
		close(t.done)
	})
	return settled
}

// Done is closed once the task has settled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel asks the capture to stop. The task still settles, as cancelled.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until the task settles or ctx ends.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Result returns the settled result and whether the task has settled.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}
