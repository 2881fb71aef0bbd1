package orchestrator

import (
	"context"
	"errors"

	"github.com/gammazero/workerpool"
)

// ErrQueueFull is returned by Submit when the task service's bounded
// queue has no room. Submissions never block.
var ErrQueueFull = errors.New("orchestrator: task queue full")

// TaskService serializes Process calls: one FIFO queue of work items
// drained by exactly one worker, so at most one Process call runs at a
// time regardless of how many callers submit concurrently.
type TaskService struct {
	pool *workerpool.WorkerPool
	slot chan struct{}
}

// NewTaskService builds a TaskService with a bounded queue of the given
// capacity (64 if capacity <= 0).
func NewTaskService(capacity int) *TaskService {
	if capacity <= 0 {
		capacity = 64
	}
	return &TaskService{
		pool: workerpool.New(1),
		slot: make(chan struct{}, capacity),
	}
}

// Submit enqueues fn to run on the single worker. It returns
// ErrQueueFull immediately, without blocking, if the queue is at
// capacity.
func (s *TaskService) Submit(fn func()) error {
	select {
	case s.slot <- struct{}{}:
	default:
		return ErrQueueFull
	}
	s.pool.Submit(func() {
		defer func() { <-s.slot }()
		fn()
	})
	return nil
}

// SubmitProcess enqueues one Orchestrator.Process call, invoking onDone
// (if non-nil) with its result once the single worker runs it.
func (s *TaskService) SubmitProcess(o *Orchestrator, ctx context.Context, query string, inputDirs []string, onDone func(ProcessResult)) error {
	return s.Submit(func() {
		result := o.Process(ctx, query, inputDirs)
		if onDone != nil {
			onDone(result)
		}
	})
}

// StopWait drains the queue and stops the worker, blocking until any
// in-flight item finishes.
func (s *TaskService) StopWait() {
	s.pool.StopWait()
}
