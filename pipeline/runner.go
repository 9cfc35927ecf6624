package pipeline

import (
	"context"
	"sync"
)

// Runner owns the ordering guarantee for one session: chunk n+1 does not
// enter transcription until chunk n's result has been emitted or dropped.
// Each session gets its own runner, so unrelated sessions never serialize
// behind one slow pipeline run.
type Runner struct {
	orch *Orchestrator
	jobs chan Job
	emit func(Result)

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

// NewRunner starts a runner draining a bounded chunk queue. Emitted
// results are handed to emit in submission order.
func (o *Orchestrator) NewRunner(queueSize int, emit func(Result)) *Runner {
	if queueSize < 1 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		orch:   o,
		jobs:   make(chan Job, queueSize),
		emit:   emit,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Runner) run() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			return
		case job := <-r.jobs:
			result, ok := r.orch.Process(r.ctx, job)
			if !ok {
				continue
			}
			// The session may have closed while the adapters ran; a
			// result for a closed session is discarded, not emitted.
			if r.ctx.Err() != nil {
				return
			}
			r.emit(result)
		}
	}
}

// Submit enqueues a chunk without blocking. False means the queue is
// full and the chunk was dropped.
func (r *Runner) Submit(job Job) bool {
	select {
	case <-r.ctx.Done():
		return false
	default:
	}
	select {
	case r.jobs <- job:
		return true
	default:
		return false
	}
}

// Close cancels queued-but-not-started chunks and stops the runner. Safe
// to call more than once.
func (r *Runner) Close() {
	r.closeOnce.Do(r.cancel)
}

// Done is closed when the runner goroutine has exited.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
