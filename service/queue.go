package service

import (
	"context"
	"errors"
	"sync"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"adbfleet/adb"
)

// DefaultQueueSize is the number of dispatches that may wait in a Queue.
const DefaultQueueSize = 100

var (
	ErrQueueFull   = errors.New("dispatch queue full")
	ErrQueueClosed = errors.New("dispatch queue closed")
)

type job struct {
	cmd     adb.Command
	targets []string
}

// Queue runs fleet dispatches in the background, one at a time, for callers
// that do not wait for the result. Results reach them through the
// dispatcher's observers.
type Queue struct {
	dispatcher *Dispatcher
	jobs       chan job
	logger     log.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func NewQueue(d *Dispatcher, size int, logger log.Logger) *Queue {
	if size < 1 {
		size = DefaultQueueSize
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Queue{
		dispatcher: d,
		jobs:       make(chan job, size),
		logger:     log.With(logger, "component", "queue"),
		done:       make(chan struct{}),
	}
}

// Enqueue schedules cmd for targets. It never blocks: a full queue returns
// ErrQueueFull.
func (q *Queue) Enqueue(cmd adb.Command, targets []string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job{cmd: cmd, targets: copyStrings(targets)}:
		level.Debug(q.logger).Log("msg", "queued", "cmd", cmd.String(), "pending", len(q.jobs))
		return nil
	default:
		return ErrQueueFull
	}
}

// Run processes queued dispatches until ctx is done or Close is called and
// the queue is drained.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q.jobs:
			if !ok {
				return
			}
			if _, err := q.dispatcher.Dispatch(ctx, j.cmd, j.targets); err != nil {
				level.Warn(q.logger).Log("msg", "queued dispatch failed", "cmd", j.cmd.String(), "err", err)
			}
		}
	}
}

// Close stops accepting dispatches and waits for Run to drain the queue.
// Run must have been started.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()
	<-q.done
}

// Pending returns the number of dispatches waiting to run.
func (q *Queue) Pending() int {
	return len(q.jobs)
}
