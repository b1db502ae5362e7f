package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/scribemesh/scribemesh/logging"
)

// ErrQueueFull is returned by Submit when the queue is saturated. Callers
// should surface a processing error to the client rather than block the
// inbound request.
var ErrQueueFull = errors.New("pipeline queue full")

// ErrQueueClosed is returned by Submit after Close.
var ErrQueueClosed = errors.New("pipeline queue closed")

// QueueOptions configure a Queue.
type QueueOptions struct {
	// Workers is the number of goroutines draining the queue.
	Workers int
	// Depth bounds the number of pending tasks; Submit fails fast once it
	// is reached.
	Depth int
	// Logger used for lifecycle tracing. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Queue is a bounded work queue for detached orchestration passes. It
// replaces ad hoc fire-and-forget goroutines with an explicit pool that has
// a back-pressure limit and a documented cancellation policy: tasks receive
// the queue's base context, which is cancelled on Close, not the context of
// the request that enqueued them.
type Queue struct {
	tasks   chan func(ctx context.Context)
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  logging.Logger

	mu     sync.Mutex
	closed bool
}

// NewQueue starts a queue with the given worker pool.
func NewQueue(optFns ...func(o *QueueOptions)) *Queue {
	opts := QueueOptions{
		Workers: 4,
		Depth:   256,
		Logger:  logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		tasks:   make(chan func(ctx context.Context), opts.Depth),
		baseCtx: ctx,
		cancel:  cancel,
		logger:  opts.Logger,
	}
	for i := 0; i < opts.Workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for task := range q.tasks {
		select {
		case <-q.baseCtx.Done():
			return
		default:
		}
		task(q.baseCtx)
	}
}

// Submit enqueues a detached task. It never blocks: when the queue is full
// it returns ErrQueueFull immediately.
func (q *Queue) Submit(task func(ctx context.Context)) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		q.logger.Warn("pipeline queue saturated, rejecting task")
		return ErrQueueFull
	}
}

// Close stops accepting tasks, cancels the base context handed to running
// tasks and waits for the workers to exit. Pending tasks that have not
// started are dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
