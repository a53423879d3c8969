package camera

import (
	"container/heap"
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Priority orders commands within a camera's dispatch queue. HIGH covers
// latency-sensitive PTZ/LED/query traffic; LOW covers background
// reconnection probing, so a burst of one never starves the other
// (SPEC_FULL.md §4.6). Grounded on the teacher's nest.CommandQueue
// container/heap + rate.Limiter pairing.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

type ticket struct {
	priority Priority
	seq      int64 // insertion order, for FIFO within a priority
	execute  func() error
	result   chan error
}

type ticketHeap []*ticket

func (h ticketHeap) Len() int { return len(h) }
func (h ticketHeap) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority // HIGH first
	}
	return h[i].seq < h[j].seq
}
func (h ticketHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *ticketHeap) Push(x any)   { *h = append(*h, x.(*ticket)) }
func (h *ticketHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

const (
	commandQueueRate  = 10 // commands/sec to a single camera
	commandQueueBurst = 3
)

// CommandQueue serializes control/query dispatch to one camera, so PTZ/LED
// commands from MQTT cannot race each other or starve the supervisor's own
// reconnection probing.
type CommandQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	heap    ticketHeap
	nextSeq int64
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCommandQueue starts a worker goroutine draining the priority heap.
func NewCommandQueue(ctx context.Context) *CommandQueue {
	qctx, cancel := context.WithCancel(ctx)
	q := &CommandQueue{
		limiter: rate.NewLimiter(commandQueueRate, commandQueueBurst),
		ctx:     qctx,
		cancel:  cancel,
	}
	q.cond = sync.NewCond(&q.mu)
	q.wg.Add(1)
	go q.workerLoop()
	go func() {
		<-qctx.Done()
		q.cond.Broadcast()
	}()
	return q
}

// Submit enqueues fn at the given priority and blocks until it has run (or
// the context is cancelled / the queue is closed).
func (q *CommandQueue) Submit(ctx context.Context, priority Priority, fn func() error) error {
	q.mu.Lock()
	t := &ticket{priority: priority, seq: q.nextSeq, execute: fn, result: make(chan error, 1)}
	q.nextSeq++
	heap.Push(&q.heap, t)
	q.mu.Unlock()
	q.cond.Signal()

	select {
	case err := <-t.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-q.ctx.Done():
		return q.ctx.Err()
	}
}

func (q *CommandQueue) workerLoop() {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		for q.heap.Len() == 0 {
			if q.ctx.Err() != nil {
				q.mu.Unlock()
				return
			}
			q.cond.Wait()
		}
		t := heap.Pop(&q.heap).(*ticket)
		q.mu.Unlock()

		if err := q.limiter.Wait(q.ctx); err != nil {
			t.result <- err
			continue
		}
		t.result <- t.execute()
	}
}

// Close stops the worker loop and wakes anyone blocked in Submit.
func (q *CommandQueue) Close() {
	q.cancel()
	q.cond.Broadcast()
	q.wg.Wait()
}
