// Package queue serializes inference requests against the single active
// model. A lone worker goroutine drains a bounded FIFO channel, so requests
// are processed strictly in submission order and at most one inference is in
// flight at any instant. Per-request failures are isolated: a request that
// cannot be served rejects alone while the worker moves on.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/ksuid"
)

// Defaults applied when corresponding Options fields are unset.
const (
	defaultMaxDepth = 32
	defaultMaxWait  = 30 * time.Second
)

// Manager is the slice of the lifecycle manager the queue needs.
type Manager interface {
	EnsureReady(ctx context.Context) error
	Remove(ctx context.Context, payload []byte, mime string) ([]byte, error)
}

// Options tunes queue construction.
type Options struct {
	// MaxDepth bounds the number of pending requests.
	MaxDepth int
	// MaxWait bounds how long Submit waits for a queue slot before the
	// request is rejected as too busy.
	MaxWait time.Duration
	// BaseContext, when set, cancels in-flight work on process shutdown.
	// A caller abandoning its own context does not cancel admitted work.
	BaseContext context.Context
	Logger      *zerolog.Logger
}

// Result is a completed inference.
type Result struct {
	// RequestID was assigned at enqueue time.
	RequestID string
	// Seq is the monotonically increasing sequence number of the request.
	Seq uint64
	// Data is the processed image payload.
	Data []byte
}

type outcome struct {
	data []byte
	err  error
}

type request struct {
	id       string
	seq      uint64
	payload  []byte
	mime     string
	resultCh chan outcome
}

// Queue owns the pending request sequence and the worker draining it.
type Queue struct {
	mgr     Manager
	reqCh   chan *request
	stopCh  chan struct{}
	doneCh  chan struct{}
	maxWait time.Duration
	baseCtx context.Context

	seq       atomic.Uint64
	processed atomic.Uint64
	inflight  atomic.Bool

	closeOnce sync.Once
	log       zerolog.Logger
}

// New constructs a Queue and starts its worker.
func New(mgr Manager, opts Options) *Queue {
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = defaultMaxDepth
	}
	wait := opts.MaxWait
	if wait <= 0 {
		wait = defaultMaxWait
	}
	base := opts.BaseContext
	if base == nil {
		base = context.Background()
	}
	q := &Queue{
		mgr:     mgr,
		reqCh:   make(chan *request, depth),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		maxWait: wait,
		baseCtx: base,
	}
	if opts.Logger != nil {
		q.log = *opts.Logger
	} else {
		q.log = zerolog.Nop()
	}
	go q.worker()
	return q
}

// Submit enqueues one image payload and blocks until its result is
// delivered. Requests are admitted in FIFO order; when the queue is full for
// longer than the configured wait, the request is rejected as too busy
// without affecting other requests.
func (q *Queue) Submit(ctx context.Context, payload []byte, mime string) (Result, error) {
	req := &request{
		id:       ksuid.New().String(),
		seq:      q.seq.Add(1),
		payload:  payload,
		mime:     mime,
		resultCh: make(chan outcome, 1),
	}

	select {
	case <-q.stopCh:
		return Result{}, errQueueClosed{}
	default:
	}

	timer := time.NewTimer(q.maxWait)
	defer timer.Stop()
	select {
	case q.reqCh <- req:
		queueWaiting.Inc()
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-q.stopCh:
		return Result{}, errQueueClosed{}
	case <-timer.C:
		requestsTotal.WithLabelValues("rejected_busy").Inc()
		return Result{}, tooBusyError{}
	}

	// The request is admitted; abandoning the caller context leaves the
	// worker to finish it on its own (the result channel is buffered).
	select {
	case out := <-req.resultCh:
		if out.err != nil {
			return Result{}, out.err
		}
		return Result{RequestID: req.id, Seq: req.seq, Data: out.data}, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case <-q.doneCh:
		// Worker exited; the request was either finished, drained, or
		// raced past the final drain.
		select {
		case out := <-req.resultCh:
			if out.err != nil {
				return Result{}, out.err
			}
			return Result{RequestID: req.id, Seq: req.seq, Data: out.data}, nil
		default:
			return Result{}, errQueueClosed{}
		}
	}
}

// worker drains the pending sequence strictly in FIFO order. It never
// reorders or batches, so completion order matches submission order and only
// one decoded image is held in the runtime at a time.
func (q *Queue) worker() {
	defer close(q.doneCh)
	for {
		select {
		case <-q.stopCh:
			q.rejectPending()
			return
		case req := <-q.reqCh:
			queueWaiting.Dec()
			q.run(req)
		}
	}
}

func (q *Queue) run(req *request) {
	q.inflight.Store(true)
	defer q.inflight.Store(false)
	defer q.processed.Add(1)

	start := time.Now()
	if err := q.mgr.EnsureReady(q.baseCtx); err != nil {
		// One failing request must not stall the queue.
		q.log.Warn().Str("request_id", req.id).Uint64("seq", req.seq).
			Err(err).Msg("request rejected: model not ready")
		requestsTotal.WithLabelValues("rejected_init").Inc()
		req.resultCh <- outcome{err: err}
		return
	}

	data, err := q.mgr.Remove(q.baseCtx, req.payload, req.mime)
	dur := time.Since(start)
	inferenceDuration.Observe(dur.Seconds())
	if err != nil {
		q.log.Warn().Str("request_id", req.id).Uint64("seq", req.seq).
			Dur("dur", dur).Err(err).Msg("inference failed")
		requestsTotal.WithLabelValues("rejected_inference").Inc()
		req.resultCh <- outcome{err: err}
		return
	}
	q.log.Debug().Str("request_id", req.id).Uint64("seq", req.seq).
		Dur("dur", dur).Int("bytes", len(data)).Msg("inference done")
	requestsTotal.WithLabelValues("resolved").Inc()
	req.resultCh <- outcome{data: data}
}

// rejectPending fails whatever was admitted but never started.
func (q *Queue) rejectPending() {
	for {
		select {
		case req := <-q.reqCh:
			queueWaiting.Dec()
			req.resultCh <- outcome{err: errQueueClosed{}}
		default:
			return
		}
	}
}

// Stats is a read-only view of the queue used by /status.
type Stats struct {
	Len       int
	Inflight  bool
	MaxDepth  int
	Processed uint64
}

// Stats never blocks.
func (q *Queue) Stats() Stats {
	return Stats{
		Len:       len(q.reqCh),
		Inflight:  q.inflight.Load(),
		MaxDepth:  cap(q.reqCh),
		Processed: q.processed.Load(),
	}
}

// Close stops admission and the worker. Pending requests that never started
// are rejected; the in-flight one finishes on its own.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		close(q.stopCh)
		<-q.doneCh
	})
}
