package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/decoyhq/agenttrap/internal/request"
)

// Job is one queued analysis: the captured request plus the honeypot's
// already-sent response.
type Job struct {
	Meta           request.Metadata
	At             time.Time
	ResponseStatus int
	ResponseTime   time.Duration
}

// Queue decouples analysis from the HTTP response path. Capacity is fixed;
// when full, the oldest queued job is dropped so a flood degrades detection
// coverage instead of memory.
type Queue struct {
	analyzer *Analyzer
	jobs     chan Job
	timeout  time.Duration

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewQueue(a *Analyzer, size, workers int, timeout time.Duration) *Queue {
	if size < 1 {
		size = 1
	}
	if workers < 1 {
		workers = 1
	}
	q := &Queue{
		analyzer: a,
		jobs:     make(chan Job, size),
		timeout:  timeout,
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.worker()
	}
	return q
}

// Dispatch enqueues a job without ever blocking the caller. Returns false
// when the job could not be queued.
func (q *Queue) Dispatch(j Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}

	select {
	case q.jobs <- j:
		q.observeDepth()
		return true
	default:
	}

	// Full: evict the oldest job, then retry once.
	select {
	case <-q.jobs:
		q.dropped()
	default:
	}
	select {
	case q.jobs <- j:
		q.observeDepth()
		return true
	default:
		q.dropped()
		return false
	}
}

// Close stops accepting jobs and waits for in-flight analyses to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.jobs)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) worker() {
	defer q.wg.Done()
	for j := range q.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		q.analyzer.Analyze(ctx, j.Meta, j.At, j.ResponseStatus, j.ResponseTime)
		cancel()
		q.observeDepth()
	}
}

func (q *Queue) observeDepth() {
	if q.analyzer.metrics != nil {
		q.analyzer.metrics.QueueDepth.Set(float64(len(q.jobs)))
	}
}

func (q *Queue) dropped() {
	if q.analyzer.metrics != nil {
		q.analyzer.metrics.AnalysisDrops.Inc()
	}
}
