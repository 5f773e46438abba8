// Package queue implements the bounded job queue and fixed-size
// worker pool that runs the decoder pipeline for the ingestion
// service. Each worker owns exactly one decoder.Pipeline, created
// lazily and reused across jobs — the pipeline's vocoder and cipher
// state reset per capture, not per worker, so it is never shared
// across concurrently running jobs.
package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gopher2/trunk-decoder/internal/decoder"
)

// Status is a Job's lifecycle stage. Transitions are monotone:
// Queued -> Processing -> {Completed, Failed}.
type Status int

const (
	StatusQueued Status = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Job is one unit of decode work submitted to the pool.
type Job struct {
	ID               string
	InputPath        string
	MetadataBlob     string
	OutputBasePath   string
	StreamName       string
	HookScriptPath   string
	AudioFormat      string
	AudioBitrateKbps int
	ClientIP         string
	OriginalFilename string // the uploaded part's filename, if the caller supplied one

	Status      Status
	ReceivedAt  time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	ErrorReason string
}

// snapshot returns a value copy safe to hand to callers outside the
// tracker's lock.
func (j *Job) snapshot() Job {
	return *j
}

// ErrQueueFull is returned by Submit when the bounded queue is
// already at capacity. Enqueue never blocks: on full, it fails
// immediately rather than waiting for room.
var ErrQueueFull = errors.New("queue: processing queue is full")

// ErrJobNotFound is returned by Tracker.Get for an unknown job id.
var ErrJobNotFound = errors.New("queue: job not found")

// Handler runs one job to completion. The pool calls it with the
// worker's long-lived decoder.Pipeline.
type Handler func(ctx context.Context, pipeline *decoder.Pipeline, job *Job) error

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	ActiveWorkers    int
	TotalWorkers     int
	Queued           int64
	Completed        int64
	Failed           int64
	AverageProcessMs float64
}

// Pool is a bounded FIFO job queue served by a fixed set of worker
// goroutines, each owning one decoder.Pipeline for its lifetime. A
// single sync.Cond gates dequeue; Submit never blocks.
type Pool struct {
	capacity   int
	numWorkers int
	timeout    time.Duration
	handler    Handler

	mu       sync.Mutex
	cond     *sync.Cond
	jobs     []*Job
	shutdown bool

	tracker *Tracker

	wg            sync.WaitGroup
	activeWorkers int32

	queuedCount    int64
	completedCount int64
	failedCount    int64
	processNsTotal int64
	processSamples int64

	idPrefix  string
	idCounter uint64
}

// NewPool starts numWorkers goroutines, each lazily constructing its
// own decoder.Pipeline via newPipeline on its first job. capacity bounds the
// queue; jobTimeout is the per-job wall-clock deadline counted from
// started_at, 0 disables it. jobTTL bounds how long a completed or
// failed job's status stays in the tracker, 0 retains indefinitely.
func NewPool(numWorkers, capacity int, jobTimeout, jobTTL time.Duration, newPipeline func() *decoder.Pipeline, handler Handler) *Pool {
	p := &Pool{
		capacity:   capacity,
		numWorkers: numWorkers,
		timeout:    jobTimeout,
		handler:    handler,
		tracker:    NewTracker(jobTTL),
		idPrefix:   uuid.New().String()[:8],
	}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go p.runWorker(newPipeline)
	}
	return p
}

// Tracker returns the pool's job-status tracker.
func (p *Pool) Tracker() *Tracker { return p.tracker }

// nextJobID combines a per-process random prefix with a
// receive-timestamp counter, per the non-colliding id scheme.
func (p *Pool) nextJobID() string {
	n := atomic.AddUint64(&p.idCounter, 1)
	return fmt.Sprintf("%s-%d-%d", p.idPrefix, time.Now().UnixNano(), n)
}

// Submit enqueues job, assigning it an id and Queued status. It never
// blocks: if the queue is already at capacity it returns
// ErrQueueFull immediately and the caller is responsible for
// removing any temp file the job referenced.
func (p *Pool) Submit(job *Job) (string, error) {
	job.ID = p.nextJobID()
	job.Status = StatusQueued
	job.ReceivedAt = time.Now()

	p.mu.Lock()
	if len(p.jobs) >= p.capacity {
		p.mu.Unlock()
		return "", ErrQueueFull
	}
	p.jobs = append(p.jobs, job)
	atomic.AddInt64(&p.queuedCount, 1)
	p.mu.Unlock()
	p.cond.Signal()

	p.tracker.put(job.snapshot())
	return job.ID, nil
}

// dequeue blocks until a job is available or shutdown is signaled.
func (p *Pool) dequeue() (*Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.jobs) == 0 && !p.shutdown {
		p.cond.Wait()
	}
	if len(p.jobs) == 0 {
		return nil, false
	}
	job := p.jobs[0]
	p.jobs = p.jobs[1:]
	return job, true
}

func (p *Pool) runWorker(newPipeline func() *decoder.Pipeline) {
	defer p.wg.Done()
	var pipeline *decoder.Pipeline
	for {
		job, ok := p.dequeue()
		if !ok {
			return
		}
		if pipeline == nil {
			pipeline = newPipeline()
		}
		p.runJob(pipeline, job)
	}
}

func (p *Pool) runJob(pipeline *decoder.Pipeline, job *Job) {
	atomic.AddInt32(&p.activeWorkers, 1)
	defer atomic.AddInt32(&p.activeWorkers, -1)

	job.Status = StatusProcessing
	job.StartedAt = time.Now()
	p.tracker.put(job.snapshot())

	ctx := context.Background()
	var cancel context.CancelFunc
	if p.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	err := p.runWithTimeout(ctx, pipeline, job)
	elapsed := time.Since(start)
	atomic.AddInt64(&p.processNsTotal, elapsed.Nanoseconds())
	atomic.AddInt64(&p.processSamples, 1)

	job.CompletedAt = time.Now()
	if err != nil {
		job.Status = StatusFailed
		if errors.Is(err, context.DeadlineExceeded) {
			job.ErrorReason = "timeout"
		} else {
			job.ErrorReason = err.Error()
		}
		atomic.AddInt64(&p.failedCount, 1)
		log.Printf("queue: job %s failed: %v", job.ID, err)
	} else {
		job.Status = StatusCompleted
		atomic.AddInt64(&p.completedCount, 1)
	}
	p.tracker.put(job.snapshot())

	if job.InputPath != "" {
		if rmErr := os.Remove(job.InputPath); rmErr != nil && !os.IsNotExist(rmErr) {
			log.Printf("queue: failed to remove temp file %s for job %s: %v", job.InputPath, job.ID, rmErr)
		}
	}
}

// runWithTimeout runs the handler, translating context cancellation
// into the reported error. The handler is expected to cooperate with
// ctx (decoder.Pipeline.Decode checks it between frames), but even if
// it returns late, runWithTimeout still waits for it before returning:
// pipeline is the worker's long-lived decoder.Pipeline, and the worker
// reuses it for the next job the moment this call returns, so the
// handler goroutine must have actually finished touching pipeline by
// then, not merely been given up on.
func (p *Pool) runWithTimeout(ctx context.Context, pipeline *decoder.Pipeline, job *Job) error {
	done := make(chan error, 1)
	go func() {
		done <- p.handler(ctx, pipeline, job)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		<-done
		return ctx.Err()
	}
}

// Stop signals shutdown and waits for every worker to exit. dequeue
// keeps handing out whatever is still in the queue once shutdown is
// set — it only stops a worker from blocking for a job that never
// arrives — so every job already queued when Stop is called is still
// drained and processed before its worker exits.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	p.tracker.Close()
}

// Stats returns a point-in-time snapshot of pool activity.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	depth := len(p.jobs)
	p.mu.Unlock()

	samples := atomic.LoadInt64(&p.processSamples)
	var avgMs float64
	if samples > 0 {
		avgMs = float64(atomic.LoadInt64(&p.processNsTotal)) / float64(samples) / float64(time.Millisecond)
	}

	return Stats{
		QueueDepth:       depth,
		QueueCapacity:    p.capacity,
		ActiveWorkers:    int(atomic.LoadInt32(&p.activeWorkers)),
		TotalWorkers:     p.numWorkers,
		Queued:           atomic.LoadInt64(&p.queuedCount),
		Completed:        atomic.LoadInt64(&p.completedCount),
		Failed:           atomic.LoadInt64(&p.failedCount),
		AverageProcessMs: avgMs,
	}
}
