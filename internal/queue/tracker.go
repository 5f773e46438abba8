package queue

import (
	"sort"
	"sync"
	"time"
)

// Tracker maps job ids to their latest snapshot for status lookup.
// Entries remain until an explicit Remove or, if ttl is non-zero, a
// periodic sweep evicts ones completed longer than ttl ago — the
// default is ttl=0, retain until service restart.
type Tracker struct {
	mu     sync.Mutex
	jobs   map[string]Job
	ttl    time.Duration
	stopCh chan struct{}
}

// NewTracker returns a Tracker. If ttl is non-zero, a background
// sweep goroutine evicts jobs whose CompletedAt is older than ttl;
// Queued/Processing jobs are never swept regardless of ttl.
func NewTracker(ttl time.Duration) *Tracker {
	t := &Tracker{
		jobs:   make(map[string]Job),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	if ttl > 0 {
		go t.sweepLoop()
	}
	return t
}

func (t *Tracker) put(job Job) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.jobs[job.ID] = job
}

// Get returns a snapshot of the job named by id.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	j, ok := t.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return j, nil
}

// Recent returns up to limit jobs ordered by ReceivedAt, most recent
// first. It is O(n log n) in the number of tracked jobs, fine for the
// tracker's expected size (a running service's in-flight plus
// recently-completed jobs, not a historical archive).
func (t *Tracker) Recent(limit int) []Job {
	t.mu.Lock()
	jobs := make([]Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		jobs = append(jobs, j)
	}
	t.mu.Unlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].ReceivedAt.After(jobs[j].ReceivedAt)
	})
	if limit < len(jobs) {
		jobs = jobs[:limit]
	}
	return jobs
}

// Remove deletes a job's entry, for callers implementing an explicit
// removal policy on top of the default indefinite retention.
func (t *Tracker) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.jobs, id)
}

// Close stops the sweep goroutine, if one was started.
func (t *Tracker) Close() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
}

func (t *Tracker) sweepLoop() {
	ticker := time.NewTicker(t.ttl / 4)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweep()
		}
	}
}

func (t *Tracker) sweep() {
	cutoff := time.Now().Add(-t.ttl)
	t.mu.Lock()
	defer t.mu.Unlock()
	for id, j := range t.jobs {
		if j.Status == StatusCompleted || j.Status == StatusFailed {
			if j.CompletedAt.Before(cutoff) {
				delete(t.jobs, id)
			}
		}
	}
}
