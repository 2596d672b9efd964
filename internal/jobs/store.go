package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"foodsafe-backend/internal/analysis"
)

type entry struct {
	job     Job
	claimed bool
}

// Store holds jobs in memory and is safe for concurrent use. Every read
// returns a copy, so callers never observe a job mid-mutation.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*entry)}
}

// Create stores a new pending job.
func (s *Store) Create(job Job) error {
	if job.ID == "" {
		return errors.New("job id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	job.Status = StatusPending
	s.jobs[job.ID] = &entry{job: job.clone()}
	return nil
}

// Remove deletes a job that was never handed to a worker.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return e.job.clone(), true
}

// Claim moves a pending job to processing. It succeeds at most once per job;
// later claims, or claims on a job that already failed, return false.
func (s *Store) Claim(id string, now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.claimed || e.job.Status != StatusPending {
		return Job{}, false
	}
	e.claimed = true
	e.job.Status = StatusProcessing
	started := now
	e.job.StartedAt = &started
	return e.job.clone(), true
}

// Complete records a result on a processing job.
func (s *Store) Complete(id string, res analysis.AnalysisResult, now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status != StatusProcessing {
		return Job{}, false
	}
	stored := res.Clone()
	completed := now
	e.job.Status = StatusCompleted
	e.job.Result = &stored
	e.job.CompletedAt = &completed
	return e.job.clone(), true
}

// Fail records an error on a pending or processing job. A pending job passes
// through processing so StartedAt and CompletedAt are both set; it can no
// longer be claimed afterwards.
func (s *Store) Fail(id, code, message string, now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status.Terminal() {
		return Job{}, false
	}
	if e.job.Status == StatusPending {
		e.claimed = true
		started := now
		e.job.StartedAt = &started
	}
	completed := now
	e.job.Status = StatusFailed
	e.job.Result = nil
	e.job.Error = message
	e.job.ErrorCode = code
	e.job.CompletedAt = &completed
	return e.job.clone(), true
}

// EvictCompletedBefore removes terminal jobs whose CompletedAt is before
// cutoff and returns how many were removed.
func (s *Store) EvictCompletedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.jobs {
		if !e.job.Status.Terminal() || e.job.CompletedAt == nil {
			continue
		}
		if e.job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			evicted++
		}
	}
	return evicted
}

// Stats counts jobs by status.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st Stats
	for _, e := range s.jobs {
		switch e.job.Status {
		case StatusPending:
			st.Pending++
		case StatusProcessing:
			st.Processing++
		case StatusCompleted:
			st.Completed++
		case StatusFailed:
			st.Failed++
		}
	}
	return st
}
