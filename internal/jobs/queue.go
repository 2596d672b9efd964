package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
	"foodsafe-backend/internal/shared/metrics"
	"foodsafe-backend/internal/shared/telemetry"
)

const (
	DefaultWorkers         = 4
	DefaultQueueSize       = 256
	DefaultRetention       = time.Hour
	DefaultCleanupInterval = 10 * time.Minute
)

// Analyzer produces the verdict for one request.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (analysis.AnalysisResult, error)
}

// Enricher adjusts a request before it is analyzed, e.g. by merging the
// owner's stored allergies and medications.
type Enricher interface {
	Enrich(ctx context.Context, req analysis.Request) (analysis.Request, error)
}

// CompletionHook is called after a job completes. Errors are logged only.
type CompletionHook func(ctx context.Context, job Job) error

// Config sizes the worker pool and retention sweep. Zero values take the
// package defaults.
type Config struct {
	Workers         int
	QueueSize       int
	Retention       time.Duration
	CleanupInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

type task struct {
	jobID     string
	requestID string
}

// Queue accepts analysis requests and runs them on a bounded worker pool.
type Queue struct {
	store    *Store
	analyzer Analyzer
	enricher Enricher
	hook     CompletionHook
	cfg      Config
	now      func() time.Time

	intake chan task

	mu      sync.Mutex
	closed  bool
	cancels map[string]context.CancelFunc
}

// Option configures a Queue.
type Option func(*Queue)

// WithEnricher sets the request enricher run at execution start.
func WithEnricher(e Enricher) Option {
	return func(q *Queue) { q.enricher = e }
}

// WithCompletionHook sets the hook called for completed jobs.
func WithCompletionHook(h CompletionHook) Option {
	return func(q *Queue) { q.hook = h }
}

// WithClock overrides the clock used for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(q *Queue) {
		if now != nil {
			q.now = now
		}
	}
}

// WithStore makes the queue use an existing store.
func WithStore(s *Store) Option {
	return func(q *Queue) {
		if s != nil {
			q.store = s
		}
	}
}

// NewQueue constructs a Queue. Workers start when Run is called; submissions
// made before that wait in the intake buffer.
func NewQueue(analyzer Analyzer, cfg Config, opts ...Option) (*Queue, error) {
	if analyzer == nil {
		return nil, errors.New("analyzer is required")
	}
	cfg = cfg.withDefaults()
	q := &Queue{
		store:    NewStore(),
		analyzer: analyzer,
		cfg:      cfg,
		now:      func() time.Time { return time.Now().UTC() },
		intake:   make(chan task, cfg.QueueSize),
		cancels:  make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q, nil
}

// Submit validates req, stores a pending job and hands it to the worker
// pool. It never waits on scoring.
func (q *Queue) Submit(ctx context.Context, req analysis.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(req.RequesterID) == "" {
		metrics.IncJobRejected("validation")
		return "", fmt.Errorf("%w: requester id is required", analysis.ErrValidation)
	}
	if err := req.Validate(); err != nil {
		metrics.IncJobRejected("validation")
		return "", err
	}

	job := Job{
		ID:        uuid.NewString(),
		OwnerID:   req.RequesterID,
		Kind:      req.Kind,
		Request:   req.Clone(),
		Status:    StatusPending,
		CreatedAt: q.now(),
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		metrics.IncJobRejected("closed")
		return "", ErrQueueClosed
	}
	if err := q.store.Create(job); err != nil {
		return "", err
	}
	select {
	case q.intake <- task{jobID: job.ID, requestID: requestIDFromContext(ctx)}:
	default:
		q.store.Remove(job.ID)
		metrics.IncJobRejected("queue_full")
		telemetry.Warn("job.rejected", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"owner_id":   job.OwnerID,
			"reason":     "queue_full",
		})
		return "", ErrQueueFull
	}
	metrics.IncJobSubmitted()
	metrics.IncJobTransition(string(StatusPending))
	metrics.SetQueueDepth(len(q.intake))
	telemetry.Info("job.status", map[string]any{
		"request_id": requestIDFromContext(ctx),
		"job_id":     job.ID,
		"owner_id":   job.OwnerID,
		"kind":       string(job.Kind),
		"status":     string(StatusPending),
	})
	return job.ID, nil
}

// Get returns a snapshot of the job.
func (q *Queue) Get(ctx context.Context, jobID string) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	job, ok := q.store.Get(jobID)
	if !ok {
		return Job{}, ErrNotFound
	}
	return job, nil
}

// Poll returns the job if ownerID owns it. A mismatch returns ErrForbidden
// and no job data.
func (q *Queue) Poll(ctx context.Context, jobID, ownerID string) (Job, error) {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return Job{}, err
	}
	if job.OwnerID != ownerID {
		return Job{}, ErrForbidden
	}
	return job, nil
}

// Cancel ends a pending or processing job as failed with code CANCELLED.
func (q *Queue) Cancel(ctx context.Context, jobID, ownerID string) error {
	job, err := q.Poll(ctx, jobID, ownerID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		return ErrAlreadyTerminal
	}

	// Fail first so the worker's own failure after cancellation is a no-op.
	failed, ok := q.store.Fail(jobID, ErrorCodeCancelled, "cancelled by owner", q.now())
	if !ok {
		return ErrAlreadyTerminal
	}
	q.mu.Lock()
	cancel := q.cancels[jobID]
	q.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	q.recordFailure(requestIDFromContext(ctx), job.Status, failed)
	return nil
}

// Stats returns job counts by status.
func (q *Queue) Stats() Stats {
	return q.store.Stats()
}

// Cleanup evicts terminal jobs that completed more than the retention window
// before now.
func (q *Queue) Cleanup(now time.Time) int {
	evicted := q.store.EvictCompletedBefore(now.Add(-q.cfg.Retention))
	if evicted > 0 {
		metrics.AddJobsEvicted(evicted)
		telemetry.Info("job.cleanup", map[string]any{
			"evicted":   evicted,
			"retention": q.cfg.Retention.String(),
		})
	}
	return evicted
}

// Run starts the workers and the cleanup ticker and blocks until ctx is done.
// Running jobs are allowed to finish; jobs still waiting in the intake buffer
// are failed with code SHUTDOWN.
func (q *Queue) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < q.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.work(ctx)
		}()
	}

	ticker := time.NewTicker(q.cfg.CleanupInterval)
	defer ticker.Stop()
	telemetry.Info("job.queue.started", map[string]any{
		"workers":    q.cfg.Workers,
		"queue_size": q.cfg.QueueSize,
	})

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			q.Cleanup(q.now())
		}
	}

	wg.Wait()
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	drained := q.drain()
	telemetry.Info("job.queue.stopped", map[string]any{"drained": drained})
	return nil
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.intake:
			metrics.SetQueueDepth(len(q.intake))
			q.execute(t)
		}
	}
}

func (q *Queue) drain() int {
	n := 0
	for {
		select {
		case t := <-q.intake:
			if failed, ok := q.store.Fail(t.jobID, ErrorCodeShutdown, "service shutting down before the job started", q.now()); ok {
				q.recordFailure(t.requestID, StatusPending, failed)
				n++
			}
		default:
			metrics.SetQueueDepth(0)
			return n
		}
	}
}

func (q *Queue) execute(t task) {
	ctx, cancel := context.WithCancel(WithRequestID(context.Background(), t.requestID))
	defer cancel()

	q.mu.Lock()
	q.cancels[t.jobID] = cancel
	q.mu.Unlock()
	defer func() {
		q.mu.Lock()
		delete(q.cancels, t.jobID)
		q.mu.Unlock()
	}()

	defer func() {
		if r := recover(); r != nil {
			q.fail(ctx, t.jobID, StatusProcessing, fmt.Errorf("panic: %v", r))
		}
	}()

	job, ok := q.store.Claim(t.jobID, q.now())
	if !ok {
		// Cancelled while pending, or a duplicate delivery.
		return
	}
	metrics.IncJobTransition(string(StatusProcessing))
	telemetry.Info("job.status", map[string]any{
		"request_id":        t.requestID,
		"job_id":            job.ID,
		"owner_id":          job.OwnerID,
		"status":            string(StatusProcessing),
		"status_transition": "pending->processing",
	})

	req := job.Request
	if q.enricher != nil {
		enriched, err := q.enricher.Enrich(ctx, req)
		if err != nil {
			q.fail(ctx, job.ID, StatusProcessing, fmt.Errorf("%w: %w", errProfileLookup, err))
			return
		}
		req = enriched
	}

	res, err := q.analyzer.Analyze(ctx, req)
	if err != nil {
		q.fail(ctx, job.ID, StatusProcessing, err)
		return
	}

	completed, ok := q.store.Complete(job.ID, res, q.now())
	if !ok {
		return
	}
	duration := jobDuration(completed)
	metrics.IncJobTransition(string(StatusCompleted))
	metrics.ObserveJobDuration(duration)
	telemetry.Info("job.status", map[string]any{
		"request_id":        t.requestID,
		"job_id":            completed.ID,
		"owner_id":          completed.OwnerID,
		"status":            string(StatusCompleted),
		"status_transition": "processing->completed",
		"analysis_method":   string(res.AnalysisMethod),
		"risk_level":        string(res.RiskLevel),
		"duration_ms":       duration.Milliseconds(),
	})

	if q.hook != nil {
		if err := q.hook(ctx, completed); err != nil {
			telemetry.Warn("job.completion_hook_failed", map[string]any{
				"request_id": t.requestID,
				"job_id":     completed.ID,
				"error":      err.Error(),
			})
		}
	}
}

func (q *Queue) fail(ctx context.Context, jobID string, from Status, err error) {
	code := classifyFailure(err)
	failed, ok := q.store.Fail(jobID, code, sanitizeError(err), q.now())
	if !ok {
		return
	}
	q.recordFailure(requestIDFromContext(ctx), from, failed)
}

func (q *Queue) recordFailure(requestID string, from Status, job Job) {
	duration := jobDuration(job)
	metrics.IncJobTransition(string(StatusFailed))
	metrics.ObserveJobDuration(duration)
	telemetry.Info("job.status", map[string]any{
		"request_id":        requestID,
		"job_id":            job.ID,
		"owner_id":          job.OwnerID,
		"status":            string(StatusFailed),
		"status_transition": string(from) + "->" + string(StatusFailed),
		"error_code":        job.ErrorCode,
		"error":             job.Error,
		"duration_ms":       duration.Milliseconds(),
	})
}

func jobDuration(job Job) time.Duration {
	if job.StartedAt == nil || job.CompletedAt == nil {
		return 0
	}
	return job.CompletedAt.Sub(*job.StartedAt)
}

func classifyFailure(err error) string {
	switch {
	case err == nil:
		return ErrorCodeInternal
	case errors.Is(err, errProfileLookup):
		return ErrorCodeProfileLookup
	case errors.Is(err, scoring.ErrCancelled), errors.Is(err, context.Canceled):
		return ErrorCodeCancelled
	case errors.Is(err, scoring.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeScorerTimeout
	case errors.Is(err, scoring.ErrFailure), errors.Is(err, scoring.ErrUnavailable):
		return ErrorCodeScorerFailure
	default:
		return ErrorCodeInternal
	}
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")
	msg = strings.TrimSpace(msg)
	const maxLen = 500
	if len(msg) > maxLen {
		msg = msg[:maxLen]
		for len(msg) > 0 && !utf8.ValidString(msg) {
			msg = msg[:len(msg)-1]
		}
	}
	return msg
}
