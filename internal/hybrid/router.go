package hybrid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
	"foodsafe-backend/internal/shared/metrics"
	"foodsafe-backend/internal/shared/telemetry"
)

const (
	DefaultHighConfidence   = 0.8
	DefaultMediumConfidence = 0.6
)

// Branch names the path a routing decision took.
type Branch string

const (
	BranchML               Branch = "ml"
	BranchHybrid           Branch = "hybrid"
	BranchHybridDegraded   Branch = "hybrid_degraded"
	BranchLLMUnavailable   Branch = "llm_unavailable"
	BranchLLMLocalError    Branch = "llm_local_error"
	BranchLLMLowConfidence Branch = "llm_low_confidence"
	BranchLLMNoIngredients Branch = "llm_no_ingredients"
)

// Thresholds are the confidence cut-offs. Both comparisons are strict: a
// local confidence equal to High does not take the ML path.
type Thresholds struct {
	High   float64
	Medium float64
}

// DefaultThresholds returns 0.8 / 0.6.
func DefaultThresholds() Thresholds {
	return Thresholds{High: DefaultHighConfidence, Medium: DefaultMediumConfidence}
}

// Validate rejects thresholds outside [0,1] or with Medium >= High.
func (t Thresholds) Validate() error {
	if t.High < 0 || t.High > 1 || t.Medium < 0 || t.Medium > 1 {
		return fmt.Errorf("thresholds must be within [0,1]: high=%v medium=%v", t.High, t.Medium)
	}
	if t.Medium >= t.High {
		return fmt.Errorf("medium threshold %v must be below high threshold %v", t.Medium, t.High)
	}
	return nil
}

// Router picks between the local and remote scorers for each request.
type Router struct {
	local      scoring.LocalScorer
	remote     scoring.Scorer
	thresholds Thresholds
	degrade    bool
	now        func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithDegradeOnHybridFailure makes a remote failure in the hybrid branch
// return the local result tagged ML instead of failing the analysis.
func WithDegradeOnHybridFailure(enabled bool) Option {
	return func(r *Router) { r.degrade = enabled }
}

// WithClock overrides the clock used for analysisTimeMs.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New constructs a Router. local may be nil, in which case every request goes
// to the remote scorer.
func New(local scoring.LocalScorer, remote scoring.Scorer, thresholds Thresholds, opts ...Option) (*Router, error) {
	if remote == nil {
		return nil, errors.New("remote scorer is required")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	r := &Router{
		local:      local,
		remote:     remote,
		thresholds: thresholds,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Thresholds returns the thresholds the router was built with.
func (r *Router) Thresholds() Thresholds {
	return r.thresholds
}

// Analyze produces exactly one result for req or an error describing why
// no scorer could.
func (r *Router) Analyze(ctx context.Context, req analysis.Request) (analysis.AnalysisResult, error) {
	start := r.now()
	res, branch, err := r.route(ctx, req)
	metrics.IncRouterDecision(string(branch))
	elapsed := r.now().Sub(start)

	fields := map[string]any{
		"requester_id": req.RequesterID,
		"branch":       string(branch),
		"duration_ms":  elapsed.Milliseconds(),
	}
	if err != nil {
		fields["error"] = err.Error()
		telemetry.Warn("router.decision", fields)
		return analysis.AnalysisResult{}, err
	}
	if res.Confidence != nil {
		fields["confidence"] = *res.Confidence
	}
	telemetry.Info("router.decision", fields)

	res.AnalysisTimeMs = elapsed.Milliseconds()
	if res.AnalysisTimeMs < 0 {
		res.AnalysisTimeMs = 0
	}
	return res, nil
}

func (r *Router) route(ctx context.Context, req analysis.Request) (analysis.AnalysisResult, Branch, error) {
	in := scoring.InputFor(req)

	if len(in.Ingredients) == 0 {
		return r.remoteOnly(ctx, in, BranchLLMNoIngredients)
	}
	if r.local == nil || !r.local.IsAvailable() {
		return r.remoteOnly(ctx, in, BranchLLMUnavailable)
	}

	localStart := r.now()
	local, err := r.local.Score(ctx, in)
	if err != nil {
		metrics.ObserveScorer("local", "error", r.now().Sub(localStart))
		telemetry.Warn("scorer.local.failed", map[string]any{
			"requester_id": req.RequesterID,
			"error":        err.Error(),
		})
		return r.remoteOnly(ctx, in, BranchLLMLocalError)
	}
	metrics.ObserveScorer("local", "ok", r.now().Sub(localStart))

	confidence := local.ConfidenceOrZero()
	switch {
	case confidence > r.thresholds.High:
		return localVerdict(local), BranchML, nil
	case confidence > r.thresholds.Medium:
		remote, err := r.remote.Score(ctx, in)
		if err != nil {
			if r.degrade && !errors.Is(err, scoring.ErrCancelled) {
				telemetry.Warn("router.hybrid_degraded", map[string]any{
					"requester_id": req.RequesterID,
					"error":        err.Error(),
				})
				return localVerdict(local), BranchHybridDegraded, nil
			}
			return analysis.AnalysisResult{}, BranchHybrid, fmt.Errorf("hybrid remote: %w", err)
		}
		return Merge(local, remote), BranchHybrid, nil
	default:
		return r.remoteOnly(ctx, in, BranchLLMLowConfidence)
	}
}

func (r *Router) remoteOnly(ctx context.Context, in scoring.Input, branch Branch) (analysis.AnalysisResult, Branch, error) {
	res, err := r.remote.Score(ctx, in)
	if err != nil {
		return analysis.AnalysisResult{}, branch, fmt.Errorf("remote: %w", err)
	}
	return res.Normalize(analysis.MethodLLM), branch, nil
}
