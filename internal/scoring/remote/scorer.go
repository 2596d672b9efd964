package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/time/rate"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/llm"
	"foodsafe-backend/internal/scoring"
	"foodsafe-backend/internal/shared/metrics"
	"foodsafe-backend/internal/shared/telemetry"
)

const scorerName = "remote"

const defaultTimeout = 30 * time.Second

// Config controls throttling, timeouts and caching of remote calls.
type Config struct {
	// Timeout bounds one LLM call. Zero means 30s.
	Timeout time.Duration
	// RatePerSec and Burst configure the token bucket in front of the LLM.
	// A non-positive rate disables throttling.
	RatePerSec float64
	Burst      int
	// CacheTTL is how long verdicts stay cached when a Cache is set.
	CacheTTL      time.Duration
	PromptVersion string
}

// Scorer adapts an llm.Client into a scoring.Scorer. It reports no
// confidence of its own; every verdict carries confidence 1.0.
type Scorer struct {
	client  llm.Client
	cache   Cache
	limiter *rate.Limiter
	schema  *jsonschema.Schema
	cfg     Config
}

// New constructs a remote scorer. cache may be nil.
func New(client llm.Client, cfg Config, cache Cache) (*Scorer, error) {
	if client == nil {
		return nil, errors.New("llm client is required")
	}
	schema, err := compileVerdictSchema()
	if err != nil {
		return nil, err
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.PromptVersion == "" {
		cfg.PromptVersion = llm.DefaultPromptVersion
	}
	s := &Scorer{
		client: client,
		cache:  cache,
		schema: schema,
		cfg:    cfg,
	}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	return s, nil
}

// Score classifies the input through the LLM.
func (s *Scorer) Score(ctx context.Context, in scoring.Input) (analysis.AnalysisResult, error) {
	start := time.Now()
	res, outcome, err := s.score(ctx, in)
	metrics.ObserveScorer(scorerName, outcome, time.Since(start))
	return res, err
}

func (s *Scorer) score(ctx context.Context, in scoring.Input) (analysis.AnalysisResult, string, error) {
	if err := ctx.Err(); err != nil {
		return analysis.AnalysisResult{}, "cancelled", scoring.Wrap(scorerName, err)
	}

	key := CacheKey(s.cfg.PromptVersion, in)
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			telemetry.Warn("scorer.remote.cache_get_failed", map[string]any{"error": err.Error()})
		case ok:
			metrics.IncRemoteCache("hit")
			return cached, "cache_hit", nil
		default:
			metrics.IncRemoteCache("miss")
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			if ctx.Err() == nil {
				// Wait refuses when the deadline is closer than the next token.
				err = fmt.Errorf("rate limit wait: %w", context.DeadlineExceeded)
			}
			return analysis.AnalysisResult{}, "throttled", scoring.Wrap(scorerName, err)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	raw, err := s.client.Classify(callCtx, llm.ClassifyInput{
		Ingredients:   in.Ingredients,
		Allergies:     in.Allergies,
		Medications:   in.Medications,
		PromptVersion: s.cfg.PromptVersion,
	})
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return analysis.AnalysisResult{}, "timeout", &scoring.Error{
				Scorer: scorerName,
				Kind:   scoring.KindTimeout,
				Err:    fmt.Errorf("llm call exceeded %s: %w", s.cfg.Timeout, err),
			}
		}
		if errors.Is(err, llm.ErrNotConfigured) {
			return analysis.AnalysisResult{}, "unavailable", &scoring.Error{Scorer: scorerName, Kind: scoring.KindUnavailable, Err: err}
		}
		wrapped := scoring.Wrap(scorerName, err)
		if errors.Is(wrapped, scoring.ErrCancelled) {
			return analysis.AnalysisResult{}, "cancelled", wrapped
		}
		return analysis.AnalysisResult{}, "error", wrapped
	}

	res, err := parseVerdict(s.schema, raw)
	if err != nil {
		return analysis.AnalysisResult{}, "invalid", &scoring.Error{Scorer: scorerName, Kind: scoring.KindFailure, Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.cfg.CacheTTL); err != nil {
			telemetry.Warn("scorer.remote.cache_set_failed", map[string]any{"error": err.Error()})
		}
	}
	return res, "ok", nil
}

var _ scoring.Scorer = (*Scorer)(nil)
