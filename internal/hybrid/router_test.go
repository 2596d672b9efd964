package hybrid

import (
	"context"
	"errors"
	"io"
	"os"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
	"foodsafe-backend/internal/shared/telemetry"
)

func TestMain(m *testing.M) {
	telemetry.SetOutput(io.Discard)
	os.Exit(m.Run())
}

type fakeLocal struct {
	available bool
	res       analysis.AnalysisResult
	err       error
	calls     atomic.Int32
}

func (f *fakeLocal) IsAvailable() bool { return f.available }

func (f *fakeLocal) Score(ctx context.Context, in scoring.Input) (analysis.AnalysisResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return analysis.AnalysisResult{}, f.err
	}
	return f.res.Clone(), nil
}

type fakeRemote struct {
	res   analysis.AnalysisResult
	err   error
	calls atomic.Int32
}

func (f *fakeRemote) Score(ctx context.Context, in scoring.Input) (analysis.AnalysisResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return analysis.AnalysisResult{}, f.err
	}
	return f.res.Clone(), nil
}

func localWithConfidence(c float64) *fakeLocal {
	return &fakeLocal{
		available: true,
		res: analysis.AnalysisResult{
			RiskLevel:        analysis.RiskSafe,
			AllergenAlerts:   []analysis.AllergenAlert{},
			DrugInteractions: []analysis.DrugInteraction{},
			Confidence:       analysis.Float(c),
		},
	}
}

func safeRemote() *fakeRemote {
	return &fakeRemote{res: analysis.AnalysisResult{
		RiskLevel:  analysis.RiskSafe,
		Confidence: analysis.Float(1.0),
	}}
}

func newRequest(t *testing.T, ingredients []string, allergies ...string) analysis.Request {
	t.Helper()
	req, err := analysis.NewRequest(analysis.RequestParams{
		RequesterID: "user-1",
		Ingredients: ingredients,
		Allergies:   allergies,
	})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return req
}

func newRouter(t *testing.T, local scoring.LocalScorer, remote scoring.Scorer, opts ...Option) *Router {
	t.Helper()
	r, err := New(local, remote, DefaultThresholds(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestThresholdBoundaries(t *testing.T) {
	cases := []struct {
		name        string
		confidence  float64
		wantMethod  analysis.Method
		remoteCalls int32
	}{
		{"above high", 0.80001, analysis.MethodML, 0},
		{"exactly high", 0.8, analysis.MethodHybrid, 1},
		{"between", 0.7, analysis.MethodHybrid, 1},
		{"just above medium", 0.60001, analysis.MethodHybrid, 1},
		{"exactly medium", 0.6, analysis.MethodLLM, 1},
		{"below medium", 0.3, analysis.MethodLLM, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			remote := safeRemote()
			r := newRouter(t, localWithConfidence(tc.confidence), remote)
			res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
			if err != nil {
				t.Fatalf("Analyze: %v", err)
			}
			if res.AnalysisMethod != tc.wantMethod {
				t.Fatalf("expected %s, got %s", tc.wantMethod, res.AnalysisMethod)
			}
			if got := remote.calls.Load(); got != tc.remoteCalls {
				t.Fatalf("expected %d remote calls, got %d", tc.remoteCalls, got)
			}
		})
	}
}

func TestMissingConfidenceCountsAsZero(t *testing.T) {
	local := localWithConfidence(0)
	local.res.Confidence = nil
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodLLM {
		t.Fatalf("expected LLM, got %s", res.AnalysisMethod)
	}
}

func TestLocalFailureFallsBackToRemote(t *testing.T) {
	local := &fakeLocal{available: true, err: errors.New("model exploded")}
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodLLM {
		t.Fatalf("expected LLM after local failure, got %s", res.AnalysisMethod)
	}
	if remote.calls.Load() != 1 {
		t.Fatalf("expected remote to be called once")
	}
}

func TestUnavailableLocalIsSkipped(t *testing.T) {
	local := localWithConfidence(0.99)
	local.available = false
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodLLM {
		t.Fatalf("expected LLM, got %s", res.AnalysisMethod)
	}
	if local.calls.Load() != 0 {
		t.Fatalf("expected unavailable local scorer not to be called")
	}
}

func TestNilLocalRoutesToRemote(t *testing.T) {
	remote := safeRemote()
	r := newRouter(t, nil, remote)
	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodLLM {
		t.Fatalf("expected LLM, got %s", res.AnalysisMethod)
	}
}

func TestEmptyIngredientsGoRemote(t *testing.T) {
	local := localWithConfidence(0.99)
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), analysis.Request{RequesterID: "user-1"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodLLM || local.calls.Load() != 0 {
		t.Fatalf("expected remote-only routing, got %s with %d local calls", res.AnalysisMethod, local.calls.Load())
	}
}

func TestHybridMergePrefersLocalAlerts(t *testing.T) {
	localAlert := analysis.AllergenAlert{Allergen: "milk", Severity: analysis.SeverityMedium, Message: "Contains milk: whey"}
	local := &fakeLocal{available: true, res: analysis.AnalysisResult{
		RiskLevel:      analysis.RiskCaution,
		AllergenAlerts: []analysis.AllergenAlert{localAlert},
		Confidence:     analysis.Float(0.7),
	}}
	remote := &fakeRemote{res: analysis.AnalysisResult{
		RiskLevel: analysis.RiskDanger,
		AllergenAlerts: []analysis.AllergenAlert{
			{Allergen: "soy", Severity: analysis.SeverityHigh, Message: "soy lecithin"},
			{Allergen: "egg", Severity: analysis.SeverityLow, Message: "may contain egg"},
		},
		DrugInteractions: []analysis.DrugInteraction{
			{Medication: "warfarin", Ingredient: "kale", Severity: analysis.SeverityLow, Message: "vitamin K"},
		},
		Confidence: analysis.Float(1.0),
	}}
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"whey", "sugar", "kale"}, "milk"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodHybrid {
		t.Fatalf("expected Hybrid, got %s", res.AnalysisMethod)
	}
	if !reflect.DeepEqual(res.AllergenAlerts, []analysis.AllergenAlert{localAlert}) {
		t.Fatalf("expected local allergen alerts, got %+v", res.AllergenAlerts)
	}
	if len(res.DrugInteractions) != 1 || res.DrugInteractions[0].Medication != "warfarin" {
		t.Fatalf("expected remote drug interactions when local has none, got %+v", res.DrugInteractions)
	}
	if res.RiskLevel != analysis.RiskCaution || res.Safe {
		t.Fatalf("expected caution from local, got %s safe=%v", res.RiskLevel, res.Safe)
	}
	if res.ConfidenceOrZero() != 0.7 {
		t.Fatalf("expected local confidence, got %v", res.ConfidenceOrZero())
	}
}

func TestHybridRemoteFailureFailsAnalysis(t *testing.T) {
	remote := &fakeRemote{err: &scoring.Error{Scorer: "remote", Kind: scoring.KindFailure, Err: errors.New("502")}}
	r := newRouter(t, localWithConfidence(0.7), remote)

	_, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if !errors.Is(err, scoring.ErrFailure) {
		t.Fatalf("expected scorer failure to propagate, got %v", err)
	}
}

func TestHybridRemoteFailureCanDegrade(t *testing.T) {
	remote := &fakeRemote{err: &scoring.Error{Scorer: "remote", Kind: scoring.KindTimeout}}
	r := newRouter(t, localWithConfidence(0.7), remote, WithDegradeOnHybridFailure(true))

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodML {
		t.Fatalf("expected degraded ML result, got %s", res.AnalysisMethod)
	}
}

func TestRemoteOnlyFailureIsFinal(t *testing.T) {
	remote := &fakeRemote{err: &scoring.Error{Scorer: "remote", Kind: scoring.KindUnavailable}}
	r := newRouter(t, nil, remote)

	_, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if !errors.Is(err, scoring.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPeanutScenarioStaysLocal(t *testing.T) {
	local := &fakeLocal{available: true, res: analysis.AnalysisResult{
		RiskLevel: analysis.RiskDanger,
		AllergenAlerts: []analysis.AllergenAlert{
			{Allergen: "peanuts", Severity: analysis.SeverityHigh, Message: "Contains peanuts: peanuts"},
		},
		Confidence: analysis.Float(0.92),
	}}
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"peanuts", "sugar"}, "peanuts"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodML || res.Safe || res.RiskLevel != analysis.RiskDanger {
		t.Fatalf("unexpected result %+v", res)
	}
	if remote.calls.Load() != 0 {
		t.Fatalf("remote must not be invoked on the high-confidence path")
	}
}

func TestHighConfidenceKeepsLocalDanger(t *testing.T) {
	local := &fakeLocal{available: true, res: analysis.AnalysisResult{
		RiskLevel:  analysis.RiskDanger,
		Confidence: analysis.Float(0.9),
	}}
	remote := safeRemote()
	r := newRouter(t, local, remote)

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.AnalysisMethod != analysis.MethodML {
		t.Fatalf("expected ML, got %s", res.AnalysisMethod)
	}
	if res.RiskLevel != analysis.RiskDanger || res.Safe {
		t.Fatalf("local danger without alerts must stay danger, got %s safe=%v", res.RiskLevel, res.Safe)
	}
	if len(res.AllergenAlerts) != 0 || res.AllergenAlerts == nil {
		t.Fatalf("expected empty non-nil alerts, got %#v", res.AllergenAlerts)
	}
	if remote.calls.Load() != 0 {
		t.Fatalf("remote must not be invoked on the high-confidence path")
	}
}

func TestHighConfidenceRaisesRiskFromAlerts(t *testing.T) {
	local := &fakeLocal{available: true, res: analysis.AnalysisResult{
		RiskLevel: analysis.RiskSafe,
		DrugInteractions: []analysis.DrugInteraction{
			{Medication: "warfarin", Ingredient: "kale", Severity: analysis.SeverityMedium},
		},
		Confidence: analysis.Float(0.9),
	}}
	r := newRouter(t, local, safeRemote())

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"kale"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RiskLevel != analysis.RiskCaution || res.Safe {
		t.Fatalf("expected caution implied by the interaction, got %s safe=%v", res.RiskLevel, res.Safe)
	}
}

func TestDegradedHybridKeepsLocalDanger(t *testing.T) {
	local := &fakeLocal{available: true, res: analysis.AnalysisResult{
		RiskLevel:  analysis.RiskDanger,
		Confidence: analysis.Float(0.7),
	}}
	remote := &fakeRemote{err: &scoring.Error{Scorer: "remote", Kind: scoring.KindTimeout}}
	r := newRouter(t, local, remote, WithDegradeOnHybridFailure(true))

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.RiskLevel != analysis.RiskDanger || res.Safe {
		t.Fatalf("degraded result must keep local danger, got %s safe=%v", res.RiskLevel, res.Safe)
	}
}

func TestAnalysisTimeIsMeasured(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var ticks atomic.Int64
	clock := func() time.Time {
		n := ticks.Add(1) - 1
		return base.Add(time.Duration(n) * 150 * time.Millisecond)
	}
	r := newRouter(t, localWithConfidence(0.95), safeRemote(), WithClock(clock))

	res, err := r.Analyze(context.Background(), newRequest(t, []string{"sugar"}))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	// Analyze and the local scorer timing both read the injected clock:
	// start, local start, local end, finish.
	if got := ticks.Load(); got != 4 {
		t.Fatalf("expected 4 clock reads, got %d", got)
	}
	if res.AnalysisTimeMs != 450 {
		t.Fatalf("expected 450ms, got %d", res.AnalysisTimeMs)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	bad := []Thresholds{
		{High: 0.6, Medium: 0.6},
		{High: 0.5, Medium: 0.7},
		{High: 1.2, Medium: 0.5},
		{High: 0.8, Medium: -0.1},
	}
	for _, th := range bad {
		if err := th.Validate(); err == nil {
			t.Fatalf("expected %+v to be rejected", th)
		}
		if _, err := New(nil, safeRemote(), th); err == nil {
			t.Fatalf("expected New to reject %+v", th)
		}
	}
}
