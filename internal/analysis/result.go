package analysis

import (
	"errors"
	"strings"
)

// RiskLevel is the overall safety classification of a product for one user.
// Levels are totally ordered: safe < caution < danger.
type RiskLevel string

const (
	RiskSafe    RiskLevel = "safe"
	RiskCaution RiskLevel = "caution"
	RiskDanger  RiskLevel = "danger"
)

// Severity grades a single allergen alert or drug interaction.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Method records which classifier produced a result.
type Method string

const (
	MethodML     Method = "ML"
	MethodLLM    Method = "LLM"
	MethodHybrid Method = "Hybrid"
)

// AllergenAlert flags an ingredient matching one of the user's allergies.
type AllergenAlert struct {
	Allergen string   `json:"allergen"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// DrugInteraction flags an ingredient known to interact with a user's medication.
type DrugInteraction struct {
	Medication string   `json:"medication"`
	Ingredient string   `json:"ingredient"`
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
}

// AnalysisResult is the normalized verdict returned for one request.
type AnalysisResult struct {
	Safe             bool              `json:"safe"`
	RiskLevel        RiskLevel         `json:"riskLevel"`
	AllergenAlerts   []AllergenAlert   `json:"allergenAlerts"`
	DrugInteractions []DrugInteraction `json:"drugInteractions"`
	Confidence       *float64          `json:"confidence,omitempty"`
	AnalysisMethod   Method            `json:"analysisMethod"`
	AnalysisTimeMs   int64             `json:"analysisTimeMs"`
}

// ParseRiskLevel normalizes a risk level string.
func ParseRiskLevel(raw string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RiskSafe), "low":
		return RiskSafe, nil
	case string(RiskCaution), "medium", "moderate", "warning":
		return RiskCaution, nil
	case string(RiskDanger), "high", "unsafe":
		return RiskDanger, nil
	default:
		return "", errors.New("risk level is invalid")
	}
}

// ParseSeverity normalizes a severity string.
func ParseSeverity(raw string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(SeverityLow), "minor", "mild":
		return SeverityLow, nil
	case string(SeverityMedium), "moderate":
		return SeverityMedium, nil
	case string(SeverityHigh), "severe", "major", "critical":
		return SeverityHigh, nil
	default:
		return "", errors.New("severity is invalid")
	}
}

func (r RiskLevel) rank() int {
	switch r {
	case RiskCaution:
		return 1
	case RiskDanger:
		return 2
	default:
		return 0
	}
}

// Less reports whether r is strictly less severe than other.
func (r RiskLevel) Less(other RiskLevel) bool {
	return r.rank() < other.rank()
}

// MaxRisk returns the more severe of two risk levels. Unknown or empty
// levels count as safe.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if a.rank() == 0 && b.rank() == 0 {
		return RiskSafe
	}
	if a.Less(b) {
		return b
	}
	return a
}

// RiskFor maps an alert severity onto the risk it implies.
func RiskFor(sev Severity) RiskLevel {
	switch sev {
	case SeverityHigh:
		return RiskDanger
	case SeverityMedium, SeverityLow:
		return RiskCaution
	default:
		return RiskSafe
	}
}

// ImpliedRisk is the maximum risk implied by the result's alerts and interactions.
func (r AnalysisResult) ImpliedRisk() RiskLevel {
	level := RiskSafe
	for _, a := range r.AllergenAlerts {
		level = MaxRisk(level, RiskFor(a.Severity))
	}
	for _, d := range r.DrugInteractions {
		level = MaxRisk(level, RiskFor(d.Severity))
	}
	return level
}

// Normalize enforces the result invariants for the given method. ML and
// Hybrid results take the risk implied by their alerts; LLM results keep
// the risk level asserted by the remote model. Safe is always derived from
// the risk level and nil lists become empty.
func (r AnalysisResult) Normalize(method Method) AnalysisResult {
	out := r
	out.AnalysisMethod = method
	if out.AllergenAlerts == nil {
		out.AllergenAlerts = []AllergenAlert{}
	}
	if out.DrugInteractions == nil {
		out.DrugInteractions = []DrugInteraction{}
	}
	if method != MethodLLM {
		out.RiskLevel = out.ImpliedRisk()
	}
	if out.RiskLevel == "" {
		out.RiskLevel = RiskSafe
	}
	out.Safe = out.RiskLevel == RiskSafe
	if out.Confidence != nil {
		c := clamp01(*out.Confidence)
		out.Confidence = &c
	}
	if out.AnalysisTimeMs < 0 {
		out.AnalysisTimeMs = 0
	}
	return out
}

// ConfidenceOrZero returns the confidence, treating a missing value as 0.
func (r AnalysisResult) ConfidenceOrZero() float64 {
	if r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// Float returns a pointer to v, for optional confidence values.
func Float(v float64) *float64 {
	return &v
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clone returns a deep copy so callers can hand results across goroutines.
func (r AnalysisResult) Clone() AnalysisResult {
	out := r
	if r.AllergenAlerts != nil {
		out.AllergenAlerts = append([]AllergenAlert(nil), r.AllergenAlerts...)
	}
	if r.DrugInteractions != nil {
		out.DrugInteractions = append([]DrugInteraction(nil), r.DrugInteractions...)
	}
	if r.Confidence != nil {
		c := *r.Confidence
		out.Confidence = &c
	}
	return out
}
