package local

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
)

const scorerName = "local"

const (
	baseConfidence    = 0.4
	coverageWeight    = 0.5
	exactMatchFloor   = 0.92
	synonymMatchFloor = 0.7
	maxConfidence     = 0.99
)

// Classifier is the in-process rule classifier. It is unavailable until a
// model is loaded; the model is swapped atomically and never mutated while
// scoring.
type Classifier struct {
	model atomic.Pointer[Model]
}

// New returns a Classifier with no model loaded.
func New() *Classifier {
	return &Classifier{}
}

// NewWithModel returns a Classifier serving m.
func NewWithModel(m *Model) *Classifier {
	c := New()
	c.Load(m)
	return c
}

// Load installs m as the active model.
func (c *Classifier) Load(m *Model) {
	c.model.Store(m)
}

// IsAvailable reports whether a model is loaded.
func (c *Classifier) IsAvailable() bool {
	return c.model.Load() != nil
}

// Version returns the loaded model version, or "" when unavailable.
func (c *Classifier) Version() string {
	if m := c.model.Load(); m != nil {
		return m.Version
	}
	return ""
}

// Score matches ingredients against the user's allergies and medications.
func (c *Classifier) Score(ctx context.Context, in scoring.Input) (analysis.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return analysis.AnalysisResult{}, scoring.Wrap(scorerName, err)
	}
	m := c.model.Load()
	if m == nil {
		return analysis.AnalysisResult{}, &scoring.Error{Scorer: scorerName, Kind: scoring.KindUnavailable}
	}
	if len(in.Ingredients) == 0 {
		return analysis.AnalysisResult{}, scoring.Wrap(scorerName, errors.New("no ingredients"))
	}

	ingredients := make([]string, len(in.Ingredients))
	for i, ing := range in.Ingredients {
		ingredients[i] = strings.ToLower(strings.TrimSpace(ing))
	}

	var (
		exact   bool
		synonym bool
		matched = make([]bool, len(ingredients))
	)

	alerts := make([]analysis.AllergenAlert, 0)
	for _, allergy := range analysis.NormalizeSet(in.Allergies) {
		groups := m.groupsFor(allergy)
		severity := analysis.SeverityHigh
		if len(groups) > 0 {
			severity = groups[0].Severity
		}
		for i, ing := range ingredients {
			if containsTerm(ing, allergy) {
				exact = true
				matched[i] = true
				alerts = append(alerts, allergenAlert(allergy, in.Ingredients[i], severity))
				break
			}
			if term, sev, ok := matchGroups(groups, ing); ok {
				synonym = true
				matched[i] = true
				alerts = append(alerts, allergenAlert(allergy, in.Ingredients[i]+" ("+term+")", sev))
				break
			}
		}
	}

	interactions := make([]analysis.DrugInteraction, 0)
	for _, med := range analysis.NormalizeSet(in.Medications) {
		seen := make(map[int]bool)
		for _, rule := range m.rulesFor(med) {
			for i, ing := range ingredients {
				if seen[i] {
					continue
				}
				for _, term := range rule.Ingredients {
					if !containsTerm(ing, term) {
						continue
					}
					seen[i] = true
					matched[i] = true
					exact = true
					interactions = append(interactions, analysis.DrugInteraction{
						Medication: med,
						Ingredient: in.Ingredients[i],
						Severity:   rule.Severity,
						Message:    fmt.Sprintf("%s: %s", in.Ingredients[i], rule.Message),
					})
					break
				}
			}
		}
	}

	known := 0
	for i, ing := range ingredients {
		if matched[i] || m.knows(ing) {
			known++
		}
	}
	coverage := float64(known) / float64(len(ingredients))
	confidence := baseConfidence + coverageWeight*coverage
	switch {
	case exact:
		confidence = math.Max(confidence, exactMatchFloor)
	case synonym:
		confidence = math.Max(confidence, synonymMatchFloor)
	}
	confidence = math.Min(math.Round(confidence*100)/100, maxConfidence)

	result := analysis.AnalysisResult{
		AllergenAlerts:   alerts,
		DrugInteractions: interactions,
		Confidence:       analysis.Float(confidence),
	}
	return result.Normalize(analysis.MethodML), nil
}

func matchGroups(groups []AllergenGroup, ingredient string) (string, analysis.Severity, bool) {
	for _, g := range groups {
		for _, term := range g.Terms {
			if containsTerm(ingredient, term) {
				return term, g.Severity, true
			}
		}
	}
	return "", "", false
}

func allergenAlert(allergy, source string, sev analysis.Severity) analysis.AllergenAlert {
	return analysis.AllergenAlert{
		Allergen: allergy,
		Severity: sev,
		Message:  fmt.Sprintf("Contains %s: %s", allergy, source),
	}
}

var _ scoring.LocalScorer = (*Classifier)(nil)
