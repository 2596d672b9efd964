package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"foodsafe-backend/internal/analysis"
	"foodsafe-backend/internal/scoring"
)

func newDefaultClassifier(t *testing.T) *Classifier {
	t.Helper()
	m, err := DefaultModel()
	if err != nil {
		t.Fatalf("DefaultModel: %v", err)
	}
	return NewWithModel(m)
}

func TestUnloadedClassifierIsUnavailable(t *testing.T) {
	c := New()
	if c.IsAvailable() {
		t.Fatalf("expected classifier without model to be unavailable")
	}
	_, err := c.Score(context.Background(), scoring.Input{Ingredients: []string{"salt"}})
	if !errors.Is(err, scoring.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestScoreExactAllergenMatch(t *testing.T) {
	c := newDefaultClassifier(t)
	res, err := c.Score(context.Background(), scoring.Input{
		Ingredients: []string{"Peanuts", "sugar"},
		Allergies:   []string{"peanuts"},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.RiskLevel != analysis.RiskDanger || res.Safe {
		t.Fatalf("expected danger verdict, got %+v", res)
	}
	if len(res.AllergenAlerts) != 1 || res.AllergenAlerts[0].Severity != analysis.SeverityHigh {
		t.Fatalf("expected one high alert, got %+v", res.AllergenAlerts)
	}
	if res.ConfidenceOrZero() != 0.92 {
		t.Fatalf("expected confidence 0.92, got %v", res.ConfidenceOrZero())
	}
	if res.AnalysisMethod != analysis.MethodML {
		t.Fatalf("expected ML method, got %q", res.AnalysisMethod)
	}
}

func TestScoreSynonymMatch(t *testing.T) {
	c := newDefaultClassifier(t)
	res, err := c.Score(context.Background(), scoring.Input{
		Ingredients: []string{"whey protein", "mystery blend", "proprietary mix"},
		Allergies:   []string{"milk"},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(res.AllergenAlerts) != 1 || res.AllergenAlerts[0].Allergen != "milk" {
		t.Fatalf("expected milk alert, got %+v", res.AllergenAlerts)
	}
	if res.ConfidenceOrZero() != synonymMatchFloor {
		t.Fatalf("expected synonym floor confidence, got %v", res.ConfidenceOrZero())
	}
}

func TestScoreDrugInteraction(t *testing.T) {
	c := newDefaultClassifier(t)
	res, err := c.Score(context.Background(), scoring.Input{
		Ingredients: []string{"grapefruit juice", "water"},
		Medications: []string{"atorvastatin"},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(res.DrugInteractions) != 1 {
		t.Fatalf("expected one interaction, got %+v", res.DrugInteractions)
	}
	got := res.DrugInteractions[0]
	if got.Medication != "atorvastatin" || got.Ingredient != "grapefruit juice" || got.Severity != analysis.SeverityHigh {
		t.Fatalf("unexpected interaction %+v", got)
	}
	if res.RiskLevel != analysis.RiskDanger {
		t.Fatalf("expected danger, got %q", res.RiskLevel)
	}
}

func TestScoreUnknownIngredientsLowersConfidence(t *testing.T) {
	c := newDefaultClassifier(t)
	res, err := c.Score(context.Background(), scoring.Input{
		Ingredients: []string{"e1520", "blend 42"},
	})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if !res.Safe || res.RiskLevel != analysis.RiskSafe {
		t.Fatalf("expected safe verdict, got %+v", res)
	}
	if res.ConfidenceOrZero() != baseConfidence {
		t.Fatalf("expected base confidence, got %v", res.ConfidenceOrZero())
	}
}

func TestScoreHonoursCancelledContext(t *testing.T) {
	c := newDefaultClassifier(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Score(ctx, scoring.Input{Ingredients: []string{"salt"}})
	if !errors.Is(err, scoring.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestLoadModelFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	payload := `{"version":"t1","allergens":[{"name":"sesame","terms":["tahini"],"severity":"high"}]}`
	if err := os.WriteFile(path, []byte(payload), 0o600); err != nil {
		t.Fatalf("write model: %v", err)
	}
	m, err := LoadModelFile(path)
	if err != nil {
		t.Fatalf("LoadModelFile: %v", err)
	}
	c := NewWithModel(m)
	if c.Version() != "t1" {
		t.Fatalf("expected version t1, got %q", c.Version())
	}
	res, err := c.Score(context.Background(), scoring.Input{Ingredients: []string{"Tahini"}, Allergies: []string{"Sesame"}})
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if len(res.AllergenAlerts) != 1 {
		t.Fatalf("expected tahini to match sesame, got %+v", res.AllergenAlerts)
	}
}

func TestParseModelRejectsBadSeverity(t *testing.T) {
	_, err := ParseModel([]byte(`{"allergens":[{"name":"x","severity":"extreme"}]}`))
	if err == nil {
		t.Fatalf("expected error for invalid severity")
	}
}

func TestContainsTermRespectsWordBoundaries(t *testing.T) {
	if containsTerm("buttermilk", "milk") {
		t.Fatalf("expected no match inside a word")
	}
	if !containsTerm("skimmed milk powder", "milk") {
		t.Fatalf("expected match on word boundary")
	}
}
