package analysis

import "testing"

func TestNormalizeDerivesRiskForLocalMethods(t *testing.T) {
	res := AnalysisResult{
		RiskLevel: RiskSafe,
		AllergenAlerts: []AllergenAlert{
			{Allergen: "milk", Severity: SeverityMedium},
		},
		DrugInteractions: []DrugInteraction{
			{Medication: "warfarin", Ingredient: "kale", Severity: SeverityHigh},
		},
	}
	for _, method := range []Method{MethodML, MethodHybrid} {
		got := res.Normalize(method)
		if got.RiskLevel != RiskDanger {
			t.Fatalf("%s: expected danger, got %q", method, got.RiskLevel)
		}
		if got.Safe {
			t.Fatalf("%s: expected safe=false", method)
		}
	}
}

func TestNormalizeKeepsRemoteRisk(t *testing.T) {
	res := AnalysisResult{RiskLevel: RiskCaution, Safe: true}
	got := res.Normalize(MethodLLM)
	if got.RiskLevel != RiskCaution {
		t.Fatalf("expected caution to be kept, got %q", got.RiskLevel)
	}
	if got.Safe {
		t.Fatalf("expected safe to be re-derived as false")
	}
	if got.AllergenAlerts == nil || got.DrugInteractions == nil {
		t.Fatalf("expected empty, non-nil alert lists")
	}
}

func TestNormalizeClampsConfidence(t *testing.T) {
	got := AnalysisResult{Confidence: Float(1.7)}.Normalize(MethodML)
	if got.Confidence == nil || *got.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", got.Confidence)
	}
	if !got.Safe || got.RiskLevel != RiskSafe {
		t.Fatalf("expected safe result without alerts, got %+v", got)
	}
}

func TestRiskOrdering(t *testing.T) {
	if !RiskSafe.Less(RiskCaution) || !RiskCaution.Less(RiskDanger) {
		t.Fatalf("expected safe < caution < danger")
	}
	if MaxRisk(RiskDanger, RiskCaution) != RiskDanger {
		t.Fatalf("expected danger to win")
	}
	if MaxRisk("", RiskSafe) != RiskSafe {
		t.Fatalf("expected an empty level to count as safe")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := AnalysisResult{
		AllergenAlerts: []AllergenAlert{{Allergen: "egg", Severity: SeverityHigh}},
		Confidence:     Float(0.5),
	}
	cp := orig.Clone()
	cp.AllergenAlerts[0].Allergen = "changed"
	*cp.Confidence = 0.9
	if orig.AllergenAlerts[0].Allergen != "egg" || *orig.Confidence != 0.5 {
		t.Fatalf("clone shares memory with original")
	}
}
