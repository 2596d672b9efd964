package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"foodsafe-backend/internal/analysis"
)

const verdictSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["riskLevel"],
  "properties": {
    "riskLevel": {"type": "string", "minLength": 1},
    "allergenAlerts": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["allergen", "severity"],
        "properties": {
          "allergen": {"type": "string", "minLength": 1},
          "severity": {"type": "string"},
          "message": {"type": "string"}
        }
      }
    },
    "drugInteractions": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["medication", "ingredient", "severity"],
        "properties": {
          "medication": {"type": "string", "minLength": 1},
          "ingredient": {"type": "string"},
          "severity": {"type": "string"},
          "message": {"type": "string"}
        }
      }
    }
  }
}`

type verdict struct {
	RiskLevel      string `json:"riskLevel"`
	AllergenAlerts []struct {
		Allergen string `json:"allergen"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	} `json:"allergenAlerts"`
	DrugInteractions []struct {
		Medication string `json:"medication"`
		Ingredient string `json:"ingredient"`
		Severity   string `json:"severity"`
		Message    string `json:"message"`
	} `json:"drugInteractions"`
}

func compileVerdictSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("verdict.json", strings.NewReader(verdictSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("verdict.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// parseVerdict validates raw model output and converts it into a result.
func parseVerdict(schema *jsonschema.Schema, raw []byte) (analysis.AnalysisResult, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return analysis.AnalysisResult{}, fmt.Errorf("llm output parse: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return analysis.AnalysisResult{}, fmt.Errorf("llm output does not match schema: %w", err)
	}

	var v verdict
	if err := json.Unmarshal(raw, &v); err != nil {
		return analysis.AnalysisResult{}, fmt.Errorf("llm output parse: %w", err)
	}
	level, err := analysis.ParseRiskLevel(v.RiskLevel)
	if err != nil {
		return analysis.AnalysisResult{}, fmt.Errorf("llm output invalid: %w", err)
	}

	res := analysis.AnalysisResult{
		RiskLevel:        level,
		AllergenAlerts:   make([]analysis.AllergenAlert, 0, len(v.AllergenAlerts)),
		DrugInteractions: make([]analysis.DrugInteraction, 0, len(v.DrugInteractions)),
		Confidence:       analysis.Float(1.0),
	}
	for _, a := range v.AllergenAlerts {
		sev, err := analysis.ParseSeverity(a.Severity)
		if err != nil {
			return analysis.AnalysisResult{}, fmt.Errorf("llm output invalid: allergen %q: %w", a.Allergen, err)
		}
		res.AllergenAlerts = append(res.AllergenAlerts, analysis.AllergenAlert{
			Allergen: strings.ToLower(strings.TrimSpace(a.Allergen)),
			Severity: sev,
			Message:  strings.TrimSpace(a.Message),
		})
	}
	for _, d := range v.DrugInteractions {
		sev, err := analysis.ParseSeverity(d.Severity)
		if err != nil {
			return analysis.AnalysisResult{}, fmt.Errorf("llm output invalid: medication %q: %w", d.Medication, err)
		}
		res.DrugInteractions = append(res.DrugInteractions, analysis.DrugInteraction{
			Medication: strings.ToLower(strings.TrimSpace(d.Medication)),
			Ingredient: strings.TrimSpace(d.Ingredient),
			Severity:   sev,
			Message:    strings.TrimSpace(d.Message),
		})
	}
	return res.Normalize(analysis.MethodLLM), nil
}
