package local

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"foodsafe-backend/internal/analysis"
)

//go:embed default_model.json
var defaultModelJSON []byte

// AllergenGroup lists the label terms that indicate one allergen.
type AllergenGroup struct {
	Name     string            `json:"name"`
	Terms    []string          `json:"terms"`
	Severity analysis.Severity `json:"severity"`
}

// InteractionRule lists ingredients that interact with a medication.
type InteractionRule struct {
	Medication  string            `json:"medication"`
	Aliases     []string          `json:"aliases"`
	Ingredients []string          `json:"ingredients"`
	Severity    analysis.Severity `json:"severity"`
	Message     string            `json:"message"`
}

// Model is the read-only rule set the classifier scores against.
type Model struct {
	Version      string            `json:"version"`
	Allergens    []AllergenGroup   `json:"allergens"`
	Interactions []InteractionRule `json:"interactions"`
	Vocabulary   []string          `json:"vocabulary"`
}

// ParseModel decodes and validates a model definition.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode model: %w", err)
	}
	if err := m.normalize(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadModelFile reads a model from disk.
func LoadModelFile(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	return ParseModel(data)
}

// DefaultModel returns the rule set compiled into the binary.
func DefaultModel() (*Model, error) {
	return ParseModel(defaultModelJSON)
}

func (m *Model) normalize() error {
	if len(m.Allergens) == 0 && len(m.Interactions) == 0 {
		return errors.New("model has no rules")
	}
	for i := range m.Allergens {
		g := &m.Allergens[i]
		g.Name = strings.ToLower(strings.TrimSpace(g.Name))
		g.Terms = analysis.NormalizeSet(append([]string{g.Name}, g.Terms...))
		sev, err := analysis.ParseSeverity(string(g.Severity))
		if err != nil {
			return fmt.Errorf("allergen %q: %w", g.Name, err)
		}
		g.Severity = sev
	}
	for i := range m.Interactions {
		r := &m.Interactions[i]
		r.Medication = strings.ToLower(strings.TrimSpace(r.Medication))
		r.Aliases = analysis.NormalizeSet(append([]string{r.Medication}, r.Aliases...))
		r.Ingredients = analysis.NormalizeSet(r.Ingredients)
		sev, err := analysis.ParseSeverity(string(r.Severity))
		if err != nil {
			return fmt.Errorf("interaction %q: %w", r.Medication, err)
		}
		r.Severity = sev
	}
	m.Vocabulary = analysis.NormalizeSet(m.Vocabulary)
	return nil
}

// groupsFor returns the allergen groups a user allergy refers to.
func (m *Model) groupsFor(allergy string) []AllergenGroup {
	var out []AllergenGroup
	for _, g := range m.Allergens {
		if g.Name == allergy {
			out = append(out, g)
			continue
		}
		for _, term := range g.Terms {
			if term == allergy {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// rulesFor returns the interaction rules for a medication name or alias.
func (m *Model) rulesFor(medication string) []InteractionRule {
	var out []InteractionRule
	for _, r := range m.Interactions {
		for _, alias := range r.Aliases {
			if alias == medication {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// knows reports whether the ingredient is covered by any term in the model.
func (m *Model) knows(ingredient string) bool {
	for _, v := range m.Vocabulary {
		if containsTerm(ingredient, v) {
			return true
		}
	}
	for _, g := range m.Allergens {
		for _, term := range g.Terms {
			if containsTerm(ingredient, term) {
				return true
			}
		}
	}
	for _, r := range m.Interactions {
		for _, term := range r.Ingredients {
			if containsTerm(ingredient, term) {
				return true
			}
		}
	}
	return false
}

// containsTerm reports whether term appears in text on word boundaries.
// Both arguments are expected lower-case.
func containsTerm(text, term string) bool {
	if term == "" {
		return false
	}
	from := 0
	for {
		idx := strings.Index(text[from:], term)
		if idx < 0 {
			return false
		}
		start := from + idx
		end := start + len(term)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		from = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}
