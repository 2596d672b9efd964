package analysis

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation marks a malformed request. It is returned synchronously and
// never creates a job.
var ErrValidation = errors.New("validation error")

// Kind identifies how the ingredients for a request were obtained.
type Kind string

const (
	KindBarcodeLookup Kind = "barcode_lookup"
	KindManualEntry   Kind = "manual_entry"
)

// ParseKind normalizes and validates a request kind.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(KindManualEntry), "manual":
		return KindManualEntry, nil
	case string(KindBarcodeLookup), "barcode":
		return KindBarcodeLookup, nil
	default:
		return "", fmt.Errorf("%w: kind %q is invalid", ErrValidation, raw)
	}
}

// Request is an immutable analysis request. Build it with NewRequest.
type Request struct {
	RequesterID     string   `json:"requesterId"`
	Kind            Kind     `json:"kind"`
	Ingredients     []string `json:"ingredients"`
	UserAllergies   []string `json:"userAllergies"`
	UserMedications []string `json:"userMedications"`
	ProductName     string   `json:"productName,omitempty"`
	Barcode         string   `json:"barcode,omitempty"`
}

// RequestParams carries raw caller input for NewRequest.
type RequestParams struct {
	RequesterID string
	Kind        Kind
	Ingredients []string
	Allergies   []string
	Medications []string
	ProductName string
	Barcode     string
}

// NewRequest normalizes params into a Request. Ingredients are trimmed and
// blanks dropped, order preserved. Allergies and medications are lower-cased
// and de-duplicated. An empty ingredient list is a validation error.
func NewRequest(p RequestParams) (Request, error) {
	if strings.TrimSpace(p.RequesterID) == "" {
		return Request{}, fmt.Errorf("%w: requester id is required", ErrValidation)
	}
	kind := p.Kind
	if kind == "" {
		kind = KindManualEntry
	}
	req := Request{
		RequesterID:     strings.TrimSpace(p.RequesterID),
		Kind:            kind,
		Ingredients:     NormalizeIngredients(p.Ingredients),
		UserAllergies:   NormalizeSet(p.Allergies),
		UserMedications: NormalizeSet(p.Medications),
		ProductName:     strings.TrimSpace(p.ProductName),
		Barcode:         strings.TrimSpace(p.Barcode),
	}
	if err := req.Validate(); err != nil {
		return Request{}, err
	}
	return req, nil
}

// Validate checks the request invariants.
func (r Request) Validate() error {
	if len(NormalizeIngredients(r.Ingredients)) == 0 {
		return fmt.Errorf("%w: ingredients must not be empty", ErrValidation)
	}
	return nil
}

// WithProfile returns a copy of r whose allergy and medication sets also
// contain the given values.
func (r Request) WithProfile(allergies, medications []string) Request {
	out := r.clone()
	out.UserAllergies = NormalizeSet(append(out.UserAllergies, allergies...))
	out.UserMedications = NormalizeSet(append(out.UserMedications, medications...))
	return out
}

func (r Request) clone() Request {
	out := r
	out.Ingredients = append([]string(nil), r.Ingredients...)
	out.UserAllergies = append([]string(nil), r.UserAllergies...)
	out.UserMedications = append([]string(nil), r.UserMedications...)
	return out
}

// Clone returns a deep copy of the request.
func (r Request) Clone() Request {
	return r.clone()
}

// NormalizeIngredients trims entries, drops blanks and keeps order.
func NormalizeIngredients(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// NormalizeSet lower-cases, trims and de-duplicates entries, keeping first
// occurrence order.
func NormalizeSet(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		v := strings.ToLower(strings.TrimSpace(item))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitIngredientText splits a free-text ingredient label such as
// "sugar, peanuts (roasted); salt" into individual ingredients.
func SplitIngredientText(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', ';', '\n', '(', ')', '[', ']':
			return true
		}
		return false
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(strings.TrimSpace(f), ".*:")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
