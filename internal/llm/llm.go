package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// Client abstracts LLM providers for food-safety classification.
type Client interface {
	Classify(ctx context.Context, input ClassifyInput) (json.RawMessage, error)
}

// ClassifyInput captures the inputs needed to classify one product for one user.
type ClassifyInput struct {
	Ingredients   []string
	Allergies     []string
	Medications   []string
	PromptVersion string
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("llm client not configured")

// PlaceholderClient is used when no provider is configured. Every call fails,
// which the hybrid router surfaces as a remote scorer failure.
type PlaceholderClient struct{}

// Classify returns ErrNotConfigured.
func (PlaceholderClient) Classify(ctx context.Context, input ClassifyInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	return nil, ErrNotConfigured
}
