package scoring

import (
	"context"
	"errors"
	"fmt"

	"foodsafe-backend/internal/analysis"
)

// Input is what every scorer sees: ingredients plus the user's allergy and
// medication lists.
type Input struct {
	Ingredients []string
	Allergies   []string
	Medications []string
}

// InputFor builds scorer input from a request.
func InputFor(req analysis.Request) Input {
	return Input{
		Ingredients: append([]string(nil), req.Ingredients...),
		Allergies:   append([]string(nil), req.UserAllergies...),
		Medications: append([]string(nil), req.UserMedications...),
	}
}

// Scorer turns an input into a risk verdict.
type Scorer interface {
	Score(ctx context.Context, in Input) (analysis.AnalysisResult, error)
}

// LocalScorer is an in-process scorer that may not have a model loaded.
// Score must not block on I/O.
type LocalScorer interface {
	Scorer
	IsAvailable() bool
}

var (
	ErrUnavailable = errors.New("scorer unavailable")
	ErrFailure     = errors.New("scorer failure")
	ErrTimeout     = errors.New("scorer timeout")
	ErrCancelled   = errors.New("scorer cancelled")
)

// Kind classifies a scorer error.
type Kind int

const (
	KindFailure Kind = iota
	KindUnavailable
	KindTimeout
	KindCancelled
)

func (k Kind) sentinel() error {
	switch k {
	case KindUnavailable:
		return ErrUnavailable
	case KindTimeout:
		return ErrTimeout
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrFailure
	}
}

// Error is returned by scorers. It matches the sentinel for its Kind with
// errors.Is and unwraps to the underlying cause.
type Error struct {
	Scorer string
	Kind   Kind
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s scorer: %s", e.Scorer, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s scorer: %s: %v", e.Scorer, e.Kind.sentinel(), e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// Wrap classifies err for the named scorer. Context errors become timeout or
// cancelled; an existing *Error is returned unchanged.
func Wrap(scorer string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Scorer: scorer, Kind: KindTimeout, Err: err}
	case errors.Is(err, context.Canceled):
		return &Error{Scorer: scorer, Kind: KindCancelled, Err: err}
	case errors.Is(err, ErrUnavailable):
		return &Error{Scorer: scorer, Kind: KindUnavailable, Err: err}
	default:
		return &Error{Scorer: scorer, Kind: KindFailure, Err: err}
	}
}
