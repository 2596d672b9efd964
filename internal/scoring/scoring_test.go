package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestWrapClassifiesContextErrors(t *testing.T) {
	err := Wrap("remote", fmt.Errorf("openai request: %w", context.DeadlineExceeded))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected cause to unwrap, got %v", err)
	}

	err = Wrap("remote", context.Canceled)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", err)
	}
}

func TestWrapKeepsExistingError(t *testing.T) {
	orig := &Error{Scorer: "local", Kind: KindUnavailable}
	if got := Wrap("remote", orig); got != error(orig) {
		t.Fatalf("expected existing error to pass through, got %v", got)
	}
	if !errors.Is(orig, ErrUnavailable) || errors.Is(orig, ErrFailure) {
		t.Fatalf("unexpected sentinel matching for %v", orig)
	}
}

func TestWrapDefaultsToFailure(t *testing.T) {
	err := Wrap("remote", errors.New("boom"))
	if !errors.Is(err, ErrFailure) {
		t.Fatalf("expected failure, got %v", err)
	}
	if err.Error() != "remote scorer: scorer failure: boom" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if Wrap("remote", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}
