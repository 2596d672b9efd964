package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type flakyClient struct {
	errs  []error
	calls int
}

func (f *flakyClient) Classify(ctx context.Context, input ClassifyInput) (json.RawMessage, error) {
	_ = ctx
	_ = input
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	return json.RawMessage(`{"riskLevel":"safe"}`), nil
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	base := &flakyClient{errs: []error{errors.New("openai http status 503")}}
	client := retrying{base: base, delay: time.Millisecond}

	raw, err := client.Classify(context.Background(), ClassifyInput{})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if string(raw) != `{"riskLevel":"safe"}` {
		t.Fatalf("unexpected payload %s", raw)
	}
	if base.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", base.calls)
	}
}

func TestRetrySkipsPermanentError(t *testing.T) {
	base := &flakyClient{errs: []error{ErrNotConfigured}}
	client := retrying{base: base, delay: time.Millisecond}

	if _, err := client.Classify(context.Background(), ClassifyInput{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if base.calls != 1 {
		t.Fatalf("expected a single call, got %d", base.calls)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "reset", err: errors.New("read: connection reset by peer"), want: true},
		{name: "rate limited", err: errors.New("openai http status 429"), want: true},
		{name: "bad request", err: errors.New("openai http status 400"), want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldRetry(tt.err); got != tt.want {
				t.Fatalf("ShouldRetry(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPlaceholderClient(t *testing.T) {
	if _, err := (PlaceholderClient{}).Classify(context.Background(), ClassifyInput{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
