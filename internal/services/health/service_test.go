package health

import (
	"context"
	"errors"
	"testing"
)

func TestStatusWithoutDependencies(t *testing.T) {
	svc := NewService(func() bool { return true })
	report := svc.Status(context.Background())
	if !report.OK || !report.LocalModel || report.Dependencies != nil {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestStatusReportsFailingDependency(t *testing.T) {
	svc := NewService(nil)
	svc.Register("postgres", PingFunc(func(ctx context.Context) error { return nil }))
	svc.Register("redis", PingFunc(func(ctx context.Context) error { return errors.New("connection refused") }))
	svc.Register("ignored", nil)

	report := svc.Status(context.Background())
	if report.OK {
		t.Fatalf("expected unhealthy report")
	}
	if report.Dependencies["postgres"] != "ok" || report.Dependencies["redis"] != "connection refused" {
		t.Fatalf("unexpected dependencies %+v", report.Dependencies)
	}
	if _, ok := report.Dependencies["ignored"]; ok {
		t.Fatalf("nil pinger must not be registered")
	}
}
