package health

import (
	"context"
	"time"
)

const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB and by adapters over *redis.Client.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// PingContext calls f.
func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// Service encapsulates health-related checks.
type Service struct {
	checks map[string]Pinger
	model  func() bool
}

// NewService constructs a health service. modelLoaded may be nil.
func NewService(modelLoaded func() bool) *Service {
	return &Service{checks: make(map[string]Pinger), model: modelLoaded}
}

// Register adds a named dependency check. Nil pingers are ignored.
func (s *Service) Register(name string, p Pinger) {
	if p == nil {
		return
	}
	s.checks[name] = p
}

// Report is the health payload.
type Report struct {
	OK           bool              `json:"ok"`
	LocalModel   bool              `json:"localModel"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// Status pings every registered dependency. A missing local model does not
// make the service unhealthy since scans fall back to the remote scorer.
func (s *Service) Status(ctx context.Context) Report {
	report := Report{OK: true}
	if s.model != nil {
		report.LocalModel = s.model()
	}
	if len(s.checks) == 0 {
		return report
	}
	report.Dependencies = make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := p.PingContext(checkCtx)
		cancel()
		if err != nil {
			report.OK = false
			report.Dependencies[name] = err.Error()
			continue
		}
		report.Dependencies[name] = "ok"
	}
	return report
}
