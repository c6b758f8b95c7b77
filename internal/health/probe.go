package health

import (
	"context"
	"log/slog"
	"time"

	"payment-relay/internal/config"
)

// Tracker receives health updates from the probe. The router implements it;
// the probe is the tracker's single writer.
type Tracker interface {
	// UpdateHealth replaces a processor's status and minimum response time.
	UpdateHealth(name string, status Status, minResponseTime int)
	// MarkFailing sets a processor failing while keeping its last known
	// minimum response time.
	MarkFailing(name string)
}

// Checker samples one processor's health endpoint.
type Checker interface {
	CheckHealth(ctx context.Context, url string) (Report, error)
}

// Target is one processor the probe watches.
type Target struct {
	Name string
	URL  string
}

// Probe is the long-lived loop sampling each processor's health endpoint
// and feeding the router. Faults never stop the loop; only context
// cancellation does.
type Probe struct {
	tracker  Tracker
	checker  Checker
	targets  []Target
	interval time.Duration
	timeout  time.Duration
}

// NewProbe creates a probe with the contractual 5-second interval.
func NewProbe(tracker Tracker, checker Checker, targets []Target) *Probe {
	return NewProbeWithConfig(tracker, checker, targets, config.HealthCheckInterval, config.HealthCheckTimeout)
}

// NewProbeWithConfig creates a probe with custom timings for testing.
func NewProbeWithConfig(tracker Tracker, checker Checker, targets []Target, interval, timeout time.Duration) *Probe {
	return &Probe{
		tracker:  tracker,
		checker:  checker,
		targets:  targets,
		interval: interval,
		timeout:  timeout,
	}
}

// Run sweeps all targets, sleeps one interval, and repeats until ctx is
// cancelled.
func (p *Probe) Run(ctx context.Context) {
	for {
		p.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

func (p *Probe) sweep(ctx context.Context) {
	for _, target := range p.targets {
		checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
		report, err := p.checker.CheckHealth(checkCtx, target.URL)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("health_check_failed",
				"processor", target.Name,
				"error", err,
			)
			p.tracker.MarkFailing(target.Name)
			continue
		}

		status := StatusHealthy
		switch {
		case report.Failing:
			status = StatusFailing
		case report.MinResponseTime >= config.SlowResponseThresholdMS:
			status = StatusSlow
		}

		slog.Debug("health_check_ok",
			"processor", target.Name,
			"status", status.String(),
			"min_response_time_ms", report.MinResponseTime,
		)
		p.tracker.UpdateHealth(target.Name, status, report.MinResponseTime)
	}
}
