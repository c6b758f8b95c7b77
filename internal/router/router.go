package router

import (
	"sync"

	"payment-relay/internal/breaker"
	"payment-relay/internal/config"
	"payment-relay/internal/health"
	"payment-relay/internal/model"
)

// Choice is a routing decision: where to send the payment and through
// which breaker. The breaker handle is shared, internally synchronized
// state; workers invoke it directly.
type Choice struct {
	Name    string
	URL     string
	Breaker *breaker.Breaker
}

type processorState struct {
	url             string
	status          health.Status
	minResponseTime int
	breaker         *breaker.Breaker
}

// Router owns the only in-process mutable shared state: per-processor
// health and the per-processor breakers. The health probe is the single
// writer; workers are concurrent readers through Select. Reads snapshot one
// processor atomically, so a torn (new URL, old status) pair cannot be
// observed.
type Router struct {
	mu         sync.RWMutex
	processors map[string]*processorState
	order      []string
}

// New creates a router for the two processor groups. Both start failing
// until the first successful probe sweep reports otherwise.
func New(defaultURL, fallbackURL string) *Router {
	newState := func(url string) *processorState {
		return &processorState{
			url:     url,
			status:  health.StatusFailing,
			breaker: breaker.New(config.BreakerWindowSize, config.BreakerFailureRatio, config.BreakerCooldown),
		}
	}
	return &Router{
		processors: map[string]*processorState{
			model.GroupDefault:  newState(defaultURL),
			model.GroupFallback: newState(fallbackURL),
		},
		order: []string{model.GroupDefault, model.GroupFallback},
	}
}

// UpdateHealth replaces a processor's health snapshot. Only the probe calls
// this.
func (r *Router) UpdateHealth(name string, status health.Status, minResponseTime int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.processors[name]; ok {
		p.status = status
		p.minResponseTime = minResponseTime
	}
}

// MarkFailing sets a processor failing, keeping the last known minimum
// response time.
func (r *Router) MarkFailing(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.processors[name]; ok {
		p.status = health.StatusFailing
	}
}

// Breaker returns the shared breaker handle for a processor group.
func (r *Router) Breaker(name string) *breaker.Breaker {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.processors[name]; ok {
		return p.breaker
	}
	return nil
}

// Select picks a processor for the next attempt. The default group is
// cheaper, so it wins whenever it is reported healthy, under the slow
// threshold, and its breaker is not open; the fallback is held to the same
// bar. When neither qualifies there is no choice and the caller re-enqueues.
func (r *Router) Select() (Choice, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		p := r.processors[name]
		if p.status != health.StatusHealthy {
			continue
		}
		if p.minResponseTime >= config.SlowResponseThresholdMS {
			continue
		}
		if p.breaker.State() == breaker.StateOpen {
			continue
		}
		return Choice{Name: name, URL: p.url, Breaker: p.breaker}, true
	}
	return Choice{}, false
}
