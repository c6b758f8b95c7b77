package health

// Status is a processor's reported health as seen by the probe.
type Status int

const (
	// StatusFailing is the initial state and the state after any probe
	// failure; the router never selects a failing processor.
	StatusFailing Status = iota
	// StatusHealthy means the processor reported not-failing within the
	// slow-response threshold.
	StatusHealthy
	// StatusSlow means the processor reported not-failing but its minimum
	// response time crossed the slow threshold; it is latency-penalized.
	StatusSlow
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusSlow:
		return "slow"
	default:
		return "failing"
	}
}

// Report is the body of the processors' service-health endpoint.
type Report struct {
	Failing         bool `json:"failing"`
	MinResponseTime int  `json:"minResponseTime"`
}
