package breaker

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrOpen is returned by Do when the breaker short-circuits a call
	// without invoking the operation.
	ErrOpen = errors.New("breaker: open")

	// ErrIgnored marks an operation error the breaker must not count. Do
	// returns it to the caller unchanged, records nothing in the window,
	// and leaves a half-open probe undecided.
	ErrIgnored = errors.New("breaker: outcome ignored")
)

// State is the breaker's position in its closed / open / half-open cycle.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Breaker isolates a single processor's failures. While closed it counts
// outcomes over a rolling window and opens when the failure ratio over a
// full window crosses the threshold. While open it rejects calls until the
// cooldown passes, then admits exactly one half-open probe; the probe's
// outcome decides between closing and re-opening.
//
// A Breaker is safe for concurrent use and is shared by pointer between the
// router and all workers.
type Breaker struct {
	mu           sync.Mutex
	state        State
	window       []bool // true = failure, newest last
	windowSize   int
	failureRatio float64
	cooldown     time.Duration
	openedAt     time.Time
	probing      bool

	now func() time.Time
}

// New creates a closed breaker. The breaker will not trip before windowSize
// calls have been observed.
func New(windowSize int, failureRatio float64, cooldown time.Duration) *Breaker {
	return &Breaker{
		windowSize:   windowSize,
		failureRatio: failureRatio,
		cooldown:     cooldown,
		now:          time.Now,
	}
}

// State reports the current state, promoting open to half-open once the
// cooldown has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolve()
}

// Do runs op through the breaker. It returns ErrOpen without invoking op
// when short-circuited; otherwise it returns op's error unchanged after
// recording the outcome. Errors matching ErrIgnored are passed through
// without being recorded.
func (b *Breaker) Do(op func() error) error {
	b.mu.Lock()
	switch b.resolve() {
	case StateOpen:
		b.mu.Unlock()
		return ErrOpen
	case StateHalfOpen:
		if b.probing {
			// A probe is already in flight; everyone else stays out.
			b.mu.Unlock()
			return ErrOpen
		}
		b.probing = true
		b.mu.Unlock()
		return b.probe(op)
	}
	b.mu.Unlock()

	err := op()

	if !errors.Is(err, ErrIgnored) {
		b.mu.Lock()
		b.record(err != nil)
		b.mu.Unlock()
	}
	return err
}

// probe runs the single half-open call. The probing flag is released in a
// defer so a panicking op leaves the breaker half-open and probeable rather
// than wedged.
func (b *Breaker) probe(op func() error) error {
	defer func() {
		b.mu.Lock()
		b.probing = false
		b.mu.Unlock()
	}()

	err := op()

	b.mu.Lock()
	switch {
	case errors.Is(err, ErrIgnored):
		// Undecided: stay half-open and let the next call probe again.
	case err != nil:
		b.state = StateOpen
		b.openedAt = b.now()
	default:
		b.state = StateClosed
		b.window = b.window[:0]
	}
	b.mu.Unlock()
	return err
}

// resolve returns the effective state, moving open to half-open when the
// cooldown deadline has passed. Callers must hold the lock.
func (b *Breaker) resolve() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.cooldown {
		b.state = StateHalfOpen
	}
	return b.state
}

// record appends an outcome to the rolling window and trips the breaker
// when a full window crosses the failure ratio. Callers must hold the lock.
func (b *Breaker) record(failed bool) {
	if b.state != StateClosed {
		return
	}

	b.window = append(b.window, failed)
	if len(b.window) > b.windowSize {
		b.window = b.window[len(b.window)-b.windowSize:]
	}
	if len(b.window) < b.windowSize {
		return
	}

	failures := 0
	for _, f := range b.window {
		if f {
			failures++
		}
	}
	if float64(failures)/float64(len(b.window)) >= b.failureRatio {
		b.state = StateOpen
		b.openedAt = b.now()
		b.window = b.window[:0]
	}
}
