package progress

import (
	"sync"
	"sync/atomic"
)

// Func receives a completion fraction in [0, 1].
type Func = func(fraction float64)

// Nop discards progress.
func Nop(float64) {}

// Tracker forwards fractions to a Func, clamped to [0, 1] and never
// decreasing. Report may be called from multiple goroutines; calls into the
// underlying Func are serialized.
type Tracker struct {
	mu     sync.Mutex
	fn     Func
	last   float64
	sent   bool
	closed bool
}

// NewTracker creates a Tracker forwarding to fn. A nil fn discards progress.
func NewTracker(fn Func) *Tracker {
	if fn == nil {
		fn = Nop
	}
	return &Tracker{fn: fn}
}

// Report forwards f if it does not move progress backwards.
func (t *Tracker) Report(f float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.emitLocked(f)
}

// Finish emits the terminal value 1.0 and stops forwarding.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.emitLocked(1)
	t.closed = true
}

// Close stops forwarding without emitting a terminal value. Reports that
// arrive later (for example from an abandoned goroutine) are dropped.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// Last returns the most recently forwarded value.
func (t *Tracker) Last() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

func (t *Tracker) emitLocked(f float64) {
	if t.closed {
		return
	}
	f = clamp(f)
	if t.sent && f <= t.last {
		return
	}
	t.last = f
	t.sent = true
	t.fn(f)
}

// Monotonic wraps fn in a Tracker and returns its Report method.
func Monotonic(fn Func) Func {
	return NewTracker(fn).Report
}

func clamp(f float64) float64 {
	switch {
	case f != f: // NaN
		return 0
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

// Counter is an io.Writer that counts bytes and reports the fraction of an
// expected total. Use it with io.TeeReader to observe a stream.
type Counter struct {
	total int64
	n     atomic.Int64
	fn    Func
}

// NewCounter creates a Counter for a stream of total bytes. When total is
// unknown (<= 0) no intermediate fractions are reported.
func NewCounter(total int64, fn Func) *Counter {
	if fn == nil {
		fn = Nop
	}
	return &Counter{total: total, fn: fn}
}

// Write records len(p) bytes.
func (c *Counter) Write(p []byte) (int, error) {
	n := c.n.Add(int64(len(p)))
	if c.total > 0 {
		c.fn(float64(n) / float64(c.total))
	}
	return len(p), nil
}

// Count returns the number of bytes seen so far.
func (c *Counter) Count() int64 {
	return c.n.Load()
}

// Aggregate combines the progress of several parts into their mean.
type Aggregate struct {
	mu    sync.Mutex
	parts []float64
	fn    Func
}

// NewAggregate creates an Aggregate over n parts.
func NewAggregate(n int, fn Func) *Aggregate {
	if fn == nil {
		fn = Nop
	}
	return &Aggregate{parts: make([]float64, n), fn: fn}
}

// Part returns the Func that reports progress for part i.
func (a *Aggregate) Part(i int) Func {
	return func(f float64) {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.parts[i] = clamp(f)
		if len(a.parts) == 0 {
			return
		}
		var sum float64
		for _, p := range a.parts {
			sum += p
		}
		a.fn(sum / float64(len(a.parts)))
	}
}
