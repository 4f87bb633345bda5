package progress

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Options configures the progress reporter.
type Options struct {
	// Label names the operation (for display), e.g. "Downloading prefabs".
	Label string

	// TotalSize is the expected size in bytes, if known.
	TotalSize int64

	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration
}

// Reporter renders a fraction stream as human-readable terminal output.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	fraction   atomic.Uint64 // math.Float64bits
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Update records the latest fraction. It satisfies Func.
func (r *Reporter) Update(f float64) {
	r.fraction.Store(math.Float64bits(clamp(f)))
}

// Fraction returns the latest recorded fraction.
func (r *Reporter) Fraction() float64 {
	return math.Float64frombits(r.fraction.Load())
}

// Start begins outputting progress information.
func (r *Reporter) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime

	go r.updateLoop()
}

// Stop stops the reporter and prints the final status. It waits for the
// final line to be written.
func (r *Reporter) Stop() {
	r.mu.Lock()
	if r.stopped || !r.started {
		r.stopped = true
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	now := time.Now()
	f := r.Fraction()

	if r.opts.TotalSize <= 0 {
		fmt.Fprintf(r.opts.Output, "\r[bundlefetch] %s: %.1f%%    ", r.opts.Label, f*100)
		return
	}

	completed := int64(f * float64(r.opts.TotalSize))
	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(completed-r.lastBytes) / elapsed
	r.lastUpdate = now
	r.lastBytes = completed

	fmt.Fprintf(r.opts.Output, "\r[bundlefetch] %s: %.1f%% | %s / %s | Speed: %s/s    ",
		r.opts.Label,
		f*100,
		formatBytes(completed),
		formatBytes(r.opts.TotalSize),
		formatBytes(int64(speed)),
	)
}

func (r *Reporter) printFinalStatus() {
	f := r.Fraction()
	duration := time.Since(r.startTime)
	if f < 1 {
		fmt.Fprintf(r.opts.Output, "\r[bundlefetch] %s: %.1f%% | Stopped (%s)    \n",
			r.opts.Label, f*100, formatDuration(duration))
		return
	}
	fmt.Fprintf(r.opts.Output, "\r[bundlefetch] %s: 100.0%% | Complete! (%s)    \n",
		r.opts.Label, formatDuration(duration))
}

// formatBytes formats bytes using binary units.
func formatBytes(b int64) string {
	const (
		KiB = 1024
		MiB = KiB * 1024
		GiB = MiB * 1024
		TiB = GiB * 1024
	)

	switch {
	case b >= TiB:
		return formatUnit(float64(b)/float64(TiB), "TiB")
	case b >= GiB:
		return formatUnit(float64(b)/float64(GiB), "GiB")
	case b >= MiB:
		return formatUnit(float64(b)/float64(MiB), "MiB")
	case b >= KiB:
		return formatUnit(float64(b)/float64(KiB), "KiB")
	default:
		return fmt.Sprintf("%d B", b)
	}
}

// formatUnit prints one decimal below 100 and none above, e.g. "1.5 KiB",
// "256 MiB".
func formatUnit(v float64, unit string) string {
	if v >= 100 {
		return fmt.Sprintf("%.0f %s", v, unit)
	}
	return fmt.Sprintf("%.1f %s", v, unit)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes is exported for use by other packages.
func FormatBytes(b int64) string {
	return formatBytes(b)
}

// ParseBytes parses a human-readable byte string. Binary suffixes (KiB, MiB,
// GiB, TiB) are powers of 1024; SI suffixes (KB, MB, GB, TB) are powers of
// 1000.
func ParseBytes(s string) (int64, error) {
	var multiplier int64 = 1
	s = trimSuffix(s, " ")

	units := []struct {
		suffix string
		mult   int64
	}{
		{"TiB", 1 << 40},
		{"GiB", 1 << 30},
		{"MiB", 1 << 20},
		{"KiB", 1 << 10},
		{"TB", 1000 * 1000 * 1000 * 1000},
		{"GB", 1000 * 1000 * 1000},
		{"MB", 1000 * 1000},
		{"KB", 1000},
		{"B", 1},
	}
	for _, u := range units {
		if hasSuffix(s, u.suffix) {
			multiplier = u.mult
			s = trimSuffix(s[:len(s)-len(u.suffix)], " ")
			break
		}
	}

	var value float64
	if _, err := fmt.Sscanf(s, "%f", &value); err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}

	return int64(value * float64(multiplier)), nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func trimSuffix(s, suffix string) string {
	for hasSuffix(s, suffix) {
		s = s[:len(s)-len(suffix)]
	}
	return s
}
