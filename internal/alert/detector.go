package alert

import (
	"math"
	"sync"
	"time"
)

// Event is a fired move alert.
type Event struct {
	At        time.Time
	Value     float64
	Diff      float64
	Direction string
}

type sample struct {
	ts    time.Time
	value float64
}

// Detector watches a sliding window of samples and fires once per
// qualifying move. The window is transient: it is never persisted, and it
// is cleared entirely after a fire so the same move cannot re-trigger.
// Detector has its own lock, independent of the main state lock.
type Detector struct {
	mu        sync.Mutex
	threshold float64
	window    time.Duration
	samples   []sample
}

// NewDetector constructs a Detector. A non-positive threshold disables it.
func NewDetector(threshold float64, window time.Duration) *Detector {
	return &Detector{threshold: threshold, window: window}
}

// Observe records a sample and reports whether it fired an alert.
func (d *Detector) Observe(ts time.Time, value float64) (Event, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.samples = append(d.samples, sample{ts: ts, value: value})

	cutoff := ts.Add(-d.window)
	idx := 0
	for idx < len(d.samples) && d.samples[idx].ts.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		d.samples = append(d.samples[:0], d.samples[idx:]...)
	}

	if d.threshold <= 0 || len(d.samples) < 2 {
		return Event{}, false
	}

	oldest := d.samples[0]
	diff := value - oldest.value
	if math.Abs(diff) < d.threshold {
		return Event{}, false
	}

	direction := "up"
	if diff < 0 {
		direction = "down"
	}

	d.samples = d.samples[:0]
	return Event{At: ts, Value: value, Diff: diff, Direction: direction}, true
}

// WindowSize reports the number of buffered samples.
func (d *Detector) WindowSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.samples)
}
