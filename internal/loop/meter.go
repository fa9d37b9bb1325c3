package loop

import (
	"math"
	"time"
)

// Meter turns a monotonically increasing counter into a per-second rate, updated once per window.
type Meter struct {
	Window time.Duration

	start time.Time
	base  uint64
	last  int
}

// Observe records the counter's total at now. When a full window has elapsed since the last
// report it returns the rate over that window and true.
func (m *Meter) Observe(now time.Time, total uint64) (int, bool) {
	window := m.Window
	if window <= 0 {
		window = time.Second
	}
	if m.start.IsZero() || total < m.base {
		m.start, m.base = now, total
		return m.last, false
	}
	elapsed := now.Sub(m.start)
	if elapsed < window {
		return m.last, false
	}
	m.last = int(math.Round(float64(total-m.base) / elapsed.Seconds()))
	m.start, m.base = now, total
	return m.last, true
}

// Last returns the most recently reported rate.
func (m *Meter) Last() int {
	return m.last
}
