// Package hud keeps the text state of the on-screen status panel. Drawing it is the window's job.
package hud

import (
	"fmt"
	"time"

	"gyroview/internal/telemetry"
)

const loadingSuffix = " (loading...)"

// Panel collects connection, model and rate notifications and renders them as lines.
// Like the rest of the loop state it is only touched from the event loop goroutine.
type Panel struct {
	state     telemetry.ConnectionState
	notice    string
	since     time.Time
	loading   bool
	model     string
	fps       int
	rate      int
	sample    telemetry.SensorSample
	hasSample bool

	now func() time.Time
}

// New returns a panel showing a disconnected viewer.
func New() *Panel {
	return &Panel{now: time.Now}
}

// Connection records a channel state change. err, when set, stays visible until the next connect attempt.
func (p *Panel) Connection(state telemetry.ConnectionState, err error) {
	switch state {
	case telemetry.Connecting:
		p.notice = ""
	case telemetry.Connected:
		p.since = p.now()
	case telemetry.Disconnected:
		p.since = time.Time{}
	}
	if err != nil {
		p.notice = err.Error()
	}
	p.state = state
}

// Connected reports whether the last recorded state is Connected.
func (p *Panel) Connected() bool {
	return p.state == telemetry.Connected
}

// Status is the connection line text, e.g. "Connected (01:05)".
func (p *Panel) Status() string {
	switch p.state {
	case telemetry.Connecting:
		return "Connecting..."
	case telemetry.Connected:
		return fmt.Sprintf("Connected (%s)", formatElapsed(p.Elapsed()))
	case telemetry.Failed:
		return "Connection failed"
	}
	return "Disconnected"
}

// Elapsed is how long the current connection has been up; zero when not connected.
func (p *Panel) Elapsed() time.Duration {
	if p.since.IsZero() {
		return 0
	}
	return p.now().Sub(p.since)
}

func (p *Panel) Loading(v bool)      { p.loading = v }
func (p *Panel) ModelInfo(s string)  { p.model = s }
func (p *Panel) FPS(v int)           { p.fps = v }
func (p *Panel) UpdateRate(v int)    { p.rate = v }
func (p *Panel) IsLoading() bool     { return p.loading }
func (p *Panel) Model() string       { return p.model }
func (p *Panel) FrameRate() int      { return p.fps }
func (p *Panel) SampleRate() int     { return p.rate }
func (p *Panel) Notice() string      { return p.notice }

// Sample records the latest reading for the sensor readout.
func (p *Panel) Sample(s telemetry.SensorSample) {
	p.sample = s
	p.hasSample = true
}

// LastSample returns the latest reading and whether there has been one.
func (p *Panel) LastSample() (telemetry.SensorSample, bool) {
	return p.sample, p.hasSample
}

// Lines renders the panel top to bottom.
func (p *Panel) Lines() []string {
	lines := []string{
		"Status: " + p.Status(),
		fmt.Sprintf("FPS: %d", p.fps),
		fmt.Sprintf("Updates/s: %d", p.rate),
	}
	model := p.model
	if model == "" {
		model = "none"
	}
	if p.loading {
		model += loadingSuffix
	}
	lines = append(lines, "Model: "+model)
	if p.hasSample {
		s := p.sample
		lines = append(lines,
			fmt.Sprintf("Gyro: X %.1f° Y %.1f° Z %.1f°", s.GyroX, s.GyroY, s.GyroZ),
			fmt.Sprintf("Temp: %.1f °C", s.Temperature),
		)
	}
	if p.notice != "" {
		lines = append(lines, "Error: "+p.notice)
	}
	return lines
}

func formatElapsed(d time.Duration) string {
	s := int(d / time.Second)
	if s < 0 {
		s = 0
	}
	h, m, sec := s/3600, (s/60)%60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%02d:%02d", m, sec)
}
