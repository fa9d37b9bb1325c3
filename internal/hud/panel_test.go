package hud

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gyroview/internal/telemetry"
)

func TestPanelConnectionLifecycle(t *testing.T) {
	clock := time.Unix(1700000000, 0)
	p := New()
	p.now = func() time.Time { return clock }

	assert.Equal(t, "Disconnected", p.Status())
	p.Connection(telemetry.Connecting, nil)
	assert.Equal(t, "Connecting...", p.Status())

	p.Connection(telemetry.Connected, nil)
	clock = clock.Add(65 * time.Second)
	assert.True(t, p.Connected())
	assert.Equal(t, "Connected (01:05)", p.Status())

	clock = clock.Add(2 * time.Hour)
	assert.Equal(t, "Connected (2:01:05)", p.Status())

	p.Connection(telemetry.Failed, errors.New("read: connection reset"))
	p.Connection(telemetry.Disconnected, nil)
	assert.False(t, p.Connected())
	assert.Zero(t, p.Elapsed())
	assert.Equal(t, "read: connection reset", p.Notice())
	assert.Contains(t, p.Lines(), "Error: read: connection reset")

	p.Connection(telemetry.Connecting, nil)
	assert.Empty(t, p.Notice())
}

func TestPanelLines(t *testing.T) {
	p := New()
	p.FPS(60)
	p.UpdateRate(25)
	p.ModelInfo("drone.glb (1.2 MB)")
	p.Loading(true)

	assert.Equal(t, []string{
		"Status: Disconnected",
		"FPS: 60",
		"Updates/s: 25",
		"Model: drone.glb (1.2 MB) (loading...)",
	}, p.Lines())

	p.Loading(false)
	p.Sample(telemetry.SensorSample{GyroX: 12.34, GyroY: -4.5, Temperature: 25.06})
	lines := p.Lines()
	assert.Equal(t, "Model: drone.glb (1.2 MB)", lines[3])
	assert.Equal(t, "Gyro: X 12.3° Y -4.5° Z 0.0°", lines[4])
	assert.Equal(t, "Temp: 25.1 °C", lines[5])

	s, ok := p.LastSample()
	assert.True(t, ok)
	assert.Equal(t, 12.34, s.GyroX)
}

func TestPanelWithoutModel(t *testing.T) {
	assert.Contains(t, New().Lines(), "Model: none")
}
