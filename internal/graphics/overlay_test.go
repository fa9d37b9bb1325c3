package graphics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type status struct {
	lines     []string
	connected bool
	calls     int
}

func (s *status) Lines() []string {
	s.calls++
	return s.lines
}

func (s *status) Connected() bool { return s.connected }

func TestRefreshCachesBetweenIntervals(t *testing.T) {
	src := &status{lines: []string{"Status: Disconnected"}}
	o := NewOverlay(src)

	o.refresh()
	assert.Equal(t, []string{"Status: Disconnected"}, o.lines)
	assert.Equal(t, 1, src.calls)

	src.lines = []string{"Status: Connected (00:01)"}
	src.connected = true
	for i := 2; i < refreshInterval; i++ {
		o.refresh()
	}
	assert.Equal(t, 1, src.calls)
	assert.False(t, o.connected)

	o.refresh()
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, []string{"Status: Connected (00:01)"}, o.lines)
	assert.True(t, o.connected)
}

func TestRefreshReadsMemoryWhenShown(t *testing.T) {
	o := NewOverlay(&status{lines: []string{"x"}})
	o.ShowMem = true
	o.refresh()
	assert.Contains(t, o.memText, "Mem: ")
}

func TestLineColor(t *testing.T) {
	assert.Equal(t, okColor, lineColor(0, "Status: Connected (00:03)", true))
	assert.Equal(t, warnColor, lineColor(0, "Status: Disconnected", false))
	assert.Equal(t, textColor, lineColor(1, "FPS: 60", true))
	assert.Equal(t, warnColor, lineColor(4, "Error: connection refused", true))
}
