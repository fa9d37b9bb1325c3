package graphics

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	rl "github.com/gen2brain/raylib-go/raylib"
)

const (
	overlayFontSize   = 18
	overlayPadding    = 12
	overlayLineHeight = overlayFontSize + 6
	// refreshInterval: status text is rebuilt every N frames to limit allocations.
	refreshInterval = 10
)

var (
	panelColor = rl.NewColor(0, 0, 0, 160)
	textColor  = rl.NewColor(230, 230, 230, 255)
	okColor    = rl.NewColor(80, 220, 120, 255)
	warnColor  = rl.NewColor(240, 90, 80, 255)
	hintColor  = rl.NewColor(160, 160, 160, 200)
)

const keyMap = "Drag: orbit   Wheel: zoom   R: reset   C: center   W: wireframe   Esc: console"

// StatusSource supplies the lines of the status panel; hud.Panel implements it.
type StatusSource interface {
	Lines() []string
	Connected() bool
}

// Overlay draws the status panel in the top-left corner, an optional memory readout in the
// top-right and the key map along the bottom.
type Overlay struct {
	ShowHUD bool
	ShowMem bool

	src       StatusSource
	font      rl.Font
	frame     uint32
	lines     []string
	connected bool
	memText   string
	mem       runtime.MemStats
}

// NewOverlay returns an overlay over src with the panel shown.
func NewOverlay(src StatusSource) *Overlay {
	return &Overlay{ShowHUD: true, src: src}
}

// SetFont sets the font used for all overlay text. Zero texture ID = raylib default.
func (o *Overlay) SetFont(font rl.Font) {
	o.font = font
}

// refresh rebuilds the cached text on the first frame and every refreshInterval frames after.
func (o *Overlay) refresh() {
	o.frame++
	if o.lines != nil && o.frame%refreshInterval != 0 {
		return
	}
	o.lines = append(o.lines[:0], o.src.Lines()...)
	o.connected = o.src.Connected()
	if o.ShowMem {
		runtime.ReadMemStats(&o.mem)
		o.memText = fmt.Sprintf("Mem: %s", humanize.IBytes(o.mem.Alloc))
	}
}

// lineColor picks the color of a panel line: the first line is the connection status.
func lineColor(i int, line string, connected bool) rl.Color {
	switch {
	case strings.HasPrefix(line, "Error"):
		return warnColor
	case i == 0 && connected:
		return okColor
	case i == 0:
		return warnColor
	}
	return textColor
}

// Draw renders the overlay. Call after the 3D scene and before the console.
func (o *Overlay) Draw() {
	o.refresh()
	screenW := int32(rl.GetScreenWidth())
	screenH := int32(rl.GetScreenHeight())

	if o.ShowHUD && len(o.lines) > 0 {
		w := int32(0)
		for _, l := range o.lines {
			if lw := o.measure(l); lw > w {
				w = lw
			}
		}
		h := int32(len(o.lines))*overlayLineHeight + overlayPadding
		rl.DrawRectangle(overlayPadding/2, overlayPadding/2, w+overlayPadding*2, h, panelColor)
		for i, l := range o.lines {
			y := int32(overlayPadding + i*overlayLineHeight)
			o.text(l, overlayPadding+4, y, lineColor(i, l, o.connected))
		}
		o.text(keyMap, overlayPadding, screenH-overlayLineHeight, hintColor)
	}

	if o.ShowMem && o.memText != "" {
		o.text(o.memText, screenW-o.measure(o.memText)-overlayPadding, overlayPadding, okColor)
	}
}

func (o *Overlay) measure(s string) int32 {
	if o.font.Texture.ID != 0 {
		return int32(rl.MeasureTextEx(o.font, s, overlayFontSize, 1).X)
	}
	return rl.MeasureText(s, overlayFontSize)
}

func (o *Overlay) text(s string, x, y int32, c rl.Color) {
	if o.font.Texture.ID != 0 {
		rl.DrawTextEx(o.font, s, rl.NewVector2(float32(x), float32(y)), overlayFontSize, 1, c)
		return
	}
	rl.DrawText(s, x, y, overlayFontSize, c)
}
