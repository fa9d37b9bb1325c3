// Package terminal is the in-window console: a command bar with the recent log above it,
// toggled with ESC, plus single-key shortcuts while it is closed.
package terminal

import (
	"unicode/utf8"

	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/commands"
	"gyroview/internal/logger"
)

const (
	BarHeight = 40
	prompt    = "> "
	fontSize  = 20
	padding   = 8
	// Number of log lines drawn above the input bar when the console is open.
	maxLinesOnScreen = 14
	lineHeight       = fontSize + 4
	maxLineLen       = 200
	maxHistory       = 50
)

var (
	barColor    = rl.NewColor(40, 40, 40, 255)
	lineColor   = rl.NewColor(80, 80, 80, 255)
	logBgColor  = rl.NewColor(24, 24, 24, 240)
	logTxtColor = rl.LightGray
)

// Terminal reads command lines into the registry. While closed it routes bound keys to their
// handlers instead. Update and Draw run on the window goroutine.
type Terminal struct {
	log      *logger.Logger
	reg      *commands.Registry
	inputBuf string
	open     bool
	font     rl.Font
	keys     map[int32]func()
	history  []string
	recall   int
}

// New returns a closed console that runs lines through reg and echoes to log.
func New(log *logger.Logger, reg *commands.Registry) *Terminal {
	return &Terminal{log: log, reg: reg, keys: make(map[int32]func())}
}

// Bind runs fn when key is pressed while the console is closed.
func (t *Terminal) Bind(key int32, fn func()) {
	t.keys[key] = fn
}

// IsOpen reports whether the console is visible and capturing the keyboard.
func (t *Terminal) IsOpen() bool {
	return t.open
}

// SetFont sets the font used to draw the console. Zero texture ID = raylib default.
func (t *Terminal) SetFont(font rl.Font) {
	t.font = font
}

// Toggle opens or closes the console.
func (t *Terminal) Toggle() {
	t.open = !t.open
	t.inputBuf = ""
	t.recall = len(t.history)
}

// Update handles ESC, hotkeys when closed and editing when open. Call once per frame.
func (t *Terminal) Update() {
	if rl.IsKeyPressed(rl.KeyEscape) {
		t.Toggle()
		return
	}
	if !t.open {
		t.hotkeys(rl.IsKeyPressed)
		return
	}
	// Paste: Ctrl+V (Windows/Linux) or Cmd+V (macOS)
	if rl.IsKeyPressed(rl.KeyV) && (rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl) || rl.IsKeyDown(rl.KeyLeftSuper) || rl.IsKeyDown(rl.KeyRightSuper)) {
		t.inputBuf += rl.GetClipboardText()
	} else {
		for c := rl.GetCharPressed(); c != 0; c = rl.GetCharPressed() {
			t.inputBuf += string(rune(c))
		}
	}
	if (rl.IsKeyPressed(rl.KeyBackspace) || rl.IsKeyPressedRepeat(rl.KeyBackspace)) && len(t.inputBuf) > 0 {
		_, size := utf8.DecodeLastRuneInString(t.inputBuf)
		t.inputBuf = t.inputBuf[:len(t.inputBuf)-size]
	}
	if rl.IsKeyPressed(rl.KeyUp) {
		t.browse(-1)
	}
	if rl.IsKeyPressed(rl.KeyDown) {
		t.browse(1)
	}
	if rl.IsKeyPressed(rl.KeyEnter) || rl.IsKeyPressed(rl.KeyKpEnter) {
		line := t.inputBuf
		t.inputBuf = ""
		t.Submit(line)
	}
}

func (t *Terminal) hotkeys(pressed func(key int32) bool) {
	for key, fn := range t.keys {
		if pressed(key) {
			fn()
		}
	}
}

// browse steps through previously submitted lines; past the newest the input is cleared.
func (t *Terminal) browse(step int) {
	if len(t.history) == 0 {
		return
	}
	t.recall += step
	if t.recall < 0 {
		t.recall = 0
	}
	if t.recall >= len(t.history) {
		t.recall = len(t.history)
		t.inputBuf = ""
		return
	}
	t.inputBuf = t.history[t.recall]
}

// Submit echoes line and executes it. Blank lines are ignored.
func (t *Terminal) Submit(line string) {
	args, ok := commands.Parse(line)
	if !ok {
		return
	}
	t.log.Log(prompt + line)
	if n := len(t.history); n == 0 || t.history[n-1] != line {
		t.history = append(t.history, line)
		if len(t.history) > maxHistory {
			t.history = t.history[1:]
		}
	}
	t.recall = len(t.history)
	if err := t.reg.Execute(args); err != nil {
		t.log.Log(err.Error())
	}
}

// Draw draws the input bar at the bottom and the recent log lines above it when open.
func (t *Terminal) Draw() {
	if !t.open {
		return
	}
	screenW := int(rl.GetScreenWidth())
	screenH := int(rl.GetScreenHeight())
	barY := screenH - BarHeight

	logHeight := maxLinesOnScreen * lineHeight
	logY := barY - logHeight
	if logY < 0 {
		logHeight = barY
		logY = 0
	}
	if logHeight > 0 {
		rl.DrawRectangle(0, int32(logY), int32(screenW), int32(logHeight), logBgColor)
	}
	lines := t.log.Lines()
	start := 0
	if len(lines) > maxLinesOnScreen {
		start = len(lines) - maxLinesOnScreen
	}
	for i := start; i < len(lines); i++ {
		y := logY + (i-start)*lineHeight + padding
		t.text(clip(lines[i]), padding, y, logTxtColor)
	}

	rl.DrawRectangle(0, int32(barY), int32(screenW), int32(BarHeight), barColor)
	rl.DrawRectangle(0, int32(barY), int32(screenW), 1, lineColor)
	t.text(prompt+t.inputBuf+"|", padding, barY+padding, rl.White)
}

func (t *Terminal) text(s string, x, y int, c rl.Color) {
	if t.font.Texture.ID != 0 {
		rl.DrawTextEx(t.font, s, rl.NewVector2(float32(x), float32(y)), fontSize, 1, c)
		return
	}
	rl.DrawText(s, int32(x), int32(y), fontSize, c)
}

func clip(line string) string {
	if len(line) <= maxLineLen {
		return line
	}
	cut := maxLineLen - 3
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut] + "..."
}
