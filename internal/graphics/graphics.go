// Package graphics owns the raylib window: the frame surface the render loop drives, dropped
// files and the 2D status overlay.
package graphics

import (
	"errors"

	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/config"
	"gyroview/internal/logger"
)

// ErrNoWindow is returned when raylib could not create the window or GL context.
var ErrNoWindow = errors.New("graphics: window could not be created")

// Window is the loop.Surface backed by raylib. Open must be called on the main OS thread and
// every method after it on the same goroutine.
type Window struct {
	clear rl.Color
	font  rl.Font
	log   *logger.Logger
}

// Open creates a resizable window and sets the frame pacing. ESC is left to the console, so
// the window closes only through its close button.
func Open(cfg config.WindowConfig, clear rl.Color, log *logger.Logger) (*Window, error) {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagMsaa4xHint | rl.FlagVsyncHint)
	rl.InitWindow(int32(cfg.Width), int32(cfg.Height), cfg.Title)
	if !rl.IsWindowReady() {
		return nil, ErrNoWindow
	}
	rl.SetExitKey(rl.KeyNull)
	rl.SetTargetFPS(int32(cfg.TargetFPS))
	log.Logf("Window %dx%d, target %d fps", cfg.Width, cfg.Height, cfg.TargetFPS)
	return &Window{clear: clear, log: log}, nil
}

// LoadFont loads a TTF/OTF file for the overlay and console. On failure raylib's built-in
// font stays in use.
func (w *Window) LoadFont(path string) bool {
	f := rl.LoadFont(path)
	if f.Texture.ID == 0 {
		w.log.Warnf("could not load font %s", path)
		return false
	}
	rl.SetTextureFilter(f.Texture, rl.FilterBilinear)
	if w.font.Texture.ID != 0 {
		rl.UnloadFont(w.font)
	}
	w.font = f
	return true
}

// Font returns the loaded font; a zero texture ID means raylib's default.
func (w *Window) Font() rl.Font {
	return w.font
}

// ShouldClose reports whether the close button was pressed.
func (w *Window) ShouldClose() bool {
	return rl.WindowShouldClose()
}

// BeginFrame starts drawing and clears the background.
func (w *Window) BeginFrame() {
	rl.BeginDrawing()
	rl.ClearBackground(w.clear)
}

// EndFrame presents the frame and waits for the target frame time.
func (w *Window) EndFrame() {
	rl.EndDrawing()
}

// DroppedFiles returns the paths dropped onto the window since the last call.
func (w *Window) DroppedFiles() []string {
	if !rl.IsFileDropped() {
		return nil
	}
	files := rl.LoadDroppedFiles()
	rl.UnloadDroppedFiles()
	return files
}

// Close frees the font and closes the window.
func (w *Window) Close() {
	if w.font.Texture.ID != 0 {
		rl.UnloadFont(w.font)
	}
	rl.CloseWindow()
}
