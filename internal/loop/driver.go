// Package loop drives the per-frame cycle: drain queued events, update input, advance the
// orientation filter, apply it to the installed model and draw.
package loop

import (
	"context"
	"sync"
	"time"

	"gyroview/internal/asset"
	"gyroview/internal/geom"
)

// Surface is the window the loop presents to. Frame pacing (vsync / target FPS) comes from it.
type Surface interface {
	ShouldClose() bool
	BeginFrame()
	EndFrame()
}

// Renderer draws the scene with the given asset, which may be nil.
type Renderer interface {
	Render(a *asset.Asset)
}

// RendererFunc adapts a plain function to Renderer.
type RendererFunc func(a *asset.Asset)

// Render calls f(a).
func (f RendererFunc) Render(a *asset.Asset) { f(a) }

// Drainer runs queued callbacks; eventloop.Queue implements it.
type Drainer interface {
	Drain() int
}

// Orientation is the smoothed rotation source.
type Orientation interface {
	Tick()
	Current() geom.Vec3
}

// Scene exposes the installed asset.
type Scene interface {
	Installed() *asset.Asset
}

// Controls is per-frame input handling (camera orbit, hotkeys, console).
type Controls interface {
	UpdateControls()
}

// ControlsFunc adapts a plain function to Controls.
type ControlsFunc func()

// UpdateControls calls f().
func (f ControlsFunc) UpdateControls() { f() }

// SampleCounter reports how many telemetry samples have arrived so far.
type SampleCounter interface {
	SamplesReceived() uint64
}

// StatsSink receives the once-per-second meters.
type StatsSink interface {
	FPS(int)
	UpdateRate(int)
}

// Config wires a Driver. Controls, Samples and Stats may be nil.
type Config struct {
	Queue       Drainer
	Orientation Orientation
	Scene       Scene
	Renderer    Renderer
	Controls    Controls
	Samples     SampleCounter
	Stats       StatsSink
}

// Driver owns the frame cycle. Everything except Stop runs on the loop goroutine.
type Driver struct {
	cfg Config
	now func() time.Time

	frames uint64
	fps    Meter
	rate   Meter

	stop     chan struct{}
	stopOnce sync.Once
}

// New returns a driver; call Run on the goroutine that owns the window.
func New(cfg Config) *Driver {
	return &Driver{cfg: cfg, now: time.Now, stop: make(chan struct{})}
}

// Run loops until ctx is done, Stop is called or the surface asks to close.
func (d *Driver) Run(ctx context.Context, s Surface) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-d.stop:
			return nil
		default:
		}
		if s.ShouldClose() {
			return nil
		}
		d.Update(d.now())

		s.BeginFrame()
		d.Draw()
		s.EndFrame()
	}
}

// Stop ends Run after the current frame. Safe from any goroutine, more than once.
func (d *Driver) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
}

// Frame runs one full cycle without a surface.
func (d *Driver) Frame(now time.Time) {
	d.Update(now)
	d.Draw()
}

// Update drains events, handles input, advances the filter onto the installed asset and rolls the meters.
func (d *Driver) Update(now time.Time) {
	d.cfg.Queue.Drain()
	if d.cfg.Controls != nil {
		d.cfg.Controls.UpdateControls()
	}
	d.cfg.Orientation.Tick()
	if a := d.cfg.Scene.Installed(); a != nil {
		a.Rotation = d.cfg.Orientation.Current()
	}

	d.frames++
	if fps, ok := d.fps.Observe(now, d.frames); ok && d.cfg.Stats != nil {
		d.cfg.Stats.FPS(fps)
	}
	if d.cfg.Samples != nil {
		if r, ok := d.rate.Observe(now, d.cfg.Samples.SamplesReceived()); ok && d.cfg.Stats != nil {
			d.cfg.Stats.UpdateRate(r)
		}
	}
}

// Draw issues the single render call for this frame.
func (d *Driver) Draw() {
	d.cfg.Renderer.Render(d.cfg.Scene.Installed())
}

// Frames returns how many frames have been updated.
func (d *Driver) Frames() uint64 {
	return d.frames
}
