// Package orientation turns telemetry samples into the rotation shown on screen.
//
// The filter keeps two orientations: target, overwritten by every sample, and current, which the
// render loop advances toward target once per frame. The step is a fixed per-frame factor, so the
// visual convergence rate follows the display refresh rate.
package orientation

import (
	"gyroview/internal/geom"
	"gyroview/internal/telemetry"
)

// Limits and default for the per-frame interpolation factor.
const (
	MinSpeed     float32 = 0.01
	MaxSpeed     float32 = 1.0
	DefaultSpeed float32 = 0.1
)

// Filter owns the orientation state. It is not safe for concurrent use; the event loop is its only caller.
type Filter struct {
	target  geom.Vec3
	current geom.Vec3
	smooth  bool
	speed   float32
	live    bool
}

// New returns a filter at rest with the given smoothing settings.
func New(smooth bool, speed float32) *Filter {
	f := &Filter{smooth: smooth}
	f.SetSpeed(speed)
	return f
}

// SetLive marks whether samples should be accepted. The viewer ties it to the Connected state.
func (f *Filter) SetLive(live bool) {
	f.live = live
}

// Live reports whether samples are accepted.
func (f *Filter) Live() bool {
	return f.live
}

// OnSample replaces the target with the sample's angles converted to radians. No-op when not live.
func (f *Filter) OnSample(s telemetry.SensorSample) {
	if !f.live {
		return
	}
	f.target = geom.Vec3{
		X: geom.DegToRad(float32(s.GyroX)),
		Y: geom.DegToRad(float32(s.GyroY)),
		Z: geom.DegToRad(float32(s.GyroZ)),
	}
}

// Tick advances current one frame toward target.
func (f *Filter) Tick() {
	if !f.smooth {
		f.current = f.target
		return
	}
	f.current = geom.LerpVec(f.current, f.target, f.speed)
}

// Reset zeroes both target and current.
func (f *Filter) Reset() {
	f.target = geom.Vec3{}
	f.current = geom.Vec3{}
}

// SetSpeed clamps speed to [MinSpeed, MaxSpeed] and stores it. Returns the stored value.
func (f *Filter) SetSpeed(speed float32) float32 {
	f.speed = geom.Clamp(speed, MinSpeed, MaxSpeed)
	return f.speed
}

// SetSmoothing toggles interpolation and sets the speed in one call. Returns the stored speed.
func (f *Filter) SetSmoothing(enabled bool, speed float32) float32 {
	f.smooth = enabled
	return f.SetSpeed(speed)
}

// Smooth reports whether interpolation is enabled.
func (f *Filter) Smooth() bool { return f.smooth }

// Speed returns the interpolation factor.
func (f *Filter) Speed() float32 { return f.speed }

// Target returns the latest sample orientation in radians.
func (f *Filter) Target() geom.Vec3 { return f.target }

// Current returns the smoothed orientation in radians.
func (f *Filter) Current() geom.Vec3 { return f.current }
