package geom

import "github.com/chewxy/math32"

// maxPitch keeps the orbit camera just short of the poles so the up vector stays valid.
const maxPitch = math32.Pi/2 - 0.01

// Orbit is a camera position expressed around a target: yaw about +Y, pitch above the XZ plane,
// and distance from the target. Distance is kept within [MinDistance, MaxDistance].
type Orbit struct {
	Target      Vec3
	Yaw         float32
	Pitch       float32
	Distance    float32
	MinDistance float32
	MaxDistance float32
}

// OrbitFrom builds an orbit that reproduces position looking at target.
func OrbitFrom(position, target Vec3, minDist, maxDist float32) Orbit {
	d := position.Sub(target)
	dist := d.Length()
	o := Orbit{Target: target, Distance: dist, MinDistance: minDist, MaxDistance: maxDist}
	if dist > 0 {
		o.Yaw = math32.Atan2(d.X, d.Z)
		o.Pitch = math32.Asin(Clamp(d.Y/dist, -1, 1))
	}
	o.clamp()
	return o
}

// Rotate adds yaw/pitch deltas in radians.
func (o *Orbit) Rotate(dYaw, dPitch float32) {
	o.Yaw += dYaw
	o.Pitch += dPitch
	o.clamp()
}

// Zoom scales the distance by factor (values below 1 move closer).
func (o *Orbit) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	o.Distance *= factor
	o.clamp()
}

// Position returns the camera position for the current orbit.
func (o Orbit) Position() Vec3 {
	cp := math32.Cos(o.Pitch)
	return o.Target.Add(Vec3{
		X: o.Distance * cp * math32.Sin(o.Yaw),
		Y: o.Distance * math32.Sin(o.Pitch),
		Z: o.Distance * cp * math32.Cos(o.Yaw),
	})
}

func (o *Orbit) clamp() {
	o.Pitch = Clamp(o.Pitch, -maxPitch, maxPitch)
	if o.MaxDistance > 0 {
		o.Distance = Clamp(o.Distance, o.MinDistance, o.MaxDistance)
	} else if o.Distance < o.MinDistance {
		o.Distance = o.MinDistance
	}
}
