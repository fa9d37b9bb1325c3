// Package scene is the raylib side of the viewer: the orbit camera, the reference grid,
// uploading models to the GPU and drawing the installed one.
//
// Everything here touches the GL context and must run on the window goroutine.
package scene

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/asset"
	"gyroview/internal/geom"
	"gyroview/internal/logger"
)

const (
	gridExtent     = 10
	gridMinorStep  = 1
	gridMajorStep  = 5
	gridMinorAlpha = 50
	gridMajorAlpha = 120
	axisLineAlpha  = 220

	minDistance      = 0.5
	maxDistance      = 50
	orbitSensitivity = 0.005 // radians per pixel
	zoomStep         = 0.1
)

var background = rl.NewColor(26, 26, 26, 255)

// Scene holds the 3D camera and draws the installed asset. It implements asset.CameraRig and
// asset.Backend.
type Scene struct {
	Camera      rl.Camera3D
	GridVisible bool

	orbit   geom.Orbit
	light   geom.Vec3
	shading shading
	log     *logger.Logger
}

// New returns a scene with a perspective camera at (5,5,5) looking at the origin.
// fov is the vertical field of view in degrees.
func New(fov float32, log *logger.Logger) *Scene {
	if fov <= 0 || fov >= 180 {
		fov = 75
	}
	s := &Scene{GridVisible: true, log: log, light: geom.V3(0.5, 1, 0.5)}
	s.Camera.Up = rl.NewVector3(0, 1, 0)
	s.Camera.Fovy = fov
	s.Camera.Projection = rl.CameraPerspective
	s.LookAt(geom.V3(5, 5, 5), geom.Vec3{})
	return s
}

// Background is the clear color the window uses behind the scene.
func Background() rl.Color {
	return background
}

// FieldOfView returns the vertical field of view in degrees.
func (s *Scene) FieldOfView() float32 {
	return s.Camera.Fovy
}

// LookAt moves the camera. Orbiting continues around target from there.
func (s *Scene) LookAt(position, target geom.Vec3) {
	dist := position.Sub(target).Length()
	limit := float32(maxDistance)
	if dist*4 > limit {
		limit = dist * 4
	}
	s.orbit = geom.OrbitFrom(position, target, minDistance, limit)
	s.syncCamera()
}

// Position returns the camera position.
func (s *Scene) Position() geom.Vec3 {
	return fromVector(s.Camera.Position)
}

// UpdateControls orbits the camera while the left mouse button is held and zooms on the wheel.
func (s *Scene) UpdateControls() {
	var dx, dy float32
	if rl.IsMouseButtonDown(rl.MouseButtonLeft) {
		d := rl.GetMouseDelta()
		dx, dy = d.X, d.Y
	}
	if orbitInput(&s.orbit, dx, dy, rl.GetMouseWheelMove()) {
		s.syncCamera()
	}
}

// orbitInput applies a mouse drag (pixels) and wheel movement to o. Dragging right turns the
// view right and dragging down looks from higher up.
func orbitInput(o *geom.Orbit, dx, dy, wheel float32) bool {
	if dx == 0 && dy == 0 && wheel == 0 {
		return false
	}
	o.Rotate(-dx*orbitSensitivity, dy*orbitSensitivity)
	if wheel != 0 {
		o.Zoom(1 - wheel*zoomStep)
	}
	return true
}

func (s *Scene) syncCamera() {
	s.Camera.Position = toVector(s.orbit.Position())
	s.Camera.Target = toVector(s.orbit.Target)
}

// Render3D draws the grid and the asset between BeginMode3D and EndMode3D. Call after the
// background is cleared and before any 2D overlay. a may be nil.
func (s *Scene) Render3D(a *asset.Asset) {
	rl.BeginMode3D(s.Camera)
	if s.GridVisible {
		drawGrid()
	}
	if a != nil {
		s.shading.apply(s.Position(), s.light)
		drawAsset(a)
	}
	rl.EndMode3D()
}

// Close releases the scene's own GPU resources. Assets are released by their manager first.
func (s *Scene) Close() {
	s.shading.unload()
}

// drawGrid draws the reference grid on the XZ plane with major/minor lines and the three axes.
func drawGrid() {
	minor := rl.NewColor(128, 128, 128, gridMinorAlpha)
	major := rl.NewColor(160, 160, 160, gridMajorAlpha)

	var start, end rl.Vector3
	for i := -gridExtent; i <= gridExtent; i += gridMinorStep {
		c := major
		if i%gridMajorStep != 0 {
			c = minor
		}
		start.X, start.Y, start.Z = float32(i), 0, -gridExtent
		end.X, end.Y, end.Z = float32(i), 0, gridExtent
		rl.DrawLine3D(start, end, c)
		start.X, start.Y, start.Z = -gridExtent, 0, float32(i)
		end.X, end.Y, end.Z = gridExtent, 0, float32(i)
		rl.DrawLine3D(start, end, c)
	}

	// X red, Y green, Z blue
	rl.DrawLine3D(rl.NewVector3(-gridExtent, 0, 0), rl.NewVector3(gridExtent, 0, 0), rl.NewColor(220, 80, 80, axisLineAlpha))
	rl.DrawLine3D(rl.NewVector3(0, -gridExtent, 0), rl.NewVector3(0, gridExtent, 0), rl.NewColor(80, 220, 80, axisLineAlpha))
	rl.DrawLine3D(rl.NewVector3(0, 0, -gridExtent), rl.NewVector3(0, 0, gridExtent), rl.NewColor(80, 80, 220, axisLineAlpha))
}

func toVector(v geom.Vec3) rl.Vector3 {
	return rl.NewVector3(v.X, v.Y, v.Z)
}

func fromVector(v rl.Vector3) geom.Vec3 {
	return geom.V3(v.X, v.Y, v.Z)
}
