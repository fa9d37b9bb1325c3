// Package asset owns the model shown in the scene: loading it off the render thread, swapping
// it in atomically, recentering/scaling it and releasing every GPU resource of the model it replaces.
package asset

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"gyroview/internal/geom"
)

// DefaultName is the model info shown for the placeholder cube.
const DefaultName = "Default Cube"

// Material is a renderer material as seen by the core. Wireframe is read by the renderer each frame.
type Material struct {
	Name      string
	Wireframe bool
}

// Mesh is one drawable part. A mesh with several materials toggles all of them.
type Mesh struct {
	Name      string
	Materials []*Material
}

// Asset is an uploaded model. Native carries the renderer's own handle (e.g. a raylib model);
// the core never looks inside it.
type Asset struct {
	ID     uuid.UUID
	Name   string
	Size   int64
	Format Format
	// Source is the file the asset was loaded from; empty for in-memory blobs and the placeholder.
	Source string

	Meshes []*Mesh
	// Overlays are decoration meshes (edge lines of the placeholder) drawn as-is and
	// skipped by wireframe toggling.
	Overlays []*Mesh
	// Bounds is the model-space bounding box before Offset and Scale.
	Bounds geom.Box3
	Native any

	// Offset moves the bounding-box center to the origin so rotation pivots about it.
	Offset   geom.Vec3
	Scale    float32
	Rotation geom.Vec3

	arena Arena
}

// New returns an empty asset with a fresh identity and unit scale.
func New(name string, size int64) *Asset {
	return &Asset{ID: uuid.New(), Name: name, Size: size, Scale: 1}
}

// Own records a GPU resource owned by this asset. See Arena.Own.
func (a *Asset) Own(kind HandleKind, id uint32, release func()) {
	a.arena.Own(kind, id, release)
}

// Resources exposes the ownership arena for inspection.
func (a *Asset) Resources() *Arena {
	return &a.arena
}

// Outstanding returns how many owned resources are still allocated.
func (a *Asset) Outstanding() int {
	return a.arena.Outstanding()
}

// Release frees all owned resources. Calling it again is a no-op.
func (a *Asset) Release() {
	a.arena.Release()
}

// Released reports whether the asset holds no GPU resources.
func (a *Asset) Released() bool {
	return a.arena.Outstanding() == 0
}

// Materials returns each distinct material of the asset's meshes once, in mesh order.
func (a *Asset) Materials() []*Material {
	seen := make(map[*Material]bool)
	var out []*Material
	for _, m := range a.Meshes {
		for _, mat := range m.Materials {
			if mat == nil || seen[mat] {
				continue
			}
			seen[mat] = true
			out = append(out, mat)
		}
	}
	return out
}

// Info is the model description shown in the HUD, e.g. "drone.glb (1.2 MB)".
func (a *Asset) Info() string {
	if a.Size <= 0 {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, humanize.Bytes(uint64(a.Size)))
}
