package scene

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/asset"
	"gyroview/internal/geom"
)

// drawAsset draws every mesh of a with its material, in wire mode where the material asks for it,
// then the overlays.
func drawAsset(a *asset.Asset) {
	n, ok := a.Native.(*model)
	if !ok || a.Released() {
		return
	}
	tf := assetTransform(a, n.rl.Transform)
	for i, mesh := range n.meshes {
		b := n.bindings[i]
		if b >= len(n.mats) {
			continue
		}
		wire := n.flags[b].Wireframe
		if wire {
			rl.EnableWireMode()
		}
		rl.DrawMesh(mesh, n.mats[b], tf)
		if wire {
			rl.DisableWireMode()
		}
	}
	if n.edges != nil {
		for _, l := range edgeLines(*n.edges, tf) {
			rl.DrawLine3D(l[0], l[1], edgeColor)
		}
	}
}

// assetTransform moves the bounding-box center to the origin, scales, then applies the
// orientation. base (the file's own root transform) comes first.
func assetTransform(a *asset.Asset, base rl.Matrix) rl.Matrix {
	scale := a.Scale
	if scale == 0 {
		scale = 1
	}
	local := rl.MatrixMultiply(
		rl.MatrixMultiply(
			rl.MatrixTranslate(a.Offset.X, a.Offset.Y, a.Offset.Z),
			rl.MatrixScale(scale, scale, scale),
		),
		rl.MatrixRotateXYZ(toVector(a.Rotation)),
	)
	return rl.MatrixMultiply(base, local)
}

// boxEdges are the 12 corner pairs of a box; corner bit 0 is X, bit 1 is Y, bit 2 is Z.
var boxEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func edgeLines(b geom.Box3, tf rl.Matrix) [12][2]rl.Vector3 {
	var corners [8]rl.Vector3
	for i := range corners {
		c := b.Min
		if i&1 != 0 {
			c.X = b.Max.X
		}
		if i&2 != 0 {
			c.Y = b.Max.Y
		}
		if i&4 != 0 {
			c.Z = b.Max.Z
		}
		corners[i] = rl.Vector3Transform(toVector(c), tf)
	}
	var out [12][2]rl.Vector3
	for i, e := range boxEdges {
		out[i] = [2]rl.Vector3{corners[e[0]], corners[e[1]]}
	}
	return out
}
