package geom

import "github.com/chewxy/math32"

// Box3 is an axis-aligned bounding box.
type Box3 struct {
	Min, Max Vec3
}

// EmptyBox returns a box that contains nothing; Expand grows it.
func EmptyBox() Box3 {
	inf := math32.Inf(1)
	return Box3{Min: Vec3{inf, inf, inf}, Max: Vec3{-inf, -inf, -inf}}
}

// IsEmpty reports whether the box contains no points.
func (b Box3) IsEmpty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Expand grows b to include p.
func (b Box3) Expand(p Vec3) Box3 {
	b.Min = Vec3{math32.Min(b.Min.X, p.X), math32.Min(b.Min.Y, p.Y), math32.Min(b.Min.Z, p.Z)}
	b.Max = Vec3{math32.Max(b.Max.X, p.X), math32.Max(b.Max.Y, p.Y), math32.Max(b.Max.Z, p.Z)}
	return b
}

// Center returns the midpoint of the box, or the origin for an empty box.
func (b Box3) Center() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Min.Add(b.Max).Scale(0.5)
}

// Size returns the box extents, or zero for an empty box.
func (b Box3) Size() Vec3 {
	if b.IsEmpty() {
		return Vec3{}
	}
	return b.Max.Sub(b.Min)
}
