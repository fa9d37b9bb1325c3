package asset

// HandleKind classifies a GPU-side resource owned by an asset.
type HandleKind int

const (
	// Geometry is a vertex array / buffer set for one mesh.
	Geometry HandleKind = iota
	// Texture is an image uploaded for a material map.
	Texture
	// MaterialSlot is a material allocated for the asset alone (shader params, map table).
	MaterialSlot
	// Storage is host-side bookkeeping the renderer allocated for the asset (mesh/material arrays).
	Storage
)

func (k HandleKind) String() string {
	switch k {
	case Geometry:
		return "geometry"
	case Texture:
		return "texture"
	case MaterialSlot:
		return "material"
	case Storage:
		return "storage"
	}
	return "unknown"
}

// Handle is one owned resource and the function that frees it.
type Handle struct {
	Kind    HandleKind
	ID      uint32
	release func()
	done    bool
}

// Arena is the list of resources an asset owns, recorded when the asset is uploaded.
// Releasing walks that list directly instead of re-traversing a scene graph.
type Arena struct {
	handles     []Handle
	outstanding int
}

// Own records a resource. release may be nil for resources freed by a later Storage handle.
func (a *Arena) Own(kind HandleKind, id uint32, release func()) {
	a.handles = append(a.handles, Handle{Kind: kind, ID: id, release: release})
	a.outstanding++
}

// Outstanding returns how many recorded resources have not been released.
func (a *Arena) Outstanding() int {
	return a.outstanding
}

// Len returns how many resources were ever recorded.
func (a *Arena) Len() int {
	return len(a.handles)
}

// Count returns how many recorded resources are of kind.
func (a *Arena) Count(kind HandleKind) int {
	n := 0
	for _, h := range a.handles {
		if h.Kind == kind {
			n++
		}
	}
	return n
}

// Release frees every outstanding resource in reverse order of ownership, each exactly once,
// and returns how many were freed by this call.
func (a *Arena) Release() int {
	n := 0
	for i := len(a.handles) - 1; i >= 0; i-- {
		h := &a.handles[i]
		if h.done {
			continue
		}
		if h.release != nil {
			h.release()
		}
		h.done = true
		a.outstanding--
		n++
	}
	return n
}
