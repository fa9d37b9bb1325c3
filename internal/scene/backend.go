package scene

import (
	"fmt"
	"path/filepath"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"gyroview/internal/asset"
	"gyroview/internal/geom"
)

const placeholderSize = 2

var (
	placeholderColor = rl.NewColor(0x61, 0xda, 0xfb, 204) // #61dafb, 0.8 alpha
	edgeColor        = rl.NewColor(255, 255, 255, 77)     // 0.3 alpha
)

// model is the Native payload of assets uploaded by Scene.
type model struct {
	rl       rl.Model
	meshes   []rl.Mesh
	mats     []rl.Material
	bindings []int             // mesh index -> material index
	flags    []*asset.Material // per raylib material
	edges    *geom.Box3        // outline drawn over the placeholder
}

// Upload loads a staged file with raylib (glTF, GLB and OBJ) and records every GPU resource
// it created on the returned asset.
func (s *Scene) Upload(st *asset.Staged) (*asset.Asset, error) {
	m := rl.LoadModel(st.Path)
	if !rl.IsModelValid(m) || m.MeshCount == 0 {
		if m.Meshes != nil {
			rl.UnloadModel(m)
		}
		return nil, fmt.Errorf("scene: raylib could not load %s", filepath.Base(st.Path))
	}
	a := asset.New(st.Blob.Name, int64(len(st.Blob.Data)))
	s.adopt(a, m)
	s.log.Logf("Uploaded %s: %d meshes, %d materials, %d textures", a.Name,
		a.Resources().Count(asset.Geometry), len(a.Materials()), a.Resources().Count(asset.Texture))
	return a, nil
}

// Placeholder builds the translucent default cube with its white edge outline.
func (s *Scene) Placeholder() (*asset.Asset, error) {
	m := rl.LoadModelFromMesh(rl.GenMeshCube(placeholderSize, placeholderSize, placeholderSize))
	if mats := materials(m); len(mats) > 0 {
		if albedo := mats[0].GetMap(rl.MapAlbedo); albedo != nil {
			albedo.Color = placeholderColor
		}
	}
	a := asset.New(asset.DefaultName, 0)
	s.adopt(a, m)

	h := float32(placeholderSize) / 2
	a.Native.(*model).edges = &geom.Box3{Min: geom.V3(-h, -h, -h), Max: geom.V3(h, h, h)}
	a.Overlays = []*asset.Mesh{{Name: "edges"}}
	return a, nil
}

// adopt describes m on a and takes ownership of its GPU resources. Handles are recorded so the
// LIFO release frees meshes, then textures, then the model's own arrays.
func (s *Scene) adopt(a *asset.Asset, m rl.Model) {
	meshes := unsafe.Slice(m.Meshes, m.MeshCount)
	mats := materials(m)
	var idx []int32
	if m.MeshMaterial != nil {
		idx = unsafe.Slice(m.MeshMaterial, m.MeshCount)
	}

	if shader, ok := s.shading.get(); ok {
		for i := range mats {
			mats[i].Shader = shader
		}
	}

	n := &model{
		rl:       m,
		meshes:   meshes,
		mats:     mats,
		bindings: meshBindings(idx, len(meshes), len(mats)),
	}
	for i := range mats {
		n.flags = append(n.flags, &asset.Material{Name: fmt.Sprintf("material %d", i)})
	}
	for i, b := range n.bindings {
		mesh := &asset.Mesh{Name: fmt.Sprintf("mesh %d", i)}
		if b < len(n.flags) {
			mesh.Materials = []*asset.Material{n.flags[b]}
		}
		a.Meshes = append(a.Meshes, mesh)
	}
	bb := rl.GetModelBoundingBox(m)
	a.Bounds = geom.Box3{Min: fromVector(bb.Min), Max: fromVector(bb.Max)}
	a.Native = n

	// Mesh buffers and textures are freed by their own handles; the storage handle then frees
	// the arrays and material maps without touching the meshes again.
	shell := m
	shell.MeshCount = 0
	a.Own(asset.Storage, 0, func() { rl.UnloadModel(shell) })

	seen := map[uint32]bool{0: true, rl.GetTextureIdDefault(): true}
	for i := range mats {
		for _, mm := range textureMaps(&mats[i]) {
			if mm == nil || seen[mm.Texture.ID] {
				continue
			}
			tex := mm.Texture
			seen[tex.ID] = true
			a.Own(asset.Texture, tex.ID, func() { rl.UnloadTexture(tex) })
		}
	}

	for i := range meshes {
		mesh := meshes[i]
		a.Own(asset.Geometry, mesh.VaoID, func() { rl.UnloadMesh(&mesh) })
	}
}

func materials(m rl.Model) []rl.Material {
	if m.Materials == nil || m.MaterialCount <= 0 {
		return nil
	}
	return unsafe.Slice(m.Materials, m.MaterialCount)
}

func textureMaps(mat *rl.Material) []*rl.MaterialMap {
	if mat.Maps == nil {
		return nil
	}
	return []*rl.MaterialMap{
		mat.GetMap(rl.MapAlbedo),
		mat.GetMap(rl.MapMetalness),
		mat.GetMap(rl.MapNormal),
		mat.GetMap(rl.MapRoughness),
		mat.GetMap(rl.MapOcclusion),
		mat.GetMap(rl.MapEmission),
	}
}

// meshBindings maps each mesh to its material. Missing or out of range indices use material 0.
func meshBindings(idx []int32, meshCount, materialCount int) []int {
	out := make([]int, meshCount)
	for i := range out {
		if i < len(idx) && idx[i] >= 0 && int(idx[i]) < materialCount {
			out[i] = int(idx[i])
		}
	}
	return out
}
