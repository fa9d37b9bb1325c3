package asset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gyroview/internal/eventloop"
	"gyroview/internal/geom"
	"gyroview/internal/logger"
)

type fakeBackend struct {
	uploads  int
	failNext error
	bounds   geom.Box3
	freed    []string
}

func (b *fakeBackend) build(name string, meshes int) *Asset {
	a := New(name, 0)
	a.Bounds = b.bounds
	shared := &Material{Name: "shared"}
	for i := 0; i < meshes; i++ {
		a.Meshes = append(a.Meshes, &Mesh{Materials: []*Material{shared, {Name: "own"}}})
		a.Own(Geometry, uint32(i+1), func() { b.freed = append(b.freed, name) })
	}
	a.Own(Texture, 7, func() { b.freed = append(b.freed, name) })
	a.Own(Storage, 0, nil)
	return a
}

func (b *fakeBackend) Upload(st *Staged) (*Asset, error) {
	if err := b.failNext; err != nil {
		b.failNext = nil
		return nil, err
	}
	b.uploads++
	if _, err := os.Stat(st.Path); err != nil {
		return nil, err
	}
	return b.build("", 2), nil
}

func (b *fakeBackend) Placeholder() (*Asset, error) {
	a := b.build(DefaultName, 1)
	a.Bounds = geom.Box3{Min: geom.V3(-1, -1, -1), Max: geom.V3(1, 1, 1)}
	return a, nil
}

type fakeCamera struct {
	fov      float32
	position geom.Vec3
	target   geom.Vec3
	moves    int
}

func (c *fakeCamera) FieldOfView() float32 { return c.fov }

func (c *fakeCamera) LookAt(position, target geom.Vec3) {
	c.position, c.target = position, target
	c.moves++
}

type fakeNotifier struct {
	loading bool
	info    string
}

func (n *fakeNotifier) Loading(v bool)     { n.loading = v }
func (n *fakeNotifier) ModelInfo(s string) { n.info = s }

type harness struct {
	loop    *eventloop.Queue
	backend *fakeBackend
	camera  *fakeCamera
	notify  *fakeNotifier
	mgr     *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop:    eventloop.New(),
		backend: &fakeBackend{bounds: geom.Box3{Min: geom.V3(0, 0, 0), Max: geom.V3(2, 4, 2)}},
		camera:  &fakeCamera{fov: 75},
		notify:  &fakeNotifier{},
	}
	h.mgr = NewManager(Config{
		Backend: h.backend,
		Loop:    h.loop,
		Camera:  h.camera,
		Notify:  h.notify,
		Log:     logger.New(""),
		TempDir: t.TempDir(),
	})
	return h
}

// await drains the loop until ch yields its result.
func (h *harness) await(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	var res Result
	require.Eventually(t, func() bool {
		h.loop.Drain()
		select {
		case res = <-ch:
			return true
		default:
			return false
		}
	}, 2*time.Second, time.Millisecond)
	return res
}

func glbBlob(name string) Blob {
	return Blob{Name: name, Data: makeGLB(cubeGLTF)}
}

func TestArenaReleasesInReverseOrderOnce(t *testing.T) {
	var order []uint32
	var a Arena
	for id := uint32(1); id <= 3; id++ {
		a.Own(Geometry, id, func() { order = append(order, id) })
	}
	a.Own(Storage, 0, nil)
	assert.Equal(t, 4, a.Outstanding())
	assert.Equal(t, 3, a.Count(Geometry))

	assert.Equal(t, 4, a.Release())
	assert.Equal(t, []uint32{3, 2, 1}, order)
	assert.Zero(t, a.Outstanding())
	assert.Zero(t, a.Release())
	assert.Equal(t, 4, a.Len())
}

func TestInstallDefaultKeepsCamera(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mgr.InstallDefault())

	a := h.mgr.Installed()
	require.NotNil(t, a)
	assert.Equal(t, DefaultName, a.Name)
	assert.Equal(t, DefaultName, h.notify.info)
	assert.Equal(t, geom.Vec3{}, a.Offset)
	assert.Zero(t, h.camera.moves)
}

func TestLoadReplacesAndReleasesPrevious(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mgr.InstallDefault())
	placeholder := h.mgr.Installed()

	var loaded []*Asset
	for _, name := range []string{"a.glb", "b.glb", "c.glb", "d.glb"} {
		res := h.await(t, h.mgr.Load(context.Background(), glbBlob(name)))
		require.NoError(t, res.Err)
		assert.Same(t, res.Asset, h.mgr.Installed())
		assert.Equal(t, name, res.Asset.Name)
		loaded = append(loaded, res.Asset)
	}

	assert.True(t, placeholder.Released())
	for _, a := range loaded[:len(loaded)-1] {
		assert.Zero(t, a.Outstanding(), a.Name)
	}
	last := loaded[len(loaded)-1]
	assert.Equal(t, 4, last.Outstanding())
	assert.False(t, h.notify.loading)
	assert.Equal(t, "d.glb (92 B)", h.notify.info)
}

func TestStaleLoadIsDiscarded(t *testing.T) {
	h := newHarness(t)
	first := h.mgr.Load(context.Background(), glbBlob("first.glb"))
	second := h.mgr.Load(context.Background(), glbBlob("second.glb"))
	assert.True(t, h.mgr.Loading())

	r2 := h.await(t, second)
	r1 := h.await(t, first)

	require.Error(t, r1.Err)
	assert.ErrorIs(t, r1.Err, ErrSuperseded)
	require.NoError(t, r2.Err)
	assert.Equal(t, "second.glb", h.mgr.Installed().Name)
	assert.Equal(t, 1, h.backend.uploads)
	assert.False(t, h.mgr.Loading())
	assert.False(t, h.notify.loading)
}

func TestFailedLoadKeepsPrevious(t *testing.T) {
	h := newHarness(t)
	ok := h.await(t, h.mgr.Load(context.Background(), glbBlob("good.glb")))
	require.NoError(t, ok.Err)

	bad := h.await(t, h.mgr.Load(context.Background(), Blob{Name: "notes.txt", Data: []byte("hello")}))
	var lerr *LoadError
	require.ErrorAs(t, bad.Err, &lerr)
	assert.Equal(t, "notes.txt", lerr.Name)
	assert.ErrorIs(t, bad.Err, ErrUnsupportedFormat)

	assert.Same(t, ok.Asset, h.mgr.Installed())
	assert.False(t, ok.Asset.Released())
	assert.Equal(t, "Error loading model", h.notify.info)
	assert.False(t, h.notify.loading)

	h.backend.failNext = errors.New("gpu out of memory")
	gpu := h.await(t, h.mgr.Load(context.Background(), glbBlob("huge.glb")))
	assert.ErrorContains(t, gpu.Err, "gpu out of memory")
	assert.Same(t, ok.Asset, h.mgr.Installed())
}

func TestLoadFileReadsFromDisk(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(t.TempDir(), "model.glb")
	require.NoError(t, os.WriteFile(path, makeGLB(cubeGLTF), 0o644))

	res := h.await(t, h.mgr.LoadFile(context.Background(), path))
	require.NoError(t, res.Err)
	assert.Equal(t, "model.glb", res.Asset.Name)
	assert.Equal(t, FormatGLB, res.Asset.Format)
	assert.Equal(t, path, res.Asset.Source)
	assert.FileExists(t, path)

	missing := h.await(t, h.mgr.LoadFile(context.Background(), filepath.Join(t.TempDir(), "nope.glb")))
	assert.ErrorIs(t, missing.Err, os.ErrNotExist)
	assert.Same(t, res.Asset, h.mgr.Installed())
}

func TestRecenterMovesPivotAndFramesCamera(t *testing.T) {
	h := newHarness(t)
	res := h.await(t, h.mgr.Load(context.Background(), glbBlob("tall.glb")))
	require.NoError(t, res.Err)

	assert.Equal(t, geom.V3(-1, -2, -1), res.Asset.Offset)
	d := FrameDistance(4, 75)
	assert.Equal(t, geom.V3(d, d, d), h.camera.position)
	assert.Equal(t, geom.Vec3{}, h.camera.target)

	res.Asset.Offset = geom.V3(9, 9, 9)
	h.camera.position = geom.Vec3{}
	h.mgr.Recenter()
	assert.Equal(t, geom.V3(-1, -2, -1), res.Asset.Offset)
	assert.Equal(t, geom.V3(d, d, d), h.camera.position)
}

func TestFrameDistance(t *testing.T) {
	assert.InDelta(t, 1.5, FrameDistance(2, 90), 1e-5)
	assert.InDelta(t, 3.0, FrameDistance(4, 90), 1e-5)
	assert.Equal(t, FrameDistance(1, 75), FrameDistance(0, 75))
	assert.Equal(t, FrameDistance(2, 75), FrameDistance(2, 0))
	assert.Greater(t, FrameDistance(2, 30), FrameDistance(2, 90))
}

func TestSetScaleClamps(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.mgr.InstallDefault())

	assert.Equal(t, float32(3), h.mgr.SetScale(5))
	assert.Equal(t, float32(3), h.mgr.Installed().Scale)
	assert.Equal(t, float32(3), h.mgr.SetScale(5))
	assert.Equal(t, float32(0.1), h.mgr.SetScale(0.01))
	assert.Equal(t, float32(1.5), h.mgr.SetScale(1.5))

	assert.Equal(t, float32(1.5), h.mgr.SetScale(math32.NaN()))

	res := h.await(t, h.mgr.Load(context.Background(), glbBlob("next.glb")))
	require.NoError(t, res.Err)
	assert.Equal(t, float32(1.5), res.Asset.Scale, "scale carries over to new models")
}

func TestToggleWireframeFlipsEachMaterialOnce(t *testing.T) {
	h := newHarness(t)
	assert.Zero(t, h.mgr.ToggleWireframe())

	res := h.await(t, h.mgr.Load(context.Background(), glbBlob("m.glb")))
	require.NoError(t, res.Err)

	// two meshes: one shared material plus one of their own each
	assert.Equal(t, 3, h.mgr.ToggleWireframe())
	for _, mat := range res.Asset.Materials() {
		assert.True(t, mat.Wireframe, mat.Name)
	}
	h.mgr.ToggleWireframe()
	for _, mat := range res.Asset.Materials() {
		assert.False(t, mat.Wireframe, mat.Name)
	}
}

func TestCloseReleasesAndRejectsLoads(t *testing.T) {
	h := newHarness(t)
	pending := h.mgr.Load(context.Background(), glbBlob("late.glb"))
	require.NoError(t, h.mgr.InstallDefault())
	installed := h.mgr.Installed()

	h.mgr.Close()
	assert.True(t, installed.Released())
	assert.Nil(t, h.mgr.Installed())

	late := h.await(t, pending)
	assert.ErrorIs(t, late.Err, ErrSuperseded)
	assert.Nil(t, h.mgr.Installed())

	res := <-h.mgr.Load(context.Background(), glbBlob("after.glb"))
	assert.ErrorIs(t, res.Err, ErrClosed)
	h.mgr.Close()
}

func TestAssetInfo(t *testing.T) {
	assert.Equal(t, "drone.glb (1.2 kB)", New("drone.glb", 1200).Info())
	assert.Equal(t, DefaultName, New(DefaultName, 0).Info())
}

func TestOnInstallHook(t *testing.T) {
	h := newHarness(t)
	var got []string
	h.mgr.onInst = func(a *Asset) { got = append(got, a.Name) }

	require.NoError(t, h.mgr.InstallDefault())
	res := h.await(t, h.mgr.Load(context.Background(), glbBlob("hooked.glb")))
	require.NoError(t, res.Err)
	assert.Empty(t, res.Asset.Source)
	assert.Equal(t, []string{DefaultName, "hooked.glb"}, got)
}

func TestLoadFromIsSupersededWhileOpening(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	slow := h.mgr.LoadFrom(context.Background(), "remote.glb", func(ctx context.Context) (Blob, error) {
		<-release
		return glbBlob("remote.glb"), nil
	})
	assert.True(t, h.mgr.Loading())

	fast := h.await(t, h.mgr.Load(context.Background(), glbBlob("local.glb")))
	require.NoError(t, fast.Err)
	assert.False(t, h.mgr.Loading(), "only the superseded request is left")
	assert.False(t, h.notify.loading)

	close(release)
	res := h.await(t, slow)
	assert.ErrorIs(t, res.Err, ErrSuperseded)
	assert.Same(t, fast.Asset, h.mgr.Installed())
	assert.Equal(t, 1, h.backend.uploads)
	assert.False(t, h.mgr.Loading())
	assert.False(t, h.notify.loading)
}

func TestFailedLatestLoadClearsIndicatorWhileStaleRuns(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	defer close(release)
	slow := h.mgr.LoadFrom(context.Background(), "remote.glb", func(ctx context.Context) (Blob, error) {
		<-release
		return glbBlob("remote.glb"), nil
	})

	bad := h.await(t, h.mgr.Load(context.Background(), Blob{Name: "broken.glb", Data: []byte("glTF\x02\x00")}))
	require.Error(t, bad.Err)
	assert.Equal(t, "Error loading model", h.notify.info)
	assert.False(t, h.mgr.Loading())
	assert.False(t, h.notify.loading)

	select {
	case <-slow:
		t.Fatal("stale request finished before it was released")
	default:
	}
}

func TestCloseClearsIndicator(t *testing.T) {
	h := newHarness(t)
	release := make(chan struct{})
	defer close(release)
	h.mgr.LoadFrom(context.Background(), "remote.glb", func(ctx context.Context) (Blob, error) {
		<-release
		return Blob{}, ctx.Err()
	})
	assert.True(t, h.notify.loading)

	h.mgr.Close()
	assert.False(t, h.mgr.Loading())
	assert.False(t, h.notify.loading)
}

func TestLoadFromOpenError(t *testing.T) {
	h := newHarness(t)
	boom := errors.New("HTTP 404")
	res := h.await(t, h.mgr.LoadFrom(context.Background(), "remote.glb", func(context.Context) (Blob, error) {
		return Blob{}, boom
	}))
	var lerr *LoadError
	require.ErrorAs(t, res.Err, &lerr)
	assert.Equal(t, "remote.glb", lerr.Name)
	assert.ErrorIs(t, res.Err, boom)
	assert.Equal(t, "Error loading model", h.notify.info)
}
