package asset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"gyroview/internal/eventloop"
	"gyroview/internal/geom"
	"gyroview/internal/logger"
)

// Scale limits and default applied by the manager.
const (
	DefaultScale    float32 = 1
	DefaultScaleMin float32 = 0.1
	DefaultScaleMax float32 = 3

	maxAssetSize = 256 << 20
)

var (
	// ErrUnsupportedFormat is returned for files that are not a loadable model.
	ErrUnsupportedFormat = errors.New("asset: unsupported format")
	// ErrSuperseded is the result of a load overtaken by a newer request.
	ErrSuperseded = errors.New("asset: superseded by a newer load")
	// ErrClosed is returned once the manager is closed.
	ErrClosed = errors.New("asset: manager closed")
)

// LoadError wraps a failure to load the named model.
type LoadError struct {
	Name string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("asset: load %s: %v", e.Name, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Blob is raw model data. Path is set when the bytes came from disk, so loaders that resolve
// sibling files (.gltf buffers, .mtl) can find them.
type Blob struct {
	Name string
	Data []byte
	Path string
}

// ReadBlob reads a model file from disk.
func ReadBlob(path string) (Blob, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return Blob{}, err
	}
	if fi.IsDir() {
		return Blob{}, fmt.Errorf("%s is a directory", path)
	}
	if fi.Size() > maxAssetSize {
		return Blob{}, fmt.Errorf("%s is %s, limit is %s", path,
			humanize.Bytes(uint64(fi.Size())), humanize.Bytes(maxAssetSize))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Blob{}, err
	}
	return Blob{Name: filepath.Base(path), Data: data, Path: path}, nil
}

// Staged is a validated blob ready for upload, backed by a file the renderer can load.
type Staged struct {
	Blob   Blob
	Format Format
	// Path is the file to upload from: the blob's own path or a temporary copy.
	Path string

	cleanup func()
}

// Cleanup removes the temporary copy, if one was made.
func (s *Staged) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// Stage detects and validates the blob's format and makes sure it exists on disk. It does no
// GPU work and may run on any goroutine.
func Stage(ctx context.Context, blob Blob, tmpDir string) (*Staged, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format, err := DetectFormat(blob.Name, blob.Data)
	if err != nil {
		return nil, err
	}
	if err := Validate(format, blob.Data); err != nil {
		return nil, err
	}
	st := &Staged{Blob: blob, Format: format, Path: blob.Path}
	if st.Path != "" {
		return st, nil
	}
	f, err := os.CreateTemp(tmpDir, "gyroview-*"+format.Ext())
	if err != nil {
		return nil, fmt.Errorf("stage: %w", err)
	}
	name := f.Name()
	_, werr := f.Write(blob.Data)
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(name)
		return nil, fmt.Errorf("stage: %w", err)
	}
	st.Path = name
	st.cleanup = func() { os.Remove(name) }
	return st, nil
}

// Backend turns staged files into GPU-resident assets. Both methods run on the event loop.
type Backend interface {
	Upload(st *Staged) (*Asset, error)
	Placeholder() (*Asset, error)
}

// CameraRig is the part of the camera the manager re-frames after recentering.
type CameraRig interface {
	FieldOfView() float32
	LookAt(position, target geom.Vec3)
}

// Notifier receives the loading indicator and model description.
type Notifier interface {
	Loading(bool)
	ModelInfo(string)
}

// Result is delivered once per load request.
type Result struct {
	Asset *Asset
	Err   error
}

// Config wires a Manager. Camera and Notify may be nil.
type Config struct {
	Backend Backend
	Loop    eventloop.Dispatcher
	Camera  CameraRig
	Notify  Notifier
	Log     *logger.Logger
	// OnInstall, if set, is called on the loop after an asset becomes the installed one.
	OnInstall func(*Asset)

	Scale    float32
	ScaleMin float32
	ScaleMax float32
	// TempDir holds staged copies of in-memory blobs. Empty means os.TempDir().
	TempDir string
}

// Manager owns the installed asset. All methods must be called on the event loop; the
// off-loop half of a load reports back through Loop.Post.
//
// Only the most recent load request may install its result. Older requests that are still
// in flight when a newer one is made are dropped before upload and report ErrSuperseded.
type Manager struct {
	backend Backend
	loop    eventloop.Dispatcher
	camera  CameraRig
	notify  Notifier
	log     *logger.Logger
	tmpDir  string
	onInst  func(*Asset)

	installed *Asset
	gen       uint64
	resolved  uint64 // last generation whose request finished
	closed    bool

	scale    float32
	scaleMin float32
	scaleMax float32
}

// NewManager returns a manager with nothing installed.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		backend:  cfg.Backend,
		loop:     cfg.Loop,
		camera:   cfg.Camera,
		notify:   cfg.Notify,
		log:      cfg.Log,
		tmpDir:   cfg.TempDir,
		onInst:   cfg.OnInstall,
		scaleMin: cfg.ScaleMin,
		scaleMax: cfg.ScaleMax,
	}
	if !(m.scaleMin > 0) {
		m.scaleMin = DefaultScaleMin
	}
	if !(m.scaleMax >= m.scaleMin) {
		m.scaleMax = DefaultScaleMax
	}
	m.scale = DefaultScale
	if cfg.Scale > 0 {
		m.scale = cfg.Scale
	}
	m.scale = geom.Clamp(m.scale, m.scaleMin, m.scaleMax)
	return m
}

// Installed returns the asset currently in the scene, or nil.
func (m *Manager) Installed() *Asset {
	return m.installed
}

// Loading reports whether the latest load request is still in flight. Superseded requests
// that have not finished yet do not count.
func (m *Manager) Loading() bool {
	return m.resolved < m.gen
}

// Load stages blob off the loop and installs it when it is still the latest request.
// The returned channel receives exactly one Result, delivered from the event loop.
func (m *Manager) Load(ctx context.Context, blob Blob) <-chan Result {
	return m.load(ctx, blob.Name, func() (Blob, error) { return blob, nil })
}

// LoadFile is Load for a file on disk. Reading happens off the loop.
func (m *Manager) LoadFile(ctx context.Context, path string) <-chan Result {
	return m.load(ctx, filepath.Base(path), func() (Blob, error) { return ReadBlob(path) })
}

// Opener produces a blob off the loop, for example by downloading it.
type Opener func(ctx context.Context) (Blob, error)

// LoadFrom is Load for a blob that open produces off the loop. The request counts as issued
// now: a later Load supersedes it even while open is still running.
func (m *Manager) LoadFrom(ctx context.Context, name string, open Opener) <-chan Result {
	return m.load(ctx, name, func() (Blob, error) { return open(ctx) })
}

func (m *Manager) load(ctx context.Context, name string, fetch func() (Blob, error)) <-chan Result {
	out := make(chan Result, 1)
	if m.closed {
		out <- Result{Err: &LoadError{Name: name, Err: ErrClosed}}
		close(out)
		return out
	}

	m.gen++
	gen := m.gen
	m.setLoading(true)
	m.log.Logf("Loading model %s", name)

	go func() {
		blob, err := fetch()
		var st *Staged
		if err == nil {
			st, err = Stage(ctx, blob, m.tmpDir)
		}
		m.loop.Post(func() {
			out <- m.finish(gen, name, st, err)
			close(out)
		})
	}()
	return out
}

func (m *Manager) finish(gen uint64, name string, st *Staged, err error) Result {
	if st != nil {
		defer st.Cleanup()
	}
	latest := gen == m.gen && !m.closed
	if latest {
		m.resolved = gen
		defer m.setLoading(false)
	}

	if err == nil && latest {
		var a *Asset
		a, err = m.backend.Upload(st)
		if err == nil && a == nil {
			err = errors.New("backend returned no asset")
		}
		if err == nil {
			if a.Name == "" {
				a.Name = st.Blob.Name
			}
			if a.Name == "" {
				a.Name = name
			}
			if a.Size == 0 {
				a.Size = int64(len(st.Blob.Data))
			}
			a.Format = st.Format
			a.Source = st.Blob.Path
			m.install(a, true)
			return Result{Asset: a}
		}
	}

	if err == nil {
		// Staged fine but a newer request exists; nothing was uploaded.
		m.log.Logf("Discarding %s: superseded by a newer load", name)
		return Result{Err: &LoadError{Name: name, Err: ErrSuperseded}}
	}

	lerr := &LoadError{Name: name, Err: err}
	m.log.Errorf("%v", lerr)
	if latest {
		m.info("Error loading model")
	}
	return Result{Err: lerr}
}

// Install puts an already uploaded asset in the scene, releasing the previous one, and
// invalidates any load still in flight.
func (m *Manager) Install(a *Asset) {
	if a == nil {
		return
	}
	m.gen++
	m.install(a, true)
}

// InstallDefault uploads and installs the placeholder cube. The camera keeps its position.
func (m *Manager) InstallDefault() error {
	a, err := m.backend.Placeholder()
	if err != nil {
		return &LoadError{Name: DefaultName, Err: err}
	}
	if a.Name == "" {
		a.Name = DefaultName
	}
	m.install(a, false)
	return nil
}

func (m *Manager) install(a *Asset, frame bool) {
	prev := m.installed
	m.installed = a
	if prev != nil && prev != a {
		n := prev.Resources().Release()
		m.log.Logf("Released %s (%d resources)", prev.Name, n)
	}
	a.Scale = m.scale
	a.Offset = a.Bounds.Center().Neg()
	if frame {
		m.frame(a)
	}
	m.info(a.Info())
	m.log.Logf("Installed %s [%s] %s", a.Name, a.ID, a.Format)
	if m.onInst != nil {
		m.onInst(a)
	}
}

// Recenter moves the installed model's bounding-box center to the origin and re-frames the camera.
func (m *Manager) Recenter() {
	a := m.installed
	if a == nil {
		return
	}
	a.Offset = a.Bounds.Center().Neg()
	m.frame(a)
}

func (m *Manager) frame(a *Asset) {
	if m.camera == nil || a.Bounds.IsEmpty() {
		return
	}
	size := a.Bounds.Size().Scale(a.Scale)
	d := FrameDistance(size.MaxComponent(), m.camera.FieldOfView())
	m.camera.LookAt(geom.V3(d, d, d), geom.Vec3{})
}

// SetScale clamps f to the configured range, applies it to the installed model and returns it.
// NaN leaves the scale unchanged.
func (m *Manager) SetScale(f float32) float32 {
	if f != f {
		return m.scale
	}
	m.scale = geom.Clamp(f, m.scaleMin, m.scaleMax)
	if m.installed != nil {
		m.installed.Scale = m.scale
	}
	return m.scale
}

// Scale returns the current uniform scale.
func (m *Manager) Scale() float32 {
	return m.scale
}

// ToggleWireframe flips the wireframe flag of every distinct material on the installed model
// and returns how many were flipped.
func (m *Manager) ToggleWireframe() int {
	if m.installed == nil {
		return 0
	}
	mats := m.installed.Materials()
	for _, mat := range mats {
		mat.Wireframe = !mat.Wireframe
	}
	return len(mats)
}

// Close releases the installed asset and makes in-flight loads discard their results.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	m.closed = true
	m.gen++
	m.resolved = m.gen
	m.setLoading(false)
	if m.installed != nil {
		m.installed.Release()
		m.installed = nil
	}
}

func (m *Manager) setLoading(v bool) {
	if m.notify != nil {
		m.notify.Loading(v)
	}
}

func (m *Manager) info(s string) {
	if m.notify != nil {
		m.notify.ModelInfo(s)
	}
}
