// Package viewer assembles the telemetry channel, orientation filter, asset manager and render
// loop into one application object.
//
// App methods other than Post and Stop must be called on the loop goroutine: from console
// commands, hotkeys, or a callback passed to Post.
package viewer

import (
	"context"
	"errors"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gyroview/internal/archive"
	"gyroview/internal/asset"
	"gyroview/internal/config"
	"gyroview/internal/download"
	"gyroview/internal/eventloop"
	"gyroview/internal/geom"
	"gyroview/internal/hud"
	"gyroview/internal/logger"
	"gyroview/internal/loop"
	"gyroview/internal/orientation"
	"gyroview/internal/telemetry"
)

// ErrStarted is returned by a second Start.
var ErrStarted = errors.New("viewer: already started")

// Watcher follows the file of the installed model; assetwatch.Watcher implements it.
type Watcher interface {
	Watch(path string) error
}

// Deps are the collaborators an App is built from. Dialer, Camera, Controls and Watcher may be nil.
type Deps struct {
	Config   config.Config
	Log      *logger.Logger
	Dialer   telemetry.Dialer
	Backend  asset.Backend
	Camera   asset.CameraRig
	Renderer loop.Renderer
	Controls loop.Controls
	Watcher  Watcher
	// Fetcher downloads models for FetchModel; nil uses a default client.
	Fetcher *download.Client
	// TempDir receives staged copies of in-memory model blobs.
	TempDir string
}

// Stats is a snapshot of the viewer for the stats command and tests.
type Stats struct {
	State        telemetry.ConnectionState
	Connected    bool
	URL          string
	ConnectedFor time.Duration

	// ModelLoaded is true once any model, the default cube included, is installed.
	ModelLoaded bool
	// CustomModel is true when the installed model is not the default cube.
	CustomModel bool
	Model       string
	Loading     bool
	Scale       float32

	HasSample  bool
	LastSample telemetry.SensorSample
	Target     geom.Vec3
	Current    geom.Vec3
	Smoothing  bool
	Speed      float32

	FPS        int
	UpdateRate int
	Received   uint64
	Dropped    uint64
}

// App is the viewer. It owns all state; nothing is global.
type App struct {
	cfg     config.Config
	log     *logger.Logger
	queue   *eventloop.Queue
	channel *telemetry.Channel
	filter  *orientation.Filter
	assets  *asset.Manager
	panel   *hud.Panel
	driver  *loop.Driver
	watcher Watcher
	fetcher *download.Client

	ctx         context.Context
	placeholder *asset.Asset
	started     bool
}

// New wires an App from deps. Nothing runs until Start.
func New(deps Deps) *App {
	a := &App{
		cfg:     deps.Config,
		log:     deps.Log,
		queue:   eventloop.New(),
		panel:   hud.New(),
		watcher: deps.Watcher,
		fetcher: deps.Fetcher,
		ctx:     context.Background(),
	}

	a.channel = telemetry.NewChannel(deps.Dialer, a.queue, a.log)
	a.channel.SetDialTimeout(a.cfg.DialTimeout())
	a.channel.OnStateChange = a.connectionChanged
	a.channel.OnSample = a.sampleArrived

	a.filter = orientation.New(a.cfg.Orientation.Smooth, a.cfg.Orientation.RotationSpeed)

	a.assets = asset.NewManager(asset.Config{
		Backend:   deps.Backend,
		Loop:      a.queue,
		Camera:    deps.Camera,
		Notify:    a.panel,
		Log:       a.log,
		OnInstall: a.installed,
		Scale:     a.cfg.Model.Scale,
		ScaleMin:  a.cfg.Model.ScaleMin,
		ScaleMax:  a.cfg.Model.ScaleMax,
		TempDir:   deps.TempDir,
	})

	a.driver = loop.New(loop.Config{
		Queue:       a.queue,
		Orientation: a.filter,
		Scene:       a.assets,
		Renderer:    deps.Renderer,
		Controls:    deps.Controls,
		Samples:     a.channel,
		Stats:       a.panel,
	})
	return a
}

// Start installs the placeholder, loads the configured model, auto-connects if configured and
// then runs the render loop on the calling goroutine until ctx is done, Stop is called or the
// surface closes. Everything is released before it returns.
func (a *App) Start(ctx context.Context, surface loop.Surface) error {
	if a.started {
		return ErrStarted
	}
	a.started = true
	a.ctx = ctx

	if err := a.assets.InstallDefault(); err != nil {
		a.log.Errorf("%v", err)
	}
	a.placeholder = a.assets.Installed()

	if p := a.cfg.Model.Path; p != "" {
		a.LoadFile(ctx, p)
	}
	if a.cfg.Telemetry.AutoConnect {
		if err := a.Connect(a.cfg.Telemetry.Address, a.cfg.Telemetry.Port); err != nil {
			a.log.Errorf("auto-connect: %v", err)
		}
	}

	a.log.Logf("Viewer started")
	err := a.driver.Run(ctx, surface)
	a.shutdown()
	return err
}

// Stop ends the render loop after the current frame. Safe from any goroutine.
func (a *App) Stop() {
	a.driver.Stop()
}

// Post schedules fn on the loop goroutine. Safe from any goroutine.
func (a *App) Post(fn func()) {
	a.queue.Post(fn)
}

func (a *App) shutdown() {
	a.channel.Disconnect()
	a.assets.Close()
	a.queue.Close()
	a.log.Logf("Viewer stopped")
}

// Connect opens the telemetry websocket at address:port (port 0 means 81).
func (a *App) Connect(address string, port int) error {
	return a.channel.Connect(address, port)
}

// Disconnect closes the telemetry websocket. Safe to call when not connected.
func (a *App) Disconnect() {
	a.channel.Disconnect()
}

// LoadAsset loads an in-memory model. The result arrives on the loop.
func (a *App) LoadAsset(ctx context.Context, blob asset.Blob) <-chan asset.Result {
	return a.assets.Load(ctx, blob)
}

// LoadFile loads a model from disk. The result arrives on the loop.
func (a *App) LoadFile(ctx context.Context, path string) <-chan asset.Result {
	return a.assets.LoadFile(ctx, path)
}

// FetchModel downloads a model (or a zip bundle holding one) into the model cache directory and
// loads it. The request supersedes earlier loads as soon as it is made.
func (a *App) FetchModel(ctx context.Context, rawURL string) <-chan asset.Result {
	dir := a.cfg.Model.CacheDir
	a.log.Logf("Fetching %s", rawURL)
	return a.assets.LoadFrom(ctx, urlName(rawURL), func(ctx context.Context) (asset.Blob, error) {
		saved, err := a.fetcher.Fetch(ctx, rawURL, dir)
		if err != nil {
			return asset.Blob{}, err
		}
		if archive.IsArchive(saved) {
			files, err := archive.Unzip(saved, strings.TrimSuffix(saved, filepath.Ext(saved)))
			_ = os.Remove(saved)
			if err != nil {
				return asset.Blob{}, err
			}
			if saved, err = archive.FindModel(files); err != nil {
				return asset.Blob{}, err
			}
		}
		return asset.ReadBlob(saved)
	})
}

func urlName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" && u.Path != "/" {
		return path.Base(u.Path)
	}
	return raw
}

// ResetOrientation zeroes the displayed orientation and asks the device to reset its own.
// The local reset happens even when the command cannot be sent.
func (a *App) ResetOrientation() error {
	a.filter.Reset()
	return a.channel.Send(telemetry.CommandReset)
}

// SetScale clamps and applies the model scale, returning the stored value.
func (a *App) SetScale(factor float32) float32 {
	return a.assets.SetScale(factor)
}

// SetSmoothing enables or disables interpolation and sets its speed, returning the stored speed.
func (a *App) SetSmoothing(enabled bool, speed float32) float32 {
	return a.filter.SetSmoothing(enabled, speed)
}

// ToggleWireframe flips wireframe on the installed model's materials.
func (a *App) ToggleWireframe() int {
	return a.assets.ToggleWireframe()
}

// CenterModel recenters the installed model and re-frames the camera.
func (a *App) CenterModel() {
	a.assets.Recenter()
}

// Panel exposes the status panel for drawing.
func (a *App) Panel() *hud.Panel {
	return a.panel
}

// Stats returns a snapshot of the viewer state.
func (a *App) Stats() Stats {
	s := Stats{
		State:        a.channel.State(),
		Connected:    a.channel.State() == telemetry.Connected,
		URL:          a.channel.URL(),
		ConnectedFor: a.panel.Elapsed(),
		Loading:      a.assets.Loading(),
		Scale:        a.assets.Scale(),
		Target:       a.filter.Target(),
		Current:      a.filter.Current(),
		Smoothing:    a.filter.Smooth(),
		Speed:        a.filter.Speed(),
		FPS:          a.panel.FrameRate(),
		UpdateRate:   a.panel.SampleRate(),
		Received:     a.channel.SamplesReceived(),
		Dropped:      a.channel.Dropped(),
	}
	s.LastSample, s.HasSample = a.panel.LastSample()
	if in := a.assets.Installed(); in != nil {
		s.Model = in.Info()
		s.ModelLoaded = true
		s.CustomModel = in != a.placeholder
	}
	return s
}

func (a *App) connectionChanged(state telemetry.ConnectionState, err error) {
	a.filter.SetLive(state == telemetry.Connected)
	a.panel.Connection(state, err)
}

func (a *App) sampleArrived(s telemetry.SensorSample) {
	a.filter.OnSample(s)
	a.panel.Sample(s)
}

func (a *App) installed(as *asset.Asset) {
	if a.watcher == nil || as.Source == "" || !a.cfg.Model.Watch {
		return
	}
	if err := a.watcher.Watch(as.Source); err != nil {
		a.log.Warnf("cannot watch %s: %v", as.Source, err)
	}
}
