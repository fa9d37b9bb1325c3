package viewer

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gyroview/internal/asset"
	"gyroview/internal/commands"
	"gyroview/internal/config"
	"gyroview/internal/geom"
	"gyroview/internal/logger"
	"gyroview/internal/telemetry"
)

// device is a websocket peer standing in for the IMU firmware.
type device struct {
	srv   *httptest.Server
	conns chan *websocket.Conn

	mu       sync.Mutex
	received []string
}

func newDevice(t *testing.T) *device {
	t.Helper()
	d := &device{conns: make(chan *websocket.Conn, 4)}
	upgrader := websocket.Upgrader{}
	d.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		d.conns <- conn
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			d.mu.Lock()
			d.received = append(d.received, string(msg))
			d.mu.Unlock()
		}
	}))
	t.Cleanup(d.srv.Close)
	return d
}

func (d *device) hostPort(t *testing.T) (string, int) {
	t.Helper()
	u, err := url.Parse(d.srv.URL)
	require.NoError(t, err)
	host, p, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(p)
	require.NoError(t, err)
	return host, port
}

func (d *device) commands() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.received...)
}

type fakeBackend struct {
	uploads int
	freed   int
}

func (b *fakeBackend) own(a *asset.Asset) *asset.Asset {
	a.Bounds = geom.Box3{Min: geom.V3(-1, -1, -1), Max: geom.V3(1, 1, 1)}
	a.Meshes = []*asset.Mesh{{Materials: []*asset.Material{{Name: "body"}}}}
	a.Own(asset.Geometry, 1, func() { b.freed++ })
	return a
}

func (b *fakeBackend) Upload(st *asset.Staged) (*asset.Asset, error) {
	b.uploads++
	return b.own(asset.New("", 0)), nil
}

func (b *fakeBackend) Placeholder() (*asset.Asset, error) {
	return b.own(asset.New(asset.DefaultName, 0)), nil
}

type fakeRenderer struct{ frames int }

func (r *fakeRenderer) Render(*asset.Asset) { r.frames++ }

type fakeWatcher struct{ paths []string }

func (w *fakeWatcher) Watch(path string) error {
	w.paths = append(w.paths, path)
	return nil
}

// script is a surface that runs one step per frame until each reports done, then closes.
type script struct {
	t        *testing.T
	steps    []func() bool
	deadline time.Time
}

func newScript(t *testing.T, steps ...func() bool) *script {
	return &script{t: t, steps: steps, deadline: time.Now().Add(5 * time.Second)}
}

func (s *script) ShouldClose() bool {
	if len(s.steps) == 0 {
		return true
	}
	if time.Now().After(s.deadline) {
		s.t.Errorf("script timed out with %d steps left", len(s.steps))
		return true
	}
	return false
}

func (s *script) BeginFrame() {}

func (s *script) EndFrame() {
	if len(s.steps) > 0 && s.steps[0]() {
		s.steps = s.steps[1:]
	}
	time.Sleep(time.Millisecond)
}

// once wraps an action as a step that completes immediately.
func once(fn func()) func() bool {
	return func() bool {
		fn()
		return true
	}
}

func writeGLB(t *testing.T, dir, name string) string {
	t.Helper()
	doc := []byte(`{"asset":{"version":"2.0"},"meshes":[{"primitives":[]}]}`)
	for len(doc)%4 != 0 {
		doc = append(doc, ' ')
	}
	var buf bytes.Buffer
	le := binary.LittleEndian
	for _, v := range []uint32{0x46546C67, 2, uint32(20 + len(doc)), uint32(len(doc)), 0x4E4F534A} {
		require.NoError(t, binary.Write(&buf, le, v))
	}
	buf.Write(doc)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func newApp(t *testing.T, cfg config.Config, backend *fakeBackend, w Watcher) (*App, *fakeRenderer) {
	t.Helper()
	r := &fakeRenderer{}
	app := New(Deps{
		Config:   cfg,
		Log:      logger.New(""),
		Backend:  backend,
		Renderer: r,
		Watcher:  w,
		TempDir:  t.TempDir(),
	})
	return app, r
}

func TestTelemetryDrivesOrientation(t *testing.T) {
	dev := newDevice(t)
	host, port := dev.hostPort(t)
	cfg := config.Default()
	cfg.Orientation.RotationSpeed = 1
	backend := &fakeBackend{}
	app, r := newApp(t, cfg, backend, nil)

	var peer *websocket.Conn
	s := newScript(t,
		once(func() { require.NoError(t, app.Connect(host, port)) }),
		func() bool { return app.Stats().Connected },
		func() bool {
			select {
			case peer = <-dev.conns:
				return true
			default:
				return false
			}
		},
		func() bool { return len(dev.commands()) == 1 },
		once(func() {
			frame := `{"gyroX":90,"gyroY":0,"gyroZ":0,"temperature":25.0,"timestamp":1000}`
			require.NoError(t, peer.WriteMessage(websocket.TextMessage, []byte(frame)))
		}),
		func() bool { return math32.Abs(app.Stats().Current.X-math32.Pi/2) < 1e-6 },
		once(func() {
			st := app.Stats()
			assert.InDelta(t, math32.Pi/2, st.Target.X, 1e-6)
			assert.True(t, st.HasSample)
			assert.Equal(t, int64(1000), st.LastSample.Timestamp)
			assert.Equal(t, "ws://"+net.JoinHostPort(host, strconv.Itoa(port)), st.URL)

			require.NoError(t, app.ResetOrientation())
			assert.Equal(t, geom.Vec3{}, app.Stats().Target)
			assert.Equal(t, geom.Vec3{}, app.Stats().Current)
		}),
		func() bool { return len(dev.commands()) == 2 },
		once(app.Disconnect),
		once(func() {
			assert.Equal(t, telemetry.Disconnected, app.Stats().State)
			assert.ErrorIs(t, app.ResetOrientation(), telemetry.ErrNotConnected)
		}),
	)

	require.NoError(t, app.Start(context.Background(), s))
	assert.Equal(t, []string{telemetry.CommandStatus, telemetry.CommandReset}, dev.commands())
	assert.Positive(t, r.frames)
	assert.Equal(t, 1, backend.freed, "placeholder released at shutdown")
	assert.ErrorIs(t, app.Start(context.Background(), s), ErrStarted)
}

func TestLoadReplacesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	first := writeGLB(t, dir, "first.glb")
	second := writeGLB(t, dir, "second.glb")

	cfg := config.Default()
	cfg.Model.Watch = true
	backend := &fakeBackend{}
	w := &fakeWatcher{}
	app, _ := newApp(t, cfg, backend, w)

	var results []<-chan asset.Result
	s := newScript(t,
		once(func() {
			st := app.Stats()
			assert.True(t, st.ModelLoaded, "default cube counts as loaded")
			assert.False(t, st.CustomModel)
			assert.Equal(t, asset.DefaultName, st.Model)
			results = append(results, app.LoadFile(context.Background(), first))
		}),
		func() bool { return app.Stats().CustomModel },
		once(func() {
			assert.Equal(t, 1, backend.freed, "placeholder released on swap")
			assert.Equal(t, float32(3), app.SetScale(5))
			assert.Equal(t, float32(3), app.SetScale(5))
			assert.Equal(t, 1, app.ToggleWireframe())
			results = append(results, app.LoadFile(context.Background(), second))
		}),
		func() bool { return !app.Stats().Loading },
	)
	require.NoError(t, app.Start(context.Background(), s))

	require.Len(t, results, 2)
	r1, r2 := <-results[0], <-results[1]
	require.NoError(t, r1.Err)
	require.NoError(t, r2.Err)
	assert.Equal(t, "second.glb", r2.Asset.Name)
	assert.Equal(t, float32(3), r2.Asset.Scale)
	assert.True(t, r1.Asset.Released())
	assert.True(t, r2.Asset.Released(), "released at shutdown")
	assert.Equal(t, []string{first, second}, w.paths)
}

func TestConfiguredModelAndAutoConnect(t *testing.T) {
	dev := newDevice(t)
	host, port := dev.hostPort(t)
	cfg := config.Default()
	cfg.Telemetry.Address = host
	cfg.Telemetry.Port = port
	cfg.Telemetry.AutoConnect = true
	cfg.Model.Path = writeGLB(t, t.TempDir(), "drone.glb")
	app, _ := newApp(t, cfg, &fakeBackend{}, nil)

	s := newScript(t,
		func() bool {
			st := app.Stats()
			return st.Connected && st.CustomModel
		},
	)
	require.NoError(t, app.Start(context.Background(), s))
	assert.Contains(t, app.Panel().Model(), "drone.glb")
}

func TestCommands(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "My Models")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := writeGLB(t, dir, "cmd.glb")
	other := writeGLB(t, dir, "other model.glb")
	log := logger.New("")
	app := New(Deps{Config: config.Default(), Log: log, Backend: &fakeBackend{}, Renderer: &fakeRenderer{}})
	reg := commands.NewRegistry()
	app.RegisterCommands(reg)

	run := func(line string) error {
		args, ok := commands.Parse(line)
		require.True(t, ok, line)
		return reg.Execute(args)
	}

	s := newScript(t,
		once(func() {
			require.NoError(t, run("scale 5"))
			assert.Equal(t, float32(3), app.Stats().Scale)
			assert.ErrorIs(t, run("scale big"), commands.ErrUsage)

			require.NoError(t, run("smooth -off -speed 0.5"))
			assert.False(t, app.Stats().Smoothing)
			assert.Equal(t, float32(0.5), app.Stats().Speed)
			require.NoError(t, run("smooth"))
			assert.True(t, app.Stats().Smoothing)
			assert.Equal(t, float32(0.5), app.Stats().Speed, "speed kept when not given")

			assert.ErrorIs(t, run("connect"), commands.ErrUsage)
			assert.ErrorIs(t, run("load"), commands.ErrUsage)
			require.NoError(t, run("reset"))
			require.NoError(t, run("disconnect"))
			require.NoError(t, run("wireframe"))
			require.NoError(t, run("center"))
			require.NoError(t, run(`cmd load "`+path+`"`))
		}),
		func() bool { return strings.HasPrefix(app.Stats().Model, "cmd.glb") },
		once(func() {
			require.NoError(t, run("load "+other))
		}),
		func() bool { return strings.HasPrefix(app.Stats().Model, "other model.glb") },
		once(func() {
			require.NoError(t, run("help"))
			require.NoError(t, run("stats"))
		}),
	)
	require.NoError(t, app.Start(context.Background(), s))

	lines := log.Lines()
	joined := ""
	for _, l := range lines {
		joined += l + "\n"
	}
	assert.Contains(t, joined, "connect [-port N] <address>")
	assert.Contains(t, joined, "Model: other model.glb")
	assert.Contains(t, joined, "custom: true")
	assert.Contains(t, joined, "Scale: 3.00")
}

func TestFetchModelFromZipBundle(t *testing.T) {
	glb, err := os.ReadFile(writeGLB(t, t.TempDir(), "drone.glb"))
	require.NoError(t, err)
	var bundle bytes.Buffer
	zw := zip.NewWriter(&bundle)
	w, err := zw.Create("drone/drone.glb")
	require.NoError(t, err)
	_, err = w.Write(glb)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bundle.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(bundle.Bytes())
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Model.CacheDir = t.TempDir()
	app, _ := newApp(t, cfg, &fakeBackend{}, nil)

	var ok, missing <-chan asset.Result
	s := newScript(t,
		once(func() { missing = app.FetchModel(context.Background(), srv.URL+"/nothing.glb") }),
		func() bool { return !app.Stats().Loading },
		once(func() { ok = app.FetchModel(context.Background(), srv.URL+"/bundle.zip") }),
		func() bool { return app.Stats().CustomModel },
	)
	require.NoError(t, app.Start(context.Background(), s))

	res := <-missing
	assert.ErrorContains(t, res.Err, "HTTP 404")
	res = <-ok
	require.NoError(t, res.Err)
	assert.Equal(t, "drone.glb", res.Asset.Name)
	assert.Equal(t, filepath.Join(cfg.Model.CacheDir, "bundle", "drone", "drone.glb"), res.Asset.Source)
	_, err = os.Stat(filepath.Join(cfg.Model.CacheDir, "bundle.zip"))
	assert.True(t, os.IsNotExist(err), "archive removed after unpacking")
}

func TestStopFromAnotherGoroutine(t *testing.T) {
	app, _ := newApp(t, config.Default(), &fakeBackend{}, nil)
	s := newScript(t, func() bool { return false })
	s.deadline = time.Now().Add(time.Minute)

	go func() {
		time.Sleep(20 * time.Millisecond)
		app.Stop()
	}()
	require.NoError(t, app.Start(context.Background(), s))
}

func TestStatsLines(t *testing.T) {
	st := Stats{
		State:      telemetry.Connected,
		URL:        "ws://10.0.0.2:81",
		Received:   10,
		Dropped:    1,
		UpdateRate: 5,
		Model:      "drone.glb (1.2 MB)",
		Scale:      1,
		HasSample:  true,
		LastSample: telemetry.SensorSample{GyroX: 1, Temperature: 20, Timestamp: 99},
	}
	lines := st.Lines()
	assert.Equal(t, "Connection: Connected ws://10.0.0.2:81", lines[0])
	assert.Equal(t, "Samples: 10 received, 1 dropped, 5/s", lines[1])
	assert.Contains(t, lines[len(lines)-1], "at 99")
}
