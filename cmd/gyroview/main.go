// Command gyroview shows the live orientation of an IMU device as a 3D model.
//
//	gyroview [-config config/gyroview.yaml] [-address 192.168.4.1] [-port 81] [-connect] [-model drone.glb]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	rl "github.com/gen2brain/raylib-go/raylib"
	"golang.org/x/sync/errgroup"

	"gyroview/internal/asset"
	"gyroview/internal/assetwatch"
	"gyroview/internal/commands"
	"gyroview/internal/config"
	"gyroview/internal/download"
	"gyroview/internal/fonts"
	"gyroview/internal/graphics"
	"gyroview/internal/logger"
	"gyroview/internal/loop"
	"gyroview/internal/scene"
	"gyroview/internal/terminal"
	"gyroview/internal/viewer"
)

const userAgent = "gyroview/1.0"

type options struct {
	configPath  string
	address     string
	port        int
	model       string
	connect     bool
	watch       bool
	writeConfig bool
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.configPath, "config", config.DefaultPath, "YAML config file")
	flag.StringVar(&o.address, "address", "", "device address (overrides config and "+config.EnvAddress+")")
	flag.IntVar(&o.port, "port", 0, "device websocket port")
	flag.StringVar(&o.model, "model", "", "model file (.glb, .gltf, .obj) to show at startup")
	flag.BoolVar(&o.connect, "connect", false, "connect to the device on startup")
	flag.BoolVar(&o.watch, "watch", false, "reload the model when its file changes")
	flag.BoolVar(&o.writeConfig, "write-config", false, "write the effective config to -config and exit")
	flag.Parse()
	return o
}

func main() {
	if err := run(parseFlags()); err != nil {
		fmt.Fprintln(os.Stderr, "gyroview:", err)
		os.Exit(1)
	}
}

func loadConfig(o options) (config.Config, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, err
	}
	if cfg, err = cfg.WithEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if o.address != "" {
		cfg.Telemetry.Address = o.address
	}
	if o.port != 0 {
		cfg.Telemetry.Port = o.port
	}
	if o.model != "" {
		cfg.Model.Path = o.model
	}
	if o.connect {
		cfg.Telemetry.AutoConnect = true
	}
	if o.watch {
		cfg.Model.Watch = true
	}
	return cfg, cfg.Validate()
}

func run(o options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	if o.writeConfig {
		return config.Save(o.configPath, cfg)
	}
	log := logger.New(cfg.LogPath)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	win, err := graphics.Open(cfg.Window, scene.Background(), log)
	if err != nil {
		return err
	}
	defer win.Close()

	scn := scene.New(cfg.Window.FieldOfView, log)
	defer scn.Close()
	scn.GridVisible = cfg.Window.ShowGrid

	reg := commands.NewRegistry()
	term := terminal.New(log, reg)
	term.SetFont(win.Font())

	fetcher := &download.Client{UserAgent: userAgent}
	var (
		app     *viewer.App
		overlay *graphics.Overlay
		watcher *assetwatch.Watcher
	)
	deps := viewer.Deps{
		Config:  cfg,
		Log:     log,
		Backend: scn,
		Camera:  scn,
		Renderer: loop.RendererFunc(func(a *asset.Asset) {
			scn.Render3D(a)
			overlay.Draw()
			term.Draw()
		}),
		Controls: loop.ControlsFunc(func() {
			for _, path := range win.DroppedFiles() {
				app.LoadFile(ctx, path)
			}
			term.Update()
			if !term.IsOpen() {
				scn.UpdateControls()
			}
		}),
		Fetcher: fetcher,
	}
	if cfg.Model.Watch {
		watcher, err = assetwatch.New(log, assetwatch.DefaultDebounce, func(path string) {
			app.Post(func() { app.LoadFile(ctx, path) })
		})
		if err != nil {
			log.Warnf("model watching disabled: %v", err)
		} else {
			deps.Watcher = watcher
		}
	}

	app = viewer.New(deps)
	overlay = graphics.NewOverlay(app.Panel())
	overlay.ShowHUD = cfg.Window.ShowHUD
	overlay.SetFont(win.Font())

	hf := &hudFont{
		finder:  fonts.NewFinder(),
		fetcher: fetcher,
		log:     log,
		post:    app.Post,
		apply: func(path string) {
			if win.LoadFont(path) {
				term.SetFont(win.Font())
				overlay.SetFont(win.Font())
			}
		},
	}
	if cfg.Window.Font != "" {
		hf.use(ctx, cfg.Window.Font)
	}

	app.RegisterCommands(reg)
	registerWindowCommands(reg, app, scn, overlay)
	hf.register(ctx, reg)
	term.Bind(rl.KeyR, func() { _ = app.ResetOrientation() })
	term.Bind(rl.KeyC, app.CenterModel)
	term.Bind(rl.KeyW, func() { app.ToggleWireframe() })

	var g errgroup.Group
	if watcher != nil {
		g.Go(func() error { return watcher.Run(ctx) })
	}

	runErr := app.Start(ctx, win)
	cancel()
	if err := g.Wait(); err != nil {
		log.Errorf("%v", err)
	}
	return runErr
}

// registerWindowCommands adds the commands that only make sense with a window.
func registerWindowCommands(reg *commands.Registry, app *viewer.App, scn *scene.Scene, overlay *graphics.Overlay) {
	reg.Register("grid", "grid", nil, func() error {
		scn.GridVisible = !scn.GridVisible
		return nil
	})
	hud := commands.NewFlagSet("hud")
	mem := hud.Bool("mem", false, "toggle the memory readout instead")
	reg.Register("hud", "hud [-mem]", hud, func() error {
		if *mem {
			overlay.ShowMem = !overlay.ShowMem
		} else {
			overlay.ShowHUD = !overlay.ShowHUD
		}
		return nil
	})
	reg.Register("quit", "quit", nil, func() error {
		app.Stop()
		return nil
	})
}

// hudFont switches the HUD font. Names not found locally are downloaded from Google Fonts into
// the first font directory; the font itself is loaded on the loop goroutine.
type hudFont struct {
	finder  *fonts.Finder
	google  fonts.Google
	fetcher *download.Client
	log     *logger.Logger
	post    func(func())
	apply   func(path string)
}

func (h *hudFont) use(ctx context.Context, name string) {
	path, err := h.finder.Resolve(name)
	if err == nil {
		h.apply(path)
		return
	}
	if !errors.Is(err, os.ErrNotExist) {
		h.log.Warnf("font: %v", err)
		return
	}
	h.log.Logf("Font %q not installed, fetching from Google Fonts", name)
	go func() {
		path, err := h.download(ctx, name)
		if err != nil {
			h.log.Warnf("font: %v", err)
			return
		}
		h.post(func() { h.apply(path) })
	}()
}

func (h *hudFont) download(ctx context.Context, name string) (string, error) {
	u, err := h.google.URL(ctx, name)
	if err != nil {
		return "", err
	}
	path, err := h.fetcher.Fetch(ctx, u, h.finder.Dirs[0])
	if err != nil {
		return "", err
	}
	return h.finder.Resolve(path)
}

func (h *hudFont) register(ctx context.Context, reg *commands.Registry) {
	fs := commands.NewFlagSet("font")
	reg.Register("font", "font <name|path>", fs, func() error {
		if fs.NArg() == 0 {
			return commands.ErrUsage
		}
		h.use(ctx, strings.Join(fs.Args(), " "))
		return nil
	})
}
