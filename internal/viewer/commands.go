package viewer

import (
	"fmt"
	"strconv"
	"strings"

	"gyroview/internal/commands"
)

// RegisterCommands adds the viewer's console commands to reg.
func (a *App) RegisterCommands(reg *commands.Registry) {
	connect := commands.NewFlagSet("connect")
	port := connect.Int("port", 0, "device websocket port (default 81)")
	reg.Register("connect", "connect [-port N] <address>", connect, func() error {
		if connect.NArg() != 1 {
			return commands.ErrUsage
		}
		p := *port
		if p == 0 {
			p = a.cfg.Telemetry.Port
		}
		return a.Connect(connect.Arg(0), p)
	})

	reg.Register("disconnect", "disconnect", nil, func() error {
		a.Disconnect()
		return nil
	})

	load := commands.NewFlagSet("load")
	reg.Register("load", "load <path>", load, func() error {
		if load.NArg() == 0 {
			return commands.ErrUsage
		}
		a.LoadFile(a.ctx, strings.Join(load.Args(), " "))
		return nil
	})

	fetch := commands.NewFlagSet("fetch")
	reg.Register("fetch", "fetch <url>", fetch, func() error {
		if fetch.NArg() != 1 {
			return commands.ErrUsage
		}
		a.FetchModel(a.ctx, fetch.Arg(0))
		return nil
	})

	scale := commands.NewFlagSet("scale")
	reg.Register("scale", "scale <factor>", scale, func() error {
		if scale.NArg() != 1 {
			return commands.ErrUsage
		}
		f, err := strconv.ParseFloat(scale.Arg(0), 32)
		if err != nil {
			return commands.ErrUsage
		}
		a.log.Logf("Scale: %.2f", a.SetScale(float32(f)))
		return nil
	})

	smooth := commands.NewFlagSet("smooth")
	off := smooth.Bool("off", false, "disable smoothing")
	speed := smooth.Float64("speed", -1, "interpolation factor per frame, 0.01-1")
	reg.Register("smooth", "smooth [-off] [-speed f]", smooth, func() error {
		sp := a.filter.Speed()
		if *speed >= 0 {
			sp = float32(*speed)
		}
		got := a.SetSmoothing(!*off, sp)
		a.log.Logf("Smoothing: %t, speed %.2f", !*off, got)
		return nil
	})

	reg.Register("wireframe", "wireframe", nil, func() error {
		a.log.Logf("Wireframe toggled on %d materials", a.ToggleWireframe())
		return nil
	})

	reg.Register("reset", "reset", nil, func() error {
		// Send already logged ErrNotConnected
		_ = a.ResetOrientation()
		return nil
	})

	reg.Register("center", "center", nil, func() error {
		a.CenterModel()
		return nil
	})

	reg.Register("stats", "stats", nil, func() error {
		for _, line := range a.Stats().Lines() {
			a.log.Log(line)
		}
		return nil
	})

	reg.Register("help", "help", nil, func() error {
		for _, line := range reg.Help() {
			a.log.Log(line)
		}
		return nil
	})
}

// Lines renders the snapshot for the console.
func (s Stats) Lines() []string {
	conn := s.State.String()
	if s.URL != "" {
		conn += " " + s.URL
	}
	lines := []string{
		"Connection: " + conn,
		fmt.Sprintf("Samples: %d received, %d dropped, %d/s", s.Received, s.Dropped, s.UpdateRate),
		fmt.Sprintf("Model: %s (custom: %t, scale %.2f)", s.Model, s.CustomModel, s.Scale),
		fmt.Sprintf("Smoothing: %t, speed %.2f", s.Smoothing, s.Speed),
		fmt.Sprintf("FPS: %d", s.FPS),
	}
	if s.HasSample {
		l := s.LastSample
		lines = append(lines, fmt.Sprintf("Last sample: gyro %.1f %.1f %.1f, %.1f °C at %d",
			l.GyroX, l.GyroY, l.GyroZ, l.Temperature, l.Timestamp))
	}
	return lines
}
