package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the viewer config file, relative to the process working directory.
const DefaultPath = "config/gyroview.yaml"

// maxFileSize guards against pointing the loader at something that is not a config file.
const maxFileSize = 1 << 20

// TelemetryConfig selects the device websocket endpoint.
type TelemetryConfig struct {
	Address     string `yaml:"address"`
	Port        int    `yaml:"port"`
	DialTimeout string `yaml:"dial_timeout"` // duration string like "5s"
	AutoConnect bool   `yaml:"auto_connect"`
}

// OrientationConfig holds smoothing preferences.
type OrientationConfig struct {
	Smooth        bool    `yaml:"smooth"`
	RotationSpeed float32 `yaml:"rotation_speed"`
}

// ModelConfig holds the asset to load at startup and the scale range.
type ModelConfig struct {
	Path     string  `yaml:"path,omitempty"`
	Watch    bool    `yaml:"watch"`
	Scale    float32 `yaml:"scale"`
	ScaleMin float32 `yaml:"scale_min"`
	ScaleMax float32 `yaml:"scale_max"`
	// CacheDir receives models fetched over HTTP.
	CacheDir string `yaml:"cache_dir"`
}

// WindowConfig holds window and camera preferences.
type WindowConfig struct {
	Title       string  `yaml:"title"`
	Width       int     `yaml:"width"`
	Height      int     `yaml:"height"`
	TargetFPS   int     `yaml:"target_fps"`
	FieldOfView float32 `yaml:"field_of_view"`
	ShowGrid    bool    `yaml:"show_grid"`
	ShowHUD     bool    `yaml:"show_hud"`
	// Font is a .ttf/.otf path or a family name looked up under assets/fonts, then on Google Fonts.
	// Empty uses raylib's font.
	Font string `yaml:"font,omitempty"`
}

// Config is the root of config/gyroview.yaml.
type Config struct {
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Orientation OrientationConfig `yaml:"orientation"`
	Model       ModelConfig       `yaml:"model"`
	Window      WindowConfig      `yaml:"window"`
	LogPath     string            `yaml:"log_path"`
}

// Default returns the stock configuration: device on port 81, smoothing on at 0.1,
// scale 1 within [0.1, 3], 75° field of view.
func Default() Config {
	return Config{
		Telemetry: TelemetryConfig{
			Address:     "192.168.4.1",
			Port:        81,
			DialTimeout: "5s",
		},
		Orientation: OrientationConfig{
			Smooth:        true,
			RotationSpeed: 0.1,
		},
		Model: ModelConfig{
			Scale:    1,
			ScaleMin: 0.1,
			ScaleMax: 3,
			CacheDir: "assets/models/downloaded",
		},
		Window: WindowConfig{
			Title:       "gyroview",
			Width:       1280,
			Height:      720,
			TargetFPS:   60,
			FieldOfView: 75,
			ShowGrid:    true,
			ShowHUD:     true,
		},
		LogPath: "logs/gyroview.txt",
	}
}

// Load reads the config at path. A missing file yields Default() and no error; fields omitted
// from the file keep their default values. Malformed or invalid files are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	clean := filepath.Clean(path)
	info, err := os.Stat(clean)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if info.Size() > maxFileSize {
		return cfg, fmt.Errorf("config: file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}
	data, err := os.ReadFile(clean)
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("config: parse %s: %w", clean, err)
	}
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("config: %s: %w", clean, err)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks ranges that the components rely on.
func (c Config) Validate() error {
	if c.Telemetry.Port < 0 || c.Telemetry.Port > 65535 {
		return fmt.Errorf("telemetry.port must be within 0-65535, got %d", c.Telemetry.Port)
	}
	if c.Telemetry.DialTimeout != "" {
		if _, err := time.ParseDuration(c.Telemetry.DialTimeout); err != nil {
			return fmt.Errorf("invalid telemetry.dial_timeout %q: %w", c.Telemetry.DialTimeout, err)
		}
	}
	if c.Orientation.RotationSpeed <= 0 || c.Orientation.RotationSpeed > 1 {
		return fmt.Errorf("orientation.rotation_speed must be within (0, 1], got %g", c.Orientation.RotationSpeed)
	}
	if c.Model.ScaleMin <= 0 || c.Model.ScaleMax < c.Model.ScaleMin {
		return fmt.Errorf("model scale range [%g, %g] is invalid", c.Model.ScaleMin, c.Model.ScaleMax)
	}
	if c.Window.FieldOfView <= 0 || c.Window.FieldOfView >= 180 {
		return fmt.Errorf("window.field_of_view must be within (0, 180), got %g", c.Window.FieldOfView)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window size %dx%d is invalid", c.Window.Width, c.Window.Height)
	}
	if c.Window.TargetFPS < 0 {
		return fmt.Errorf("window.target_fps must be non-negative, got %d", c.Window.TargetFPS)
	}
	return nil
}

// DialTimeout parses Telemetry.DialTimeout, falling back to 5s.
func (c Config) DialTimeout() time.Duration {
	d, err := time.ParseDuration(c.Telemetry.DialTimeout)
	if err != nil || d <= 0 {
		return 5 * time.Second
	}
	return d
}
