package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coreman2200/ledsmooth/internal/smoothing"
)

type Dim struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
	Z int `yaml:"z"`
}

type SPI struct {
	Dev     string `yaml:"dev"`      // periph port name, e.g. /dev/spidev0.0 or "" for the first one
	SpeedHz int    `yaml:"speed_hz"` // e.g. 2500000
}

type Serial struct {
	Port string `yaml:"port"` // e.g. /dev/ttyUSB0
	Baud int    `yaml:"baud"`
}

// Smoothing mirrors the smoothing section of the settings document.
type Smoothing struct {
	Enable               bool    `yaml:"enable"`
	TimeMs               int     `yaml:"time_ms"`
	UpdateFrequency      float64 `yaml:"update_frequency"`
	Type                 string  `yaml:"type"` // linear | alternative
	ContinuousOutput     bool    `yaml:"continuous_output"`
	DirectMode           bool    `yaml:"direct_mode"`
	AntiFlickerThreshold int     `yaml:"anti_flicker_threshold"`
	AntiFlickerStep      int     `yaml:"anti_flicker_step"`
	AntiFlickerTimeoutMs int     `yaml:"anti_flicker_timeout_ms"`
	WatchdogTicks        int     `yaml:"watchdog_ticks"`
}

// Profile is an extra smoothing configuration registered at startup, e.g.
// a fast one for video grabbing.
type Profile struct {
	Name                 string  `yaml:"name"`
	TimeMs               int     `yaml:"time_ms"`
	UpdateFrequency      float64 `yaml:"update_frequency"`
	Type                 string  `yaml:"type"`
	DirectMode           bool    `yaml:"direct_mode"`
	AntiFlickerThreshold int     `yaml:"anti_flicker_threshold"`
	AntiFlickerStep      int     `yaml:"anti_flicker_step"`
	AntiFlickerTimeoutMs int     `yaml:"anti_flicker_timeout_ms"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Effect struct {
	Name  string  `yaml:"name"` // rainbow | index_sweep | rgb_channels | plane_z | none
	FPS   int     `yaml:"fps"`
	Speed float64 `yaml:"speed"`
}

type Config struct {
	Driver     string `yaml:"driver"` // "sim" | "spi" | "serial"
	ColorOrder string `yaml:"color_order"`
	SPI        SPI    `yaml:"spi,omitempty"`
	Serial     Serial `yaml:"serial,omitempty"`

	Dim             Dim     `yaml:"dim"`
	PitchMM         float64 `yaml:"pitch_mm"`
	PanelGapMM      float64 `yaml:"panel_gap_mm"`
	XFlipEveryRow   bool    `yaml:"x_flip_every_row"`
	YFlipEveryPanel bool    `yaml:"y_flip_every_panel"`

	Smoothing Smoothing `yaml:"smoothing"`
	Profiles  []Profile `yaml:"profiles,omitempty"`
	Server    Server    `yaml:"server"`
	Effect    Effect    `yaml:"effect"`
}

// Default returns the configuration used when no file is given. Fields
// missing from a loaded file keep these values.
func Default() *Config {
	return &Config{
		Driver:     "sim",
		ColorOrder: "GRB",
		SPI:        SPI{SpeedHz: 2500000},
		Serial:     Serial{Baud: 115200},
		Dim:        Dim{X: 10, Y: 10, Z: 1},
		PitchMM:    16.6,
		Smoothing: Smoothing{
			Enable:               true,
			TimeMs:               int(smoothing.DefaultSettlingTime / time.Millisecond),
			UpdateFrequency:      smoothing.DefaultUpdateFrequency,
			Type:                 "linear",
			AntiFlickerStep:      smoothing.DefaultAntiFlickerStep,
			AntiFlickerTimeoutMs: int(smoothing.DefaultAntiFlickerTimeout / time.Millisecond),
		},
		Server: Server{Addr: ":8080"},
		Effect: Effect{Name: "rainbow", FPS: 30, Speed: 1},
	}
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "sim", "spi", "serial":
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	if c.Dim.X <= 0 || c.Dim.Y <= 0 || c.Dim.Z <= 0 {
		return fmt.Errorf("invalid dim %dx%dx%d", c.Dim.X, c.Dim.Y, c.Dim.Z)
	}
	if c.Smoothing.TimeMs < 0 {
		return fmt.Errorf("smoothing.time_ms must not be negative")
	}
	for i, p := range c.Profiles {
		if p.TimeMs < 0 {
			return fmt.Errorf("profiles[%d] (%s): time_ms must not be negative", i, p.Name)
		}
	}
	return nil
}

// LEDCount is the number of LEDs described by Dim.
func (c *Config) LEDCount() int { return c.Dim.X * c.Dim.Y * c.Dim.Z }

// Settings converts the smoothing section for the engine.
func (s Smoothing) Settings() smoothing.Settings {
	return smoothing.Settings{
		Enable:               s.Enable,
		ContinuousOutput:     s.ContinuousOutput,
		DirectMode:           s.DirectMode,
		SettlingTime:         ms(s.TimeMs),
		UpdateFrequency:      s.UpdateFrequency,
		Variant:              smoothing.ParseVariant(s.Type),
		AntiFlickerThreshold: s.AntiFlickerThreshold,
		AntiFlickerStep:      s.AntiFlickerStep,
		AntiFlickerTimeout:   ms(s.AntiFlickerTimeoutMs),
		WatchdogTicks:        s.WatchdogTicks,
	}
}

// Config converts a profile into a registry entry.
func (p Profile) Config() smoothing.Config {
	return smoothing.Config{
		SettlingTime:         ms(p.TimeMs),
		TickInterval:         smoothing.IntervalFor(p.UpdateFrequency),
		DirectMode:           p.DirectMode,
		Variant:              smoothing.ParseVariant(p.Type),
		AntiFlickerThreshold: p.AntiFlickerThreshold,
		AntiFlickerStep:      p.AntiFlickerStep,
		AntiFlickerTimeout:   ms(p.AntiFlickerTimeoutMs),
	}
}

func ms(v int) time.Duration {
	if v < 0 {
		v = 0
	}
	return time.Duration(v) * time.Millisecond
}
