package smoothing

import (
	"fmt"
	"time"
)

// RunState is the single gating state of the engine. Direct mode is
// tracked separately and does not change it.
type RunState int

const (
	Disabled RunState = iota
	Paused
	Active
)

func (s RunState) String() string {
	switch s {
	case Disabled:
		return "disabled"
	case Paused:
		return "paused"
	case Active:
		return "active"
	default:
		return "unknown"
	}
}

func (s RunState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *RunState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "disabled":
		*s = Disabled
	case "paused":
		*s = Paused
	case "active":
		*s = Active
	default:
		return fmt.Errorf("unknown run state %q", b)
	}
	return nil
}

// Component names a part of the surrounding system whose state gates output.
type Component string

const (
	// ComponentSmoothing toggles the engine's own enable flag.
	ComponentSmoothing Component = "SMOOTHING"
	// ComponentLedDevice reports whether the output device is usable.
	ComponentLedDevice Component = "LEDDEVICE"
)

// Settings is the settings document the engine derives config 0 from.
type Settings struct {
	Enable               bool
	ContinuousOutput     bool
	DirectMode           bool
	SettlingTime         time.Duration
	UpdateFrequency      float64 // Hz
	Variant              Variant
	AntiFlickerThreshold int
	AntiFlickerStep      int
	AntiFlickerTimeout   time.Duration
	// WatchdogTicks is the number of input-less ticks before a stall is
	// reported. Zero uses DefaultWatchdogTicks, negative disables it.
	WatchdogTicks int
}

// DefaultSettings mirrors DefaultConfig with the engine enabled.
func DefaultSettings() Settings {
	return Settings{
		Enable:             true,
		SettlingTime:       DefaultSettlingTime,
		UpdateFrequency:    DefaultUpdateFrequency,
		Variant:            Linear,
		AntiFlickerStep:    DefaultAntiFlickerStep,
		AntiFlickerTimeout: DefaultAntiFlickerTimeout,
	}
}

// Config derives the selectable configuration from the settings.
func (s Settings) Config() Config {
	settling := s.SettlingTime
	if settling < 0 {
		settling = 0
	}
	return Config{
		SettlingTime:         settling,
		TickInterval:         IntervalFor(s.UpdateFrequency),
		DirectMode:           s.DirectMode,
		Variant:              s.Variant,
		AntiFlickerThreshold: s.AntiFlickerThreshold,
		AntiFlickerStep:      s.AntiFlickerStep,
		AntiFlickerTimeout:   s.AntiFlickerTimeout,
	}
}

func (s Settings) watchdogTicks() int {
	switch {
	case s.WatchdogTicks == 0:
		return DefaultWatchdogTicks
	case s.WatchdogTicks < 0:
		return 0
	default:
		return s.WatchdogTicks
	}
}
