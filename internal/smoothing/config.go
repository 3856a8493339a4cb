package smoothing

import (
	"math"
	"strings"
	"time"
)

const (
	DefaultSettlingTime       = 200 * time.Millisecond
	DefaultUpdateFrequency    = 25.0 // Hz
	DefaultAntiFlickerStep    = 2
	DefaultAntiFlickerTimeout = 250 * time.Millisecond
	DefaultWatchdogTicks      = 250
)

// Variant selects the interpolation curve.
type Variant int

const (
	Linear Variant = iota
	Alternative
)

func (v Variant) String() string {
	switch v {
	case Linear:
		return "linear"
	case Alternative:
		return "alternative"
	default:
		return "unknown"
	}
}

// ParseVariant maps a settings name to a Variant. Unknown names are Linear.
func ParseVariant(s string) Variant {
	if strings.EqualFold(strings.TrimSpace(s), "alternative") {
		return Alternative
	}
	return Linear
}

// Config is one smoothing configuration. A Config is copied into the engine
// when selected; later registry edits only take effect on reselection.
type Config struct {
	Paused               bool
	SettlingTime         time.Duration
	TickInterval         time.Duration
	DirectMode           bool
	Variant              Variant
	AntiFlickerThreshold int
	AntiFlickerStep      int
	AntiFlickerTimeout   time.Duration
}

// DefaultConfig is the configuration used when nothing else is known.
func DefaultConfig() Config {
	return Config{
		SettlingTime:       DefaultSettlingTime,
		TickInterval:       IntervalFor(DefaultUpdateFrequency),
		Variant:            Linear,
		AntiFlickerStep:    DefaultAntiFlickerStep,
		AntiFlickerTimeout: DefaultAntiFlickerTimeout,
	}
}

// pauseConfig freezes output; it lives at PauseConfigID.
func pauseConfig() Config {
	return Config{Paused: true}
}

// IntervalFor converts an update frequency to a whole-millisecond tick
// interval: round(1000/freq). Non-positive frequencies use the default.
func IntervalFor(freqHz float64) time.Duration {
	if freqHz <= 0 || math.IsNaN(freqHz) || math.IsInf(freqHz, 0) {
		freqHz = DefaultUpdateFrequency
	}
	ms := math.Round(1000.0 / freqHz)
	if ms < 1 {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

// queueDepth is the number of ticks needed to drain one settling window.
func (c Config) queueDepth() int {
	if c.DirectMode || c.TickInterval <= 0 {
		return 0
	}
	return int(c.SettlingTime / c.TickInterval)
}

func (c Config) antiFlickerActive() bool {
	return !c.DirectMode && c.AntiFlickerThreshold > 0
}

// ConfigID identifies a registry entry. IDs are insertion indexes and are
// never reused, so an ID returned once stays valid for the registry's life.
type ConfigID uint32

const (
	DefaultConfigID ConfigID = 0
	PauseConfigID   ConfigID = 1
)

// Registry is the ordered set of selectable configurations. It is not safe
// for concurrent use; the engine guards it with its own mutex.
type Registry struct {
	cfgs []Config
}

// NewRegistry creates a registry holding def at DefaultConfigID and the
// built-in pause configuration at PauseConfigID.
func NewRegistry(def Config) *Registry {
	return &Registry{cfgs: []Config{def, pauseConfig()}}
}

// Len returns the number of entries.
func (r *Registry) Len() int { return len(r.cfgs) }

// Get returns the config stored under id.
func (r *Registry) Get(id ConfigID) (Config, bool) {
	if int(id) >= len(r.cfgs) {
		return Config{}, false
	}
	return r.cfgs[id], true
}

// Add appends a config built from timing parameters with default
// anti-flicker values and returns its id.
func (r *Registry) Add(settling time.Duration, freqHz float64, direct bool) ConfigID {
	return r.append(timingConfig(settling, freqHz, direct))
}

// Update overwrites the entry at id, or appends a new one when id is
// unknown. The returned id is the one to pass to selection.
func (r *Registry) Update(id ConfigID, settling time.Duration, freqHz float64, direct bool) ConfigID {
	return r.Put(id, timingConfig(settling, freqHz, direct))
}

// Put stores a complete config under id with the same find-or-create rule
// as Update.
func (r *Registry) Put(id ConfigID, cfg Config) ConfigID {
	if int(id) < len(r.cfgs) {
		r.cfgs[id] = cfg
		return id
	}
	return r.append(cfg)
}

func (r *Registry) append(cfg Config) ConfigID {
	r.cfgs = append(r.cfgs, cfg)
	return ConfigID(len(r.cfgs) - 1)
}

func timingConfig(settling time.Duration, freqHz float64, direct bool) Config {
	cfg := DefaultConfig()
	if settling < 0 {
		settling = 0
	}
	cfg.SettlingTime = settling
	cfg.TickInterval = IntervalFor(freqHz)
	cfg.DirectMode = direct
	return cfg
}
