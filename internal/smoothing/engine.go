package smoothing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/ledsmooth/internal/clock"
	"github.com/coreman2200/ledsmooth/internal/colorframe"
	diag "github.com/coreman2200/ledsmooth/internal/diagnostics"
	"github.com/coreman2200/ledsmooth/internal/led"
)

var (
	// ErrInvalidFrameLength rejects a frame whose LED count differs from the
	// count established by the first frame of the session.
	ErrInvalidFrameLength = errors.New("invalid frame length")
	// ErrSinkUnavailable is returned once the sink reported led.ErrClosed.
	ErrSinkUnavailable = errors.New("sink unavailable")
)

// Sink receives finished frames. Write is only ever called from one tick
// at a time and never while the engine lock is held. The frame is shared
// with the engine and must not be modified.
type Sink interface {
	Write(colorframe.Frame) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clk = c } }

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithDiagnostics routes telemetry events to fn. fn is called with the
// engine lock held and must not block.
func WithDiagnostics(fn diag.Sink) Option { return func(e *Engine) { e.diag = fn } }

// WithDebugEvery logs a stats line every n ticks; 0 disables it.
func WithDebugEvery(n int) Option { return func(e *Engine) { e.debugEvery = n } }

// Engine turns asynchronously submitted target frames into a smooth stream
// written to a Sink at a fixed tick rate.
//
// Producers call SubmitFrame from any goroutine; Run (or direct Tick calls)
// drives the output. All state below mu is shared between the two sides.
type Engine struct {
	id   string
	sink Sink
	clk  clock.Clock
	log  zerolog.Logger
	diag diag.Sink

	mu          sync.Mutex
	registry    *Registry
	cfg         Config
	currentID   ConfigID
	enabled     bool
	gates       map[Component]bool
	continuous  bool
	timing      TimingState
	frameLen    int
	flicker     antiFlicker
	lastOutput  colorframe.Frame
	lastWritten colorframe.Frame
	queue       *OutputQueue

	watchdogTicks     int
	watchdogRemaining int
	stalled           bool
	debugEvery        int
	debugCounter      int
	infoInput         bool
	infoUpdate        bool
	sinkClosed        bool
	failing           bool
	clearGen          uint64 // bumped by every clear

	ticking    atomic.Bool
	intervalCh chan time.Duration
	stats      counters
}

// New creates an engine writing to sink, with config 0 derived from s and
// selected.
func New(sink Sink, s Settings, opts ...Option) (*Engine, error) {
	if sink == nil {
		return nil, errors.New("smoothing: nil sink")
	}
	e := &Engine{
		id:            uuid.NewString(),
		sink:          sink,
		clk:           clock.Real{},
		diag:          diag.Discard,
		registry:      NewRegistry(s.Config()),
		enabled:       s.Enable,
		gates:         map[Component]bool{},
		continuous:    s.ContinuousOutput,
		queue:         NewOutputQueue(0),
		watchdogTicks: s.watchdogTicks(),
		intervalCh:    make(chan time.Duration, 1),
	}
	e.log = log.Logger.With().Str("component", "smoothing").Logger()
	for _, opt := range opts {
		opt(e)
	}
	if e.diag == nil {
		e.diag = diag.Discard
	}
	e.log = e.log.With().Str("engine", e.id[:8]).Logger()

	e.mu.Lock()
	e.selectLocked(DefaultConfigID, true)
	e.mu.Unlock()
	return e, nil
}

// ID returns the engine's instance id.
func (e *Engine) ID() string { return e.id }

// ---- configuration registry ----

// AddConfig registers a new configuration and returns its id.
func (e *Engine) AddConfig(settling time.Duration, freqHz float64, direct bool) ConfigID {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.registry.Add(settling, freqHz, direct)
	e.log.Debug().Uint32("cfg", uint32(id)).Dur("settling", settling).Float64("hz", freqHz).Bool("direct", direct).Msg("config added")
	return id
}

// UpdateConfig overwrites config id, or adds a new one if id is unknown.
// Callers must keep the returned id; that is what stays stable.
func (e *Engine) UpdateConfig(id ConfigID, settling time.Duration, freqHz float64, direct bool) ConfigID {
	e.mu.Lock()
	defer e.mu.Unlock()
	got := e.registry.Update(id, settling, freqHz, direct)
	e.log.Debug().Uint32("cfg", uint32(got)).Dur("settling", settling).Float64("hz", freqHz).Bool("direct", direct).Msg("config updated")
	return got
}

// UpdateConfigFull is UpdateConfig with every field supplied.
func (e *Engine) UpdateConfigFull(id ConfigID, cfg Config) ConfigID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Put(id, cfg)
}

// Config returns the registry entry for id.
func (e *Engine) Config(id ConfigID) (Config, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Get(id)
}

// ConfigCount returns the registry size.
func (e *Engine) ConfigCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.registry.Len()
}

// CurrentConfigID returns the active configuration id.
func (e *Engine) CurrentConfigID() ConfigID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.currentID
}

// SelectConfig activates config id. Selecting the active id again is a
// no-op unless force is set. An unknown id activates config 0 and returns
// false.
func (e *Engine) SelectConfig(id ConfigID, force bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selectLocked(id, force)
}

func (e *Engine) selectLocked(id ConfigID, force bool) bool {
	if id == e.currentID && !force {
		return true
	}
	cfg, ok := e.registry.Get(id)
	if !ok {
		e.log.Warn().Uint32("cfg", uint32(id)).Int("configs", e.registry.Len()).Msg("unknown smoothing config; falling back to 0")
		e.diag(diag.Diagnostic{
			Time:     e.clk.Now(),
			Severity: diag.Warn,
			Code:     diag.CodeConfigFallback,
			Summary:  "Unknown smoothing configuration selected",
			Evidence: map[string]any{"requested": id, "configs": e.registry.Len()},
		})
		def, _ := e.registry.Get(DefaultConfigID)
		e.applyLocked(DefaultConfigID, def)
		return false
	}
	e.applyLocked(id, cfg)
	return true
}

func (e *Engine) applyLocked(id ConfigID, cfg Config) {
	prevInterval := e.cfg.TickInterval
	e.cfg = cfg
	e.currentID = id
	e.queue.SetDepth(cfg.queueDepth())
	if !cfg.antiFlickerActive() {
		e.flicker.reset()
	}
	if cfg.TickInterval > 0 && cfg.TickInterval != prevInterval {
		// keep only the newest interval for the run loop
		select {
		case <-e.intervalCh:
		default:
		}
		e.intervalCh <- cfg.TickInterval
	}
	e.watchdogRemaining = e.watchdogTicks
	e.stalled = false
	e.infoInput = true
	e.infoUpdate = true

	e.log.Info().
		Uint32("cfg", uint32(id)).
		Bool("pause", cfg.Paused).
		Dur("settling", cfg.SettlingTime).
		Dur("interval", cfg.TickInterval).
		Bool("direct", cfg.DirectMode).
		Str("type", cfg.Variant.String()).
		Int("af_threshold", cfg.AntiFlickerThreshold).
		Int("af_step", cfg.AntiFlickerStep).
		Dur("af_timeout", cfg.AntiFlickerTimeout).
		Msg("smoothing config selected")
}

// ---- enable / gating ----

// SetEnable sets the explicit enable flag. Disabling drops queued frames
// and the current transition.
func (e *Engine) SetEnable(enable bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.setEnableLocked(enable)
}

func (e *Engine) setEnableLocked(enable bool) {
	if e.enabled == enable {
		return
	}
	e.enabled = enable
	e.log.Info().Bool("enabled", enable).Msg("smoothing enable changed")
	if !enable {
		e.clearLocked(false, false)
	}
}

// Enabled reports whether output is being produced.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked() == Active
}

// Paused reports whether the active config is a pause config.
func (e *Engine) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.Paused
}

// DirectMode reports whether the active config bypasses interpolation.
func (e *Engine) DirectMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.DirectMode
}

// State returns the current gating state.
func (e *Engine) State() RunState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine) stateLocked() RunState {
	if !e.enabled {
		return Disabled
	}
	for _, active := range e.gates {
		if !active {
			return Disabled
		}
	}
	if e.cfg.Paused {
		return Paused
	}
	return Active
}

// ComponentStateChange records the state of an external component. Output
// only flows while every reported component is active. The LED device
// component also clears queued output, and the smoothing component maps
// onto SetEnable.
func (e *Engine) ComponentStateChange(c Component, active bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c == ComponentSmoothing {
		e.setEnableLocked(active)
		return
	}
	e.gates[c] = active
	e.log.Info().Str("component", string(c)).Bool("active", active).Msg("component state changed")
	if c == ComponentLedDevice {
		e.clearLocked(active, false)
	}
}

// HandleSettingsUpdate re-derives config 0 from s. When config 0 is active
// it is re-applied immediately; otherwise it waits for the next selection.
func (e *Engine) HandleSettingsUpdate(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.registry.Put(DefaultConfigID, s.Config())
	e.setEnableLocked(s.Enable)
	e.continuous = s.ContinuousOutput
	e.watchdogTicks = s.watchdogTicks()
	e.log.Info().
		Bool("enable", s.Enable).
		Bool("continuous", s.ContinuousOutput).
		Dur("settling", s.SettlingTime).
		Float64("hz", s.UpdateFrequency).
		Str("type", s.Variant.String()).
		Msg("smoothing settings updated")

	e.clearLocked(true, true)
	if e.currentID == DefaultConfigID {
		e.selectLocked(DefaultConfigID, true)
	}
}

// ClearQueuedColors discards queued output. With deviceEnabled false the
// transition and the established frame length are forgotten too, so the
// next frame starts a new session.
func (e *Engine) ClearQueuedColors(deviceEnabled, restarting bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clearLocked(deviceEnabled, restarting)
}

func (e *Engine) clearLocked(deviceEnabled, restarting bool) {
	dropped := e.queue.Clear()
	e.lastWritten = nil
	e.clearGen++
	e.watchdogRemaining = e.watchdogTicks
	e.stalled = false
	if !deviceEnabled {
		e.timing.Reset()
		e.flicker.reset()
		e.lastOutput = nil
		e.frameLen = 0
	}
	e.log.Info().
		Bool("device_enabled", deviceEnabled).
		Bool("restarting", restarting).
		Int("dropped", dropped).
		Msg("clearing queued colors")
	e.diag(diag.Diagnostic{
		Time:     e.clk.Now(),
		Severity: diag.Info,
		Code:     diag.CodeQueueCleared,
		Summary:  "Queued colors cleared",
		Evidence: map[string]any{"device_enabled": deviceEnabled, "restarting": restarting, "dropped": dropped},
	})
}

// ---- producer side ----

// SubmitFrame sets a new target. It never blocks on the sink. While the
// engine is disabled or paused the frame is accepted and dropped.
func (e *Engine) SubmitFrame(frame colorframe.Frame) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sinkClosed {
		e.stats.rejected.Add(1)
		return ErrSinkUnavailable
	}
	if len(frame) == 0 || (e.frameLen != 0 && len(frame) != e.frameLen) {
		e.stats.rejected.Add(1)
		e.log.Error().Int("got", len(frame)).Int("want", e.frameLen).Msg("frame length mismatch")
		e.diag(diag.Diagnostic{
			Time:     e.clk.Now(),
			Severity: diag.Err,
			Code:     diag.CodeFrameLength,
			Summary:  "Frame length does not match the LED count",
			Detail:   fmt.Sprintf("detected %d LEDs instead of %d", len(frame), e.frameLen),
		})
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidFrameLength, len(frame), e.frameLen)
	}

	e.watchdogRemaining = e.watchdogTicks
	if e.stalled {
		e.stalled = false
		e.log.Info().Msg("smoothing input resumed")
	}

	if e.stateLocked() != Active {
		e.stats.dropped.Add(1)
		return nil
	}

	e.frameLen = len(frame)
	now := e.clk.Now()
	if e.cfg.DirectMode {
		e.timing.SetDirect(frame, now)
	} else {
		e.timing.Setup(frame, now, e.cfg.SettlingTime, CurveFor(e.cfg.Variant))
	}
	if e.infoInput {
		e.infoInput = false
		e.log.Info().Bool("direct", e.cfg.DirectMode).Int("leds", len(frame)).Msg("receiving smoothing input")
	}
	e.stats.submitted.Add(1)
	return nil
}

// ---- consumer side ----

// Run ticks the engine until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	interval := e.cfg.TickInterval
	e.mu.Unlock()
	if interval <= 0 {
		interval = IntervalFor(DefaultUpdateFrequency)
	}

	ticker := e.clk.NewTicker(interval)
	defer ticker.Stop()
	e.log.Info().Dur("interval", interval).Msg("smoothing loop started")

	for {
		select {
		case <-ctx.Done():
			e.log.Info().Msg("smoothing loop stopped")
			return nil
		case d := <-e.intervalCh:
			if d != interval {
				interval = d
				ticker.Reset(d)
				e.log.Debug().Dur("interval", d).Msg("tick interval changed")
			}
		case <-ticker.C():
			e.Tick()
		}
	}
}

// Tick recomputes the output and writes it to the sink. A tick that starts
// while another is still running is skipped.
func (e *Engine) Tick() {
	if !e.ticking.CompareAndSwap(false, true) {
		e.stats.skippedTicks.Add(1)
		return
	}
	defer e.ticking.Store(false)

	out, gen, ok := e.compute()
	if !ok {
		return
	}
	err := e.sink.Write(out)
	e.afterWrite(out, gen, err)
}

func (e *Engine) compute() (colorframe.Frame, uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sinkClosed || e.stateLocked() != Active {
		return nil, 0, false
	}
	e.stats.ticks.Add(1)
	e.watchdogLocked()
	e.debugLocked()
	if e.timing.Empty() {
		return nil, 0, false
	}

	now := e.clk.Now()
	out := e.timing.Interpolate(now, CurveFor(e.cfg.Variant))
	if e.cfg.antiFlickerActive() {
		e.flicker.apply(out, e.lastOutput, now, e.cfg)
	}
	e.lastOutput = out

	if e.infoUpdate {
		e.infoUpdate = false
		e.log.Info().Bool("continuous", e.continuous).Int("depth", e.queue.Depth()).Msg("writing smoothed output")
	}

	if e.continuous && !e.cfg.DirectMode {
		head, ok := e.queue.Cycle(out)
		return head, e.clearGen, ok
	}
	if e.timing.Settled(now) && out.Equal(e.lastWritten) {
		return nil, 0, false
	}
	return out, e.clearGen, true
}

// afterWrite records the outcome of a write computed at clear generation
// gen. A clear that ran during the write invalidates out as lastWritten.
func (e *Engine) afterWrite(out colorframe.Frame, gen uint64, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err == nil {
		e.stats.writes.Add(1)
		if gen == e.clearGen {
			e.lastWritten = out
		}
		if e.failing {
			e.failing = false
			e.log.Info().Msg("sink write recovered")
		}
		return
	}

	e.stats.writeErrors.Add(1)
	e.lastWritten = nil
	if errors.Is(err, led.ErrClosed) {
		e.sinkClosed = true
		e.queue.Clear()
		e.log.Error().Err(err).Msg("sink closed; smoothing output stopped")
		e.diag(diag.Diagnostic{
			Time:     e.clk.Now(),
			Severity: diag.Err,
			Code:     diag.CodeSinkClosed,
			Summary:  "LED sink is no longer available",
			Detail:   err.Error(),
		})
		return
	}
	if !e.failing {
		e.failing = true
		e.log.Warn().Err(err).Msg("sink write failed; retrying next tick")
		e.diag(diag.Diagnostic{
			Time:           e.clk.Now(),
			Severity:       diag.Warn,
			Code:           diag.CodeWriteFailed,
			Summary:        "LED sink rejected a frame",
			Detail:         err.Error(),
			SuggestedFixes: []string{"check the device connection", "check the configured LED count"},
		})
	}
}

func (e *Engine) watchdogLocked() {
	if e.watchdogTicks <= 0 || e.stalled {
		return
	}
	if e.watchdogRemaining > 0 {
		e.watchdogRemaining--
	}
	if e.watchdogRemaining > 0 {
		return
	}
	e.stalled = true
	e.log.Warn().Int("ticks", e.watchdogTicks).Msg("no smoothing input received; output stalled")
	e.diag(diag.Diagnostic{
		Time:         e.clk.Now(),
		Severity:     diag.Warn,
		Code:         diag.CodeStall,
		Summary:      "No new frames received",
		LikelyCauses: []string{"producer stopped", "grabber lost its source"},
		Evidence:     map[string]any{"ticks": e.watchdogTicks, "interval_ms": e.cfg.TickInterval.Milliseconds()},
	})
}

func (e *Engine) debugLocked() {
	if e.debugEvery <= 0 {
		return
	}
	e.debugCounter++
	if e.debugCounter < e.debugEvery {
		return
	}
	e.debugCounter = 0
	e.log.Debug().
		Uint64("ticks", e.stats.ticks.Load()).
		Uint64("writes", e.stats.writes.Load()).
		Uint64("submitted", e.stats.submitted.Load()).
		Uint64("write_errors", e.stats.writeErrors.Load()).
		Int("queue", e.queue.Len()).
		Msg("smoothing stats")
}

// Stalled reports whether the watchdog has fired since the last frame.
func (e *Engine) Stalled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stalled
}

// Stats returns a snapshot of the engine.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := Stats{
		ID:           e.id,
		State:        e.stateLocked(),
		ConfigID:     e.currentID,
		Configs:      e.registry.Len(),
		DirectMode:   e.cfg.DirectMode,
		Continuous:   e.continuous,
		Variant:      e.cfg.Variant.String(),
		SettlingTime: e.cfg.SettlingTime,
		TickInterval: e.cfg.TickInterval,
		FrameLen:     e.frameLen,
		QueueLen:     e.queue.Len(),
		QueueDepth:   e.queue.Depth(),
		Stalled:      e.stalled,
		SinkClosed:   e.sinkClosed,
	}
	e.mu.Unlock()
	e.stats.fill(&s)
	return s
}
