package effect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledsmooth/internal/clock"
	"github.com/coreman2200/ledsmooth/internal/colorframe"
	diag "github.com/coreman2200/ledsmooth/internal/diagnostics"
	"github.com/coreman2200/ledsmooth/internal/layout"
)

// Submitter accepts target frames, e.g. the smoothing engine.
type Submitter interface {
	SubmitFrame(colorframe.Frame) error
}

// Player steps the active Runner at a fixed frame rate and submits each
// frame. It stands in for the video grabbers and effects that feed the
// smoothing engine in a full system.
type Player struct {
	mu     sync.Mutex
	layout layout.Layout
	fps    int
	out    Submitter
	runner *Runner
	frame  colorframe.Frame

	Clock clock.Clock
	Log   zerolog.Logger
	Diag  diag.Sink
}

func NewPlayer(l layout.Layout, fps int, out Submitter, log zerolog.Logger) *Player {
	if fps <= 0 {
		fps = 30
	}
	return &Player{
		layout: l,
		fps:    fps,
		out:    out,
		frame:  make(colorframe.Frame, l.Count()),
		Clock:  clock.Real{},
		Log:    log.With().Str("component", "effect").Logger(),
		Diag:   diag.Discard,
	}
}

// Start replaces the active effect. None stops playback.
func (p *Player) Start(plan Plan) error {
	kind, ok := ParseKind(string(plan.Kind))
	if !ok {
		p.Diag(diag.Diagnostic{
			Time: p.Clock.Now(), Severity: diag.Warn, Code: diag.CodeEffectUnknown, Summary: "Unknown effect name",
			Evidence: map[string]any{"name": plan.Kind},
		})
		return fmt.Errorf("unknown effect %q", plan.Kind)
	}
	plan.Kind = kind
	p.mu.Lock()
	defer p.mu.Unlock()
	if plan.Kind == None {
		p.runner = nil
	} else {
		p.runner = NewRunner(plan)
	}
	p.Log.Info().Str("effect", string(plan.Kind)).Msg("effect started")
	return nil
}

func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runner != nil {
		p.Log.Info().Str("effect", string(p.runner.Kind())).Msg("effect stopped")
	}
	p.runner = nil
}

// Current returns the active effect, or None.
func (p *Player) Current() Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runner == nil {
		return None
	}
	return p.runner.Kind()
}

// Step advances the active effect once and submits the frame. It reports
// whether a frame was submitted.
func (p *Player) Step() bool {
	p.mu.Lock()
	if p.runner == nil {
		p.mu.Unlock()
		return false
	}
	if !p.runner.Step(p.layout, p.frame) {
		kind := p.runner.Kind()
		p.runner = nil
		p.mu.Unlock()
		p.Log.Info().Str("effect", string(kind)).Msg("effect complete")
		p.Diag(diag.Diagnostic{Time: p.Clock.Now(), Severity: diag.Info, Code: diag.CodeEffectDone, Summary: "Effect complete", Detail: string(kind)})
		return false
	}
	f := p.frame.Clone()
	p.mu.Unlock()

	if err := p.out.SubmitFrame(f); err != nil {
		p.Log.Warn().Err(err).Msg("submit frame")
		return false
	}
	return true
}

// Run steps at the configured frame rate until ctx is cancelled.
func (p *Player) Run(ctx context.Context) error {
	ticker := p.Clock.NewTicker(time.Second / time.Duration(p.fps))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.Step()
		}
	}
}
