package effect

import (
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
	"github.com/coreman2200/ledsmooth/internal/layout"
)

type Kind string

const (
	None       Kind = ""
	Rainbow    Kind = "rainbow"
	IndexSweep Kind = "index_sweep"
	RGBTest    Kind = "rgb_channels"
	PlaneZ     Kind = "plane_z"
)

// ParseKind accepts the names used in config files and control messages.
func ParseKind(s string) (Kind, bool) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case None, Rainbow, IndexSweep, RGBTest, PlaneZ:
		return k, true
	case "none":
		return None, true
	}
	return None, false
}

type Plan struct {
	Kind  Kind
	Speed float64 // rainbow hue turns per 100 steps; 0 means 1
}

type Runner struct {
	plan  Plan
	step  int
	phase float64
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan} }

func (r *Runner) Kind() Kind { return r.plan.Kind }

// Step fills f for the next step; returns false when complete. Rainbow
// never completes.
func (r *Runner) Step(l layout.Layout, f colorframe.Frame) bool {
	n := l.Count()
	if len(f) < n {
		n = len(f)
	}
	for i := range f {
		f[i] = colorframe.RGB{}
	}

	switch r.plan.Kind {
	case Rainbow:
		speed := r.plan.Speed
		if speed <= 0 {
			speed = 1
		}
		pos := l.Positions()
		for i := 0; i < n; i++ {
			p := pos[i]
			h := math.Mod((p.X+p.Y+p.Z)/3+r.phase, 1.0)
			f[i] = colorframe.FromColorful(colorful.Hsv(h*360, 1, 1))
		}
		r.phase = math.Mod(r.phase+0.01*speed, 1.0)
	case IndexSweep:
		idx := r.step
		if idx >= n {
			return false
		}
		f[idx] = colorframe.RGB{R: 255, G: 255, B: 255}
	case RGBTest:
		phase := r.step % 3
		for i := 0; i < n; i++ {
			f[i] = colorframe.RGB{}.WithChannel(phase, 255)
		}
	case PlaneZ:
		perPanel := l.Dim.X * l.Dim.Y
		z := r.step
		if z >= l.Dim.Z {
			return false
		}
		for i := z * perPanel; i < (z+1)*perPanel && i < n; i++ {
			f[i] = colorframe.RGB{G: 255, B: 255} // cyan
		}
	default:
		return false
	}
	r.step++
	return true
}
