package smoothing

import (
	"time"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// antiFlicker holds small per-channel changes back until they have been
// stable for the timeout, then releases them in bounded steps. Changes at or
// above the threshold always pass.
type antiFlicker struct {
	changedAt []time.Time // per channel, len = 3*LEDs
}

func (a *antiFlicker) reset() { a.changedAt = nil }

// apply rewrites out in place against the previous output last.
func (a *antiFlicker) apply(out, last colorframe.Frame, now time.Time, cfg Config) {
	if last == nil || len(last) != len(out) || len(a.changedAt) != len(out)*3 {
		a.changedAt = make([]time.Time, len(out)*3)
		for i := range a.changedAt {
			a.changedAt[i] = now
		}
		return
	}

	for i := range out {
		px := out[i]
		for c := 0; c < 3; c++ {
			idx := i*3 + c
			prev := last[i].Channel(c)
			delta := int(px.Channel(c)) - int(prev)
			if delta == 0 {
				continue
			}
			if abs(delta) >= cfg.AntiFlickerThreshold {
				a.changedAt[idx] = now
				continue
			}
			if now.Sub(a.changedAt[idx]) < cfg.AntiFlickerTimeout {
				px = px.WithChannel(c, prev)
				continue
			}
			if cfg.AntiFlickerStep > 0 && abs(delta) > cfg.AntiFlickerStep {
				if delta > 0 {
					delta = cfg.AntiFlickerStep
				} else {
					delta = -cfg.AntiFlickerStep
				}
			}
			px = px.WithChannel(c, colorframe.AddSaturating(prev, delta))
			a.changedAt[idx] = now
		}
		out[i] = px
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
