package led

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// Sim is a headless driver. It keeps the last frame and logs a compact
// summary (average and first LED) every LogEvery frames.
type Sim struct {
	Count    int // expected LEDs, 0 accepts any length
	LogEvery int

	mu     sync.Mutex
	log    zerolog.Logger
	frames uint64
	last   colorframe.Frame
	closed bool
}

func NewSim(count int, log zerolog.Logger) *Sim {
	return &Sim{Count: count, LogEvery: 100, log: log.With().Str("driver", "sim").Logger()}
}

func (s *Sim) Write(f colorframe.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.Count > 0 && len(f) != s.Count {
		return fmt.Errorf("frame has %d LEDs, driver expects %d", len(f), s.Count)
	}
	s.frames++
	s.last = f.Clone()

	if s.LogEvery > 0 && s.frames%uint64(s.LogEvery) == 0 && len(f) > 0 {
		var r, g, b float64
		for _, c := range f {
			r += float64(c.R)
			g += float64(c.G)
			b += float64(c.B)
		}
		n := float64(len(f))
		s.log.Debug().
			Uint64("frame", s.frames).
			Str("avg", fmt.Sprintf("(%.1f,%.1f,%.1f)", r/n, g/n, b/n)).
			Str("first", f[0].Hex()).
			Msg("sim frame")
	}
	return nil
}

// Last returns a copy of the most recent frame.
func (s *Sim) Last() colorframe.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last.Clone()
}

// Frames returns the number of frames written.
func (s *Sim) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
