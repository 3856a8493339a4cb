package ws

import (
	"sync"
	"time"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// Preview is an LED driver that mirrors frames to the /ws clients,
// throttled so slow browsers are not flooded. Write never waits on a
// client; a client whose queue is full misses the frame.
type Preview struct {
	s        *Server
	throttle time.Duration

	mu       sync.Mutex
	lastEmit time.Time
}

// Preview returns a driver to tee next to the real LED driver. A zero
// throttle sends every frame.
func (s *Server) Preview(throttle time.Duration) *Preview {
	return &Preview{s: s, throttle: throttle}
}

func (p *Preview) Write(f colorframe.Frame) error {
	p.mu.Lock()
	now := time.Now()
	if p.throttle > 0 && p.lastEmit.Add(p.throttle).After(now) {
		p.mu.Unlock()
		return nil
	}
	p.lastEmit = now
	p.mu.Unlock()

	p.s.broadcastFrame(f.Bytes())
	return nil
}

func (p *Preview) Close() error { return nil }
