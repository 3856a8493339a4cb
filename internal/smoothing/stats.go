package smoothing

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the engine.
type Stats struct {
	ID           string        `json:"id"`
	State        RunState      `json:"state"`
	ConfigID     ConfigID      `json:"config_id"`
	Configs      int           `json:"configs"`
	DirectMode   bool          `json:"direct_mode"`
	Continuous   bool          `json:"continuous_output"`
	Variant      string        `json:"variant"`
	SettlingTime time.Duration `json:"settling_ns"`
	TickInterval time.Duration `json:"interval_ns"`
	FrameLen     int           `json:"frame_len"`
	QueueLen     int           `json:"queue_len"`
	QueueDepth   int           `json:"queue_depth"`
	Stalled      bool          `json:"stalled"`
	SinkClosed   bool          `json:"sink_closed"`

	Ticks        uint64 `json:"ticks"`
	SkippedTicks uint64 `json:"skipped_ticks"`
	Writes       uint64 `json:"writes"`
	WriteErrors  uint64 `json:"write_errors"`
	Submitted    uint64 `json:"submitted"`
	Rejected     uint64 `json:"rejected"`
	Dropped      uint64 `json:"dropped"`
}

// counters are updated on and off the engine lock, hence atomics.
type counters struct {
	ticks        atomic.Uint64
	skippedTicks atomic.Uint64
	writes       atomic.Uint64
	writeErrors  atomic.Uint64
	submitted    atomic.Uint64
	rejected     atomic.Uint64
	dropped      atomic.Uint64
}

func (c *counters) fill(s *Stats) {
	s.Ticks = c.ticks.Load()
	s.SkippedTicks = c.skippedTicks.Load()
	s.Writes = c.writes.Load()
	s.WriteErrors = c.writeErrors.Load()
	s.Submitted = c.submitted.Load()
	s.Rejected = c.rejected.Load()
	s.Dropped = c.dropped.Load()
}
