package diagnostics

import "time"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Codes emitted by the smoothing engine and its sinks.
const (
	CodeStall          = "SMOOTHING.STALL"
	CodeConfigFallback = "SMOOTHING.CONFIG_FALLBACK"
	CodeFrameLength    = "SMOOTHING.FRAME_LENGTH"
	CodeQueueCleared   = "SMOOTHING.QUEUE_CLEARED"
	CodeWriteFailed    = "SINK.WRITE_FAILED"
	CodeSinkClosed     = "SINK.CLOSED"
	CodeEffectDone     = "EFFECT.DONE"
	CodeEffectUnknown  = "EFFECT.UNKNOWN"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// Sink receives diagnostics. Implementations must not block.
type Sink func(Diagnostic)

// Discard drops every diagnostic.
func Discard(Diagnostic) {}
