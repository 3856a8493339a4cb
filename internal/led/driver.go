package led

import (
	"errors"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// ErrClosed is returned by Write after Close. The smoothing engine treats
// it as permanent loss of the device.
var ErrClosed = errors.New("led driver closed")

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes one frame to the device. It must not modify or retain
	// the frame.
	Write(f colorframe.Frame) error
	// Close releases resources.
	Close() error
}
