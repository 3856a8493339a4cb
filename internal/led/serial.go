package led

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// DefaultBaud is the usual Adalight sketch speed.
const DefaultBaud = 115200

// SerialPort is the subset of serial.Port the Adalight driver uses.
type SerialPort interface {
	io.WriteCloser
}

// Serial streams frames to an Adalight compatible controller (e.g. an
// Arduino running the Adalight sketch) over a serial port.
type Serial struct {
	mu    sync.Mutex
	port  SerialPort
	count int
	buf   []byte
}

// OpenSerial opens path at baud, 8N1.
func OpenSerial(path string, baud, count int) (*Serial, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %q: %w", path, err)
	}
	s, err := NewSerial(port, count)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return s, nil
}

// NewSerial wraps an already opened port.
func NewSerial(port SerialPort, count int) (*Serial, error) {
	if count <= 0 || count > 0x10000 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	buf := make([]byte, 6+count*3)
	copy(buf, adalightHeader(count))
	return &Serial{port: port, count: count, buf: buf}, nil
}

// adalightHeader is "Ada", count-1 big endian, then a checksum byte.
func adalightHeader(count int) []byte {
	n := count - 1
	hi, lo := byte(n>>8), byte(n)
	return []byte{'A', 'd', 'a', hi, lo, hi ^ lo ^ 0x55}
}

func (s *Serial) Write(f colorframe.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return ErrClosed
	}
	if len(f) != s.count {
		return fmt.Errorf("frame has %d LEDs, driver expects %d", len(f), s.count)
	}
	for i, c := range f {
		s.buf[6+i*3+0] = c.R
		s.buf[6+i*3+1] = c.G
		s.buf[6+i*3+2] = c.B
	}
	if _, err := s.port.Write(s.buf); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

func (s *Serial) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
