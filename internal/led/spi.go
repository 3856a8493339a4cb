package led

import (
	"fmt"
	"strings"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
)

// DefaultSPIFreq suits WS2812 strips driven through nrzled.
const DefaultSPIFreq = 2500 * physic.KiloHertz

// SPI drives a WS281x strip over an SPI port using periph's NRZ encoder.
type SPI struct {
	mu    sync.Mutex
	dev   *nrzled.Dev
	port  spi.Port
	count int
	order [3]int // input channel index for each wire slot handed to nrzled
	buf   []byte
}

// OpenSPI initializes the host drivers and opens the named SPI port ("" is
// the first available one).
func OpenSPI(name string, count int, colorOrder string, freq physic.Frequency) (*SPI, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	p, err := spireg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", name, err)
	}
	s, err := NewSPI(p, count, colorOrder, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return s, nil
}

// NewSPI wraps an already opened port. colorOrder is the strip's wire
// order, e.g. "GRB" (the WS2812 default) or "RGB".
func NewSPI(p spi.Port, count int, colorOrder string, freq physic.Frequency) (*SPI, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid LED count: %d", count)
	}
	if freq <= 0 {
		freq = DefaultSPIFreq
	}
	order, err := nrzOrder(colorOrder)
	if err != nil {
		return nil, err
	}
	d, err := nrzled.NewSPI(p, &nrzled.Opts{NumPixels: count, Channels: 3, Freq: freq})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &SPI{dev: d, port: p, count: count, order: order, buf: make([]byte, count*3)}, nil
}

// nrzOrder maps a wire order onto the RGB input nrzled expects. nrzled
// always emits G,R,B on the wire, so input slot 1 lands first, then slot 0,
// then slot 2.
func nrzOrder(colorOrder string) ([3]int, error) {
	if colorOrder == "" {
		colorOrder = "GRB"
	}
	colorOrder = strings.ToUpper(colorOrder)
	if len(colorOrder) != 3 {
		return [3]int{}, fmt.Errorf("invalid color order %q", colorOrder)
	}
	idx := func(c byte) (int, error) {
		switch c {
		case 'R':
			return 0, nil
		case 'G':
			return 1, nil
		case 'B':
			return 2, nil
		}
		return 0, fmt.Errorf("invalid color order %q", colorOrder)
	}
	var wire [3]int
	for i := 0; i < 3; i++ {
		v, err := idx(colorOrder[i])
		if err != nil {
			return [3]int{}, err
		}
		wire[i] = v
	}
	// input slot k must carry the channel the wire shows at the slot nrzled
	// puts k into
	return [3]int{wire[1], wire[0], wire[2]}, nil
}

func (s *SPI) String() string { return s.dev.String() }

// Write takes exactly count LEDs.
func (s *SPI) Write(f colorframe.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return ErrClosed
	}
	if len(f) != s.count {
		return fmt.Errorf("frame has %d LEDs, driver expects %d", len(f), s.count)
	}
	for i, c := range f {
		s.buf[i*3+0] = c.Channel(s.order[0])
		s.buf[i*3+1] = c.Channel(s.order[1])
		s.buf[i*3+2] = c.Channel(s.order[2])
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("spi write: %w", err)
	}
	return nil
}

func (s *SPI) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev == nil {
		return nil
	}
	err := s.dev.Halt()
	s.dev = nil
	if c, ok := s.port.(spi.PortCloser); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
