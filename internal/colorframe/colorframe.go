package colorframe

import (
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	redOffset   uint8 = 0x10
	greenOffset uint8 = 0x08
	blueOffset  uint8 = 0x00
)

// RGB is the color of one LED, 8 bits per channel.
type RGB struct{ R, G, B uint8 }

// Frame holds one color per LED, indexed by LED position.
type Frame []RGB

// Fill returns a frame of n LEDs all set to c.
func Fill(n int, c RGB) Frame {
	f := make(Frame, n)
	for i := range f {
		f[i] = c
	}
	return f
}

// Clone returns a private copy of f. A nil frame clones to nil.
func (f Frame) Clone() Frame {
	if f == nil {
		return nil
	}
	out := make(Frame, len(f))
	copy(out, f)
	return out
}

// Equal reports whether both frames have the same length and colors.
func (f Frame) Equal(o Frame) bool {
	if len(f) != len(o) {
		return false
	}
	for i := range f {
		if f[i] != o[i] {
			return false
		}
	}
	return true
}

// Bytes packs the frame as r,g,b,r,g,b...
func (f Frame) Bytes() []byte {
	out := make([]byte, len(f)*3)
	for i, c := range f {
		out[i*3+0] = c.R
		out[i*3+1] = c.G
		out[i*3+2] = c.B
	}
	return out
}

// FromBytes unpacks an r,g,b stream. len(b) must be a multiple of 3.
func FromBytes(b []byte) (Frame, error) {
	if len(b)%3 != 0 {
		return nil, fmt.Errorf("rgb length %d is not a multiple of 3", len(b))
	}
	f := make(Frame, len(b)/3)
	for i := range f {
		f[i] = RGB{R: b[i*3+0], G: b[i*3+1], B: b[i*3+2]}
	}
	return f, nil
}

// Channel returns channel i (0=R, 1=G, 2=B).
func (c RGB) Channel(i int) uint8 {
	switch i {
	case 0:
		return c.R
	case 1:
		return c.G
	default:
		return c.B
	}
}

// WithChannel returns a copy of c with channel i set to v.
func (c RGB) WithChannel(i int, v uint8) RGB {
	switch i {
	case 0:
		c.R = v
	case 1:
		c.G = v
	default:
		c.B = v
	}
	return c
}

// Packed returns the color as 0x00RRGGBB.
func (c RGB) Packed() uint32 {
	return uint32(c.R)<<redOffset | uint32(c.G)<<greenOffset | uint32(c.B)<<blueOffset
}

// Unpack is the inverse of Packed; the top byte is ignored.
func Unpack(v uint32) RGB {
	return RGB{
		R: uint8((v >> redOffset) & 0xFF),
		G: uint8((v >> greenOffset) & 0xFF),
		B: uint8((v >> blueOffset) & 0xFF),
	}
}

// Hex formats the color as "#rrggbb".
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// ParseHex accepts "#rrggbb", "rrggbb" or the short "#rgb" form.
func ParseHex(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	col, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, fmt.Errorf("parse color %q: %w", s, err)
	}
	r, g, b := col.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}, nil
}

// FromColorful converts a go-colorful color, clamping out-of-gamut values.
func FromColorful(col colorful.Color) RGB {
	r, g, b := col.Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

// Clamp saturates x into the 0..255 channel range.
func Clamp(x int) uint8 {
	if x < 0 {
		return 0
	}
	if x > math.MaxUint8 {
		return math.MaxUint8
	}
	return uint8(x)
}

// AddSaturating adds a signed delta to a channel value without wrapping.
func AddSaturating(v uint8, delta int) uint8 {
	return Clamp(int(v) + delta)
}

// Lerp returns round(a + f*(b-a)) clamped to the channel range.
// f <= 0 yields a and f >= 1 yields b exactly.
func Lerp(a, b uint8, f float64) uint8 {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	v := math.Round(float64(a) + f*float64(int(b)-int(a)))
	return Clamp(int(v))
}
