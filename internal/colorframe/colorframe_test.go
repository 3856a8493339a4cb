package colorframe_test

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/coreman2200/ledsmooth/internal/colorframe"
)

var lerpCases = []struct {
	A, B   uint8
	F      float64
	Expect uint8
}{
	{0, 255, 0, 0},
	{0, 255, 1, 255},
	{0, 255, 0.125, 32},
	{255, 0, 0.5, 128},
	{10, 20, -3, 10},
	{10, 20, 7, 20},
	{200, 200, 0.37, 200},
}

func TestLerp(t *testing.T) {
	for k, v := range lerpCases {
		t.Run("case"+strconv.Itoa(k), func(t *testing.T) {
			assert.Equal(t, v.Expect, Lerp(v.A, v.B, v.F))
		})
	}
}

func TestClampAndSaturatingAdd(t *testing.T) {
	assert.Equal(t, uint8(0), Clamp(-40))
	assert.Equal(t, uint8(255), Clamp(1000))
	assert.Equal(t, uint8(77), Clamp(77))
	assert.Equal(t, uint8(255), AddSaturating(250, 10))
	assert.Equal(t, uint8(0), AddSaturating(3, -10))
	assert.Equal(t, uint8(5), AddSaturating(3, 2))
}

func TestFrameBytesRoundTrip(t *testing.T) {
	f := Frame{{1, 2, 3}, {250, 128, 0}}
	b := f.Bytes()
	assert.Equal(t, []byte{1, 2, 3, 250, 128, 0}, b)

	back, err := FromBytes(b)
	require.NoError(t, err)
	if diff := cmp.Diff(f, back); diff != "" {
		t.Fatalf("frame mismatch (-want +got):\n%s", diff)
	}

	_, err = FromBytes([]byte{1, 2})
	assert.Error(t, err)
}

func TestCloneIsPrivate(t *testing.T) {
	f := Fill(3, RGB{R: 9})
	c := f.Clone()
	c[0].R = 100
	assert.Equal(t, uint8(9), f[0].R)
	assert.True(t, f.Equal(Fill(3, RGB{R: 9})))
	assert.False(t, f.Equal(c))
	assert.Nil(t, Frame(nil).Clone())
}

func TestPackedAndHex(t *testing.T) {
	c := RGB{R: 0x11, G: 0x22, B: 0x33}
	assert.Equal(t, uint32(0x112233), c.Packed())
	assert.Equal(t, c, Unpack(0xFF112233))
	assert.Equal(t, "#112233", c.Hex())

	got, err := ParseHex("ff8000")
	require.NoError(t, err)
	assert.Equal(t, RGB{R: 255, G: 128, B: 0}, got)

	got, err = ParseHex("#0f0")
	require.NoError(t, err)
	assert.Equal(t, RGB{G: 255}, got)

	_, err = ParseHex("nope")
	assert.Error(t, err)
}

func TestChannels(t *testing.T) {
	c := RGB{R: 1, G: 2, B: 3}
	for i, want := range []uint8{1, 2, 3} {
		assert.Equal(t, want, c.Channel(i))
	}
	assert.Equal(t, RGB{R: 1, G: 9, B: 3}, c.WithChannel(1, 9))
}
