package effect

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coreman2200/ledsmooth/internal/colorframe"
	diag "github.com/coreman2200/ledsmooth/internal/diagnostics"
	"github.com/coreman2200/ledsmooth/internal/layout"
)

type recorder struct {
	mu     sync.Mutex
	frames []colorframe.Frame
}

func (r *recorder) SubmitFrame(f colorframe.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, f)
	return nil
}

var cube = layout.Layout{Dim: layout.Dim{X: 2, Y: 2, Z: 2}}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind(" Rainbow ")
	assert.True(t, ok)
	assert.Equal(t, Rainbow, k)
	k, ok = ParseKind("none")
	assert.True(t, ok)
	assert.Equal(t, None, k)
	_, ok = ParseKind("strobe")
	assert.False(t, ok)
}

func TestIndexSweepCompletes(t *testing.T) {
	r := NewRunner(Plan{Kind: IndexSweep})
	f := make(colorframe.Frame, cube.Count())
	for i := 0; i < cube.Count(); i++ {
		require.True(t, r.Step(cube, f))
		for j, c := range f {
			if j == i {
				assert.Equal(t, colorframe.RGB{R: 255, G: 255, B: 255}, c)
			} else {
				assert.Equal(t, colorframe.RGB{}, c)
			}
		}
	}
	assert.False(t, r.Step(cube, f))
}

func TestRGBChannelsCycle(t *testing.T) {
	r := NewRunner(Plan{Kind: RGBTest})
	f := make(colorframe.Frame, cube.Count())
	want := []colorframe.RGB{{R: 255}, {G: 255}, {B: 255}, {R: 255}}
	for _, w := range want {
		require.True(t, r.Step(cube, f))
		assert.Equal(t, colorframe.Fill(cube.Count(), w), f)
	}
}

func TestPlaneZ(t *testing.T) {
	r := NewRunner(Plan{Kind: PlaneZ})
	f := make(colorframe.Frame, cube.Count())
	require.True(t, r.Step(cube, f))
	assert.Equal(t, colorframe.RGB{G: 255, B: 255}, f[0])
	assert.Equal(t, colorframe.RGB{}, f[4])
	require.True(t, r.Step(cube, f))
	assert.Equal(t, colorframe.RGB{}, f[0])
	assert.Equal(t, colorframe.RGB{G: 255, B: 255}, f[7])
	assert.False(t, r.Step(cube, f))
}

func TestRainbowMoves(t *testing.T) {
	r := NewRunner(Plan{Kind: Rainbow, Speed: 10})
	a := make(colorframe.Frame, cube.Count())
	b := make(colorframe.Frame, cube.Count())
	require.True(t, r.Step(cube, a))
	require.True(t, r.Step(cube, b))
	assert.Equal(t, colorframe.RGB{R: 255}, a[0], "hue 0 at the origin")
	assert.False(t, a.Equal(b))
}

func TestPlayerSubmitsUntilDone(t *testing.T) {
	rec := &recorder{}
	var got []diag.Diagnostic
	p := NewPlayer(cube, 30, rec, zerolog.Nop())
	p.Diag = func(d diag.Diagnostic) { got = append(got, d) }

	assert.False(t, p.Step(), "nothing playing")
	require.NoError(t, p.Start(Plan{Kind: PlaneZ}))
	assert.Equal(t, PlaneZ, p.Current())

	assert.True(t, p.Step())
	assert.True(t, p.Step())
	assert.False(t, p.Step())
	assert.Equal(t, None, p.Current())
	assert.Len(t, rec.frames, 2)
	require.Len(t, got, 1)
	assert.Equal(t, diag.CodeEffectDone, got[0].Code)

	// submitted frames are private copies
	assert.NotEqual(t, rec.frames[0], rec.frames[1])
}

func TestPlayerUnknownEffect(t *testing.T) {
	var got []diag.Diagnostic
	p := NewPlayer(cube, 0, &recorder{}, zerolog.Nop())
	p.Diag = func(d diag.Diagnostic) { got = append(got, d) }
	assert.Error(t, p.Start(Plan{Kind: "strobe"}))
	require.Len(t, got, 1)
	assert.Equal(t, diag.CodeEffectUnknown, got[0].Code)

	require.NoError(t, p.Start(Plan{Kind: Rainbow}))
	p.Stop()
	assert.Equal(t, None, p.Current())
}

func TestPlayerNormalizesKind(t *testing.T) {
	rec := &recorder{}
	p := NewPlayer(cube, 0, rec, zerolog.Nop())
	require.NoError(t, p.Start(Plan{Kind: "RAINBOW"}))
	assert.Equal(t, Rainbow, p.Current())
	assert.True(t, p.Step())
	assert.Len(t, rec.frames, 1)

	require.NoError(t, p.Start(Plan{Kind: " None "}))
	assert.Equal(t, None, p.Current())
	assert.False(t, p.Step())
}
