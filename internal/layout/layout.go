package layout

import "github.com/coreman2200/ledsmooth/internal/config"

type Dim struct{ X, Y, Z int }

type Serpentine struct {
	XFlipEveryRow   bool
	YFlipEveryPanel bool
}

type Layout struct {
	Dim        Dim
	Order      Serpentine
	PanelGapMM float64
	PitchMM    float64
}

// Vec3 is a position normalized to [0,1] on each axis.
type Vec3 struct{ X, Y, Z float64 }

func FromConfig(c *config.Config) Layout {
	return Layout{
		Dim:        Dim{X: c.Dim.X, Y: c.Dim.Y, Z: c.Dim.Z},
		Order:      Serpentine{XFlipEveryRow: c.XFlipEveryRow, YFlipEveryPanel: c.YFlipEveryPanel},
		PanelGapMM: c.PanelGapMM,
		PitchMM:    c.PitchMM,
	}
}

// Index maps x,y,z -> linear LED index (0..N-1)
func (l Layout) Index(x, y, z int) int {
	yy := y
	xx := x
	if l.Order.YFlipEveryPanel && (z%2 == 1) {
		yy = l.Dim.Y - 1 - y
	}
	if (yy%2 == 1) && l.Order.XFlipEveryRow {
		xx = l.Dim.X - 1 - x
	}
	perPanel := l.Dim.X * l.Dim.Y
	return z*perPanel + yy*l.Dim.X + xx
}

// Coords is the inverse of Index.
func (l Layout) Coords(i int) (x, y, z int) {
	perPanel := l.Dim.X * l.Dim.Y
	z = i / perPanel
	rem := i % perPanel
	yy := rem / l.Dim.X
	xx := rem % l.Dim.X
	x = xx
	if (yy%2 == 1) && l.Order.XFlipEveryRow {
		x = l.Dim.X - 1 - xx
	}
	y = yy
	if l.Order.YFlipEveryPanel && (z%2 == 1) {
		y = l.Dim.Y - 1 - yy
	}
	return x, y, z
}

func (l Layout) Count() int {
	return l.Dim.X * l.Dim.Y * l.Dim.Z
}

// Positions returns the normalized lattice position of every LED, by index.
func (l Layout) Positions() []Vec3 {
	out := make([]Vec3, l.Count())
	for i := range out {
		x, y, z := l.Coords(i)
		out[i] = Vec3{
			X: norm(x, l.Dim.X),
			Y: norm(y, l.Dim.Y),
			Z: norm(z, l.Dim.Z),
		}
	}
	return out
}

func norm(v, n int) float64 {
	if n <= 1 {
		return 0
	}
	return float64(v) / float64(n-1)
}
