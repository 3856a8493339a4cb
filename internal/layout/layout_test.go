package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexCoordsRoundTrip(t *testing.T) {
	for _, order := range []Serpentine{{}, {XFlipEveryRow: true}, {true, true}} {
		l := Layout{Dim: Dim{X: 4, Y: 3, Z: 2}, Order: order}
		seen := map[int]bool{}
		for z := 0; z < 2; z++ {
			for y := 0; y < 3; y++ {
				for x := 0; x < 4; x++ {
					i := l.Index(x, y, z)
					assert.False(t, seen[i], "duplicate index %d", i)
					seen[i] = true
					gx, gy, gz := l.Coords(i)
					assert.Equal(t, [3]int{x, y, z}, [3]int{gx, gy, gz}, "order %+v", order)
				}
			}
		}
		assert.Len(t, seen, l.Count())
	}
}

func TestSerpentineRows(t *testing.T) {
	l := Layout{Dim: Dim{X: 3, Y: 2, Z: 1}, Order: Serpentine{XFlipEveryRow: true}}
	assert.Equal(t, 5, l.Index(0, 1, 0))
	assert.Equal(t, 3, l.Index(2, 1, 0))
}

func TestPositions(t *testing.T) {
	l := Layout{Dim: Dim{X: 3, Y: 1, Z: 1}}
	assert.Equal(t, []Vec3{{0, 0, 0}, {0.5, 0, 0}, {1, 0, 0}}, l.Positions())
}
