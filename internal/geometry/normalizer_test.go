package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func circle(cx, cy, r float64, n int) [][]float64 {
	ring := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring = append(ring, []float64{cx + r*math.Cos(a), cy + r*math.Sin(a)})
	}
	return ring
}

func TestPassThroughWithinLimits(t *testing.T) {
	in := [][][]float64{
		{{50.12, 1.2}, {50.13, 1.2}, {50.14, 1.21}},
		circle(51, 0, 0.1, 100),
	}
	out := Normalize(in)
	assert.Equal(t, in, out)
}

func TestReducesVertexCount(t *testing.T) {
	in := [][][]float64{circle(51, 0, 0.5, 600)}
	out := Normalize(in)

	total := 0
	for _, p := range out {
		total += len(p)
		assert.GreaterOrEqual(t, len(p), 3)
	}
	assert.LessOrEqual(t, total, MaxVertexCount)
	assert.LessOrEqual(t, len(out), MaxPolygons)
}

func TestReducesPolygonCount(t *testing.T) {
	var in [][][]float64
	for i := 0; i < 20; i++ {
		// Later rings are larger; they should survive.
		in = append(in, circle(float64(i), 0, 0.01*float64(i+1), 8))
	}
	out := Normalize(in)
	assert.LessOrEqual(t, len(out), MaxPolygons)
	assert.LessOrEqual(t, totalVertices(out), MaxVertexCount)
}

func TestBothLimitsExceeded(t *testing.T) {
	var in [][][]float64
	for i := 0; i < 15; i++ {
		in = append(in, circle(float64(i), 0, 0.3, 60))
	}
	out := Normalize(in)
	assert.LessOrEqual(t, len(out), MaxPolygons)
	assert.LessOrEqual(t, totalVertices(out), MaxVertexCount)
	assert.NotEmpty(t, out)
}
