package geometry

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

// Provider payload limits. A CBC rejects area lists beyond these.
const (
	MaxPolygons    = 12
	MaxVertexCount = 250
)

const (
	initialTolerance = 0.0001
	maxPasses        = 24
)

// Normalize reduces a polygon set to within provider limits. Input within
// limits is returned unchanged. Reduction smooths each ring once, then
// simplifies at a growing tolerance until the vertex budget holds; when the
// polygon count itself is over budget the largest rings by area win.
// Coverage is approximate, payload size is the hard constraint.
func Normalize(polygons [][][]float64) [][][]float64 {
	if len(polygons) <= MaxPolygons && totalVertices(polygons) <= MaxVertexCount {
		return polygons
	}

	rings := toRings(polygons)
	rings = smooth(rings)

	if len(rings) > MaxPolygons {
		rings = largestByArea(rings, MaxPolygons)
	}

	tolerance := initialTolerance
	for pass := 0; pass < maxPasses; pass++ {
		simplified := make([]orb.Ring, 0, len(rings))
		for _, r := range rings {
			s := orb.Ring(simplify.DouglasPeucker(tolerance).LineString(orb.LineString(r)))
			if len(s) < 3 {
				continue
			}
			simplified = append(simplified, s)
		}
		rings = simplified
		if ringVertices(rings) <= MaxVertexCount {
			break
		}
		tolerance *= 2
	}

	return fromRings(rings)
}

func totalVertices(polygons [][][]float64) int {
	n := 0
	for _, p := range polygons {
		n += len(p)
	}
	return n
}

func ringVertices(rings []orb.Ring) int {
	n := 0
	for _, r := range rings {
		n += len(r)
	}
	return n
}

// smooth applies one corner-cutting pass per ring, replacing each edge with
// points a quarter in from either end. Sharp vertices disappear, which lets
// the simplifier collapse them at a lower tolerance.
func smooth(rings []orb.Ring) []orb.Ring {
	out := make([]orb.Ring, 0, len(rings))
	for _, r := range rings {
		if len(r) < 3 {
			continue
		}
		smoothed := make(orb.Ring, 0, len(r)*2)
		for i := range r {
			a := r[i]
			b := r[(i+1)%len(r)]
			smoothed = append(smoothed,
				orb.Point{a[0] + (b[0]-a[0])*0.25, a[1] + (b[1]-a[1])*0.25},
				orb.Point{a[0] + (b[0]-a[0])*0.75, a[1] + (b[1]-a[1])*0.75},
			)
		}
		out = append(out, smoothed)
	}
	return out
}

func largestByArea(rings []orb.Ring, n int) []orb.Ring {
	sorted := make([]orb.Ring, len(rings))
	copy(sorted, rings)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(planar.Area(sorted[i])) > math.Abs(planar.Area(sorted[j]))
	})
	return sorted[:n]
}

func toRings(polygons [][][]float64) []orb.Ring {
	rings := make([]orb.Ring, 0, len(polygons))
	for _, p := range polygons {
		ring := make(orb.Ring, 0, len(p))
		for _, v := range p {
			if len(v) < 2 {
				continue
			}
			ring = append(ring, orb.Point{v[0], v[1]})
		}
		if len(ring) >= 3 {
			rings = append(rings, ring)
		}
	}
	return rings
}

func fromRings(rings []orb.Ring) [][][]float64 {
	polygons := make([][][]float64, 0, len(rings))
	for _, r := range rings {
		poly := make([][]float64, 0, len(r))
		for _, pt := range r {
			poly = append(poly, []float64{pt[0], pt[1]})
		}
		polygons = append(polygons, poly)
	}
	return polygons
}
