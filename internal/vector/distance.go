package vector

import (
	"math"
	"sort"
)

// SquaredL2 returns the squared Euclidean distance between a and b.
func SquaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// Score maps a Euclidean distance to (0,1]: 1 for an exact match, 0.5 at distance 1.
func Score(distance float64) float64 {
	return 1 / (1 + distance)
}

type hit struct {
	pos  int
	dist float64 // squared
}

// flatSearch scans every vector and returns the k nearest positions ordered by distance,
// earliest position first on ties. Positions for which skip returns true are ignored.
func flatSearch(vectors [][]float32, query []float32, k int, skip func(pos int) bool) []hit {
	hits := make([]hit, 0, len(vectors))
	for pos, vec := range vectors {
		if skip != nil && skip(pos) {
			continue
		}
		hits = append(hits, hit{pos: pos, dist: SquaredL2(query, vec)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].pos < hits[j].pos
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits
}

func (h hit) score() float64 {
	return Score(math.Sqrt(h.dist))
}
