package cluster

import (
	"fmt"
	"math"
)

// Noise is the label assigned to vectors that belong to no cluster.
const Noise = -1

// Grouper assigns a cluster label to every input vector, one label per
// vector in input order. Labels are small non-negative integers; Noise marks
// unassigned vectors.
type Grouper interface {
	Group(vectors [][]float64) ([]int, error)
}

// DBSCANGrouper is a density-based grouper over cosine distance. Cosine
// works far better than Euclidean on high-dimensional embeddings.
type DBSCANGrouper struct {
	Epsilon   float64 // Neighborhood radius in cosine distance
	MinPoints int     // Minimum neighborhood size (incl. the point itself) for a core point
}

// NewDBSCANGrouper creates a grouper with the given neighborhood radius and
// density threshold.
func NewDBSCANGrouper(epsilon float64, minPoints int) *DBSCANGrouper {
	return &DBSCANGrouper{Epsilon: epsilon, MinPoints: minPoints}
}

// Group runs DBSCAN and returns one label per vector.
func (g *DBSCANGrouper) Group(vectors [][]float64) ([]int, error) {
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}

	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = Noise
	}
	visited := make([]bool, len(vectors))

	nextLabel := 0
	for i := range vectors {
		if visited[i] {
			continue
		}
		visited[i] = true

		neighbors := g.regionQuery(vectors, i)
		if len(neighbors) < g.MinPoints {
			continue // stays noise unless absorbed by a later cluster
		}

		labels[i] = nextLabel
		g.expandCluster(vectors, neighbors, nextLabel, labels, visited)
		nextLabel++
	}
	return labels, nil
}

// expandCluster grows a cluster from a core point's neighborhood.
func (g *DBSCANGrouper) expandCluster(vectors [][]float64, seeds []int, label int, labels []int, visited []bool) {
	for i := 0; i < len(seeds); i++ {
		p := seeds[i]
		if labels[p] == Noise {
			labels[p] = label
		}
		if visited[p] {
			continue
		}
		visited[p] = true

		neighbors := g.regionQuery(vectors, p)
		if len(neighbors) >= g.MinPoints {
			seeds = append(seeds, neighbors...)
		}
	}
}

// regionQuery returns the indices within Epsilon of vectors[i], including i.
func (g *DBSCANGrouper) regionQuery(vectors [][]float64, i int) []int {
	var neighbors []int
	for j := range vectors {
		if cosineDistance(vectors[i], vectors[j]) <= g.Epsilon {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// cosineDistance computes 1 - cosine similarity, clamped to [0, 2].
func cosineDistance(x1, x2 []float64) float64 {
	if len(x1) != len(x2) {
		return 1.0
	}

	var dot, mag1, mag2 float64
	for i := range x1 {
		dot += x1[i] * x2[i]
		mag1 += x1[i] * x1[i]
		mag2 += x2[i] * x2[i]
	}
	if mag1 == 0 || mag2 == 0 {
		return 1.0
	}

	similarity := dot / (math.Sqrt(mag1) * math.Sqrt(mag2))
	if similarity > 1.0 {
		similarity = 1.0
	} else if similarity < -1.0 {
		similarity = -1.0
	}
	return 1.0 - similarity
}
