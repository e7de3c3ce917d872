// Package topology selects the best known position of a swarm and the
// social attractor of every particle.
package topology

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/swarm"
)

// Best is the outcome of a topology pass over the personal bests.
type Best struct {
	// Pos and Cost are the swarm-wide best.
	Pos  []float64
	Cost float64

	// NeighborPos row i is the attractor of particle i; NeighborCost[i]
	// its cost.
	NeighborPos  *mat.Dense
	NeighborCost []float64
}

// Topology computes the best positions from a swarm whose personal bests
// are current.
type Topology interface {
	ComputeGBest(s *swarm.Swarm) (Best, error)
}

// Star connects every particle to every other: all attractors are the
// global best.
type Star struct{}

func (Star) ComputeGBest(s *swarm.Swarm) (Best, error) {
	n, d := s.Dims()
	if len(s.PbestCost) != n {
		return Best{}, optimization.NewShapeError("%d personal-best costs for %d particles", len(s.PbestCost), n).
			WithComponent("topology")
	}

	idx := floats.MinIdx(s.PbestCost)
	best := Best{
		Pos:          append([]float64(nil), s.PbestPos.RawRowView(idx)...),
		Cost:         s.PbestCost[idx],
		NeighborPos:  mat.NewDense(n, d, nil),
		NeighborCost: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		best.NeighborPos.SetRow(i, best.Pos)
		best.NeighborCost[i] = best.Cost
	}
	return best, nil
}

// Ring links each particle to its K nearest particles, itself included,
// measured by the P-norm distance between current positions. With Static
// the neighbour lists computed on the first call are kept until Reset.
type Ring struct {
	K      int
	P      float64
	Static bool

	neighbors [][]int
}

// NewRing validates k and p and returns a Ring topology.
func NewRing(k int, p float64, static bool) (*Ring, error) {
	r := &Ring{K: k, P: p, Static: static}
	if err := r.Validate(0); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks K and P. A positive particles additionally bounds K.
func (r *Ring) Validate(particles int) error {
	if r.K < 1 {
		return optimization.NewConfigError("neighbour count k must be at least 1, got %d", r.K).WithComponent("topology")
	}
	if particles > 0 && r.K > particles {
		return optimization.NewConfigError("neighbour count k=%d exceeds the %d particles", r.K, particles).WithComponent("topology")
	}
	if math.IsNaN(r.P) || r.P < 1 {
		return optimization.NewConfigError("distance norm p must be at least 1, got %v", r.P).WithComponent("topology")
	}
	return nil
}

// Reset drops cached neighbour lists.
func (r *Ring) Reset() {
	r.neighbors = nil
}

func (r *Ring) ComputeGBest(s *swarm.Swarm) (Best, error) {
	n, d := s.Dims()
	if err := r.Validate(n); err != nil {
		return Best{}, err
	}
	if len(s.PbestCost) != n {
		return Best{}, optimization.NewShapeError("%d personal-best costs for %d particles", len(s.PbestCost), n).
			WithComponent("topology")
	}

	neighbors := r.neighbors
	if neighbors == nil || len(neighbors) != n {
		neighbors = r.nearest(s.Position)
		if r.Static {
			r.neighbors = neighbors
		}
	}

	best := Best{
		NeighborPos:  mat.NewDense(n, d, nil),
		NeighborCost: make([]float64, n),
	}
	for i, hood := range neighbors {
		j := hood[0]
		for _, k := range hood[1:] {
			c := s.PbestCost[k]
			if c < s.PbestCost[j] || (c == s.PbestCost[j] && k < j) {
				j = k
			}
		}
		best.NeighborPos.SetRow(i, s.PbestPos.RawRowView(j))
		best.NeighborCost[i] = s.PbestCost[j]
	}

	idx := floats.MinIdx(s.PbestCost)
	best.Pos = append([]float64(nil), s.PbestPos.RawRowView(idx)...)
	best.Cost = s.PbestCost[idx]
	return best, nil
}

// nearest returns, for every row of x, the indices of its K closest rows
// sorted by distance. Equal distances keep index order.
func (r *Ring) nearest(x *mat.Dense) [][]int {
	n, _ := x.Dims()
	out := make([][]int, n)
	dist := make([]float64, n)
	for i := 0; i < n; i++ {
		xi := x.RawRowView(i)
		idx := make([]int, n)
		for j := 0; j < n; j++ {
			idx[j] = j
			dist[j] = floats.Distance(xi, x.RawRowView(j), r.P)
		}
		// self first when other particles share its position
		dist[i] = math.Inf(-1)
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
		out[i] = idx[:r.K]
	}
	return out
}
