package swarm

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
)

// ComputePbest returns the personal bests after comparing the current costs
// with the stored ones. A particle's best moves only on a strict
// improvement, so ties keep the earlier best. The swarm is not modified.
func ComputePbest(s *Swarm) (*mat.Dense, []float64) {
	n, _ := s.Dims()
	pos := mat.DenseCopyOf(s.PbestPos)
	cost := append([]float64(nil), s.PbestCost...)

	for i := 0; i < n; i++ {
		if s.CurrentCost[i] < cost[i] {
			pos.SetRow(i, s.Position.RawRowView(i))
			cost[i] = s.CurrentCost[i]
		}
	}
	return pos, cost
}

// ComputePosition returns position + velocity, corrected by bh when bounds
// are given. The swarm is not modified.
func ComputePosition(s *Swarm, bounds *optimization.Bounds, bh handlers.BoundaryHandler) *mat.Dense {
	var tentative mat.Dense
	tentative.Add(s.Position, s.Velocity)

	if bounds == nil || bh == nil {
		return &tentative
	}
	return bh.Enforce(handlers.Step{From: s.Position, To: &tentative}, *bounds)
}

// ComputeBinaryPosition samples a 0/1 position matrix where each coordinate
// is 1 with probability sigmoid(velocity).
func ComputeBinaryPosition(s *Swarm, rng *rand.Rand) *mat.Dense {
	n, d := s.Dims()
	pos := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		vel := s.Velocity.RawRowView(i)
		row := pos.RawRowView(i)
		for j := range row {
			if rng.Float64() < sigmoid(vel[j]) {
				row[j] = 1
			}
		}
	}
	return pos
}

// MeanPbestCost returns the mean personal-best cost.
func (s *Swarm) MeanPbestCost() float64 {
	return stat.Mean(s.PbestCost, nil)
}

// MeanNeighborCost returns the mean neighbourhood-best cost, or the best
// cost when no neighbourhood has been computed yet.
func (s *Swarm) MeanNeighborCost() float64 {
	if len(s.NeighborCost) == 0 {
		return s.BestCost
	}
	return stat.Mean(s.NeighborCost, nil)
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
