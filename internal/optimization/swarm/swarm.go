// Package swarm holds the numeric state of a particle swarm and the pure
// operators that advance it.
package swarm

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// Swarm is the mutable state of all particles at one point of a run.
// Matrices are N x D, with one row per particle.
type Swarm struct {
	Position *mat.Dense
	Velocity *mat.Dense

	// CurrentCost is the objective value at Position.
	CurrentCost []float64

	// PbestPos and PbestCost hold each particle's best visited point.
	PbestPos  *mat.Dense
	PbestCost []float64

	// BestPos and BestCost are the swarm-wide best.
	BestPos  []float64
	BestCost float64

	// NeighborPos holds, per particle, the best position of its
	// neighbourhood; NeighborCost the matching cost.
	NeighborPos  *mat.Dense
	NeighborCost []float64

	Options optimization.Options
}

// New creates a swarm from initial positions and velocities. Costs start at
// +Inf so that the first evaluation seeds every personal best.
func New(position, velocity *mat.Dense, opts optimization.Options) (*Swarm, error) {
	if position == nil || velocity == nil {
		return nil, optimization.NewConfigError("position and velocity must not be nil").WithComponent("swarm")
	}
	n, d := position.Dims()
	vn, vd := velocity.Dims()
	if n != vn || d != vd {
		return nil, optimization.NewShapeError("velocity is %dx%d, position is %dx%d", vn, vd, n, d).WithComponent("swarm")
	}

	return &Swarm{
		Position:    mat.DenseCopyOf(position),
		Velocity:    mat.DenseCopyOf(velocity),
		CurrentCost: infs(n),
		PbestPos:    mat.DenseCopyOf(position),
		PbestCost:   infs(n),
		BestCost:    math.Inf(1),
		Options:     opts,
	}, nil
}

// Dims returns the number of particles and dimensions.
func (s *Swarm) Dims() (particles, dimensions int) {
	return s.Position.Dims()
}

// Particle returns a copy of particle i's position.
func (s *Swarm) Particle(i int) []float64 {
	return append([]float64(nil), s.Position.RawRowView(i)...)
}

func infs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Inf(1)
	}
	return out
}
