// Package velocity computes the next velocity of every particle from its
// inertia, its personal best and the best of its neighbourhood.
package velocity

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
	"github.com/copyleftdev/swarmopt/internal/optimization/swarm"
)

// Updater applies
//
//	v' = w*v + c1*r1*(pbest - x) + c2*r2*(nbest - x)
//
// with r1 and r2 drawn independently per particle and dimension, then hands
// the result to the velocity handler. A nil Clamp leaves velocity unbounded.
type Updater struct {
	Clamp   *optimization.Clamp
	Bounds  *optimization.Bounds
	Handler handlers.VelocityHandler

	rng *rand.Rand
}

// NewUpdater creates an Updater drawing its coefficients from rng. A nil
// handler selects handlers.Unmodified.
func NewUpdater(rng *rand.Rand, clamp *optimization.Clamp, bounds *optimization.Bounds, h handlers.VelocityHandler) *Updater {
	if h == nil {
		h = handlers.Unmodified{}
	}
	return &Updater{Clamp: clamp, Bounds: bounds, Handler: h, rng: rng}
}

// Update returns the new velocity matrix using s.Options. The social
// attractor of particle i is row i of s.NeighborPos, or s.BestPos when no
// neighbourhood has been computed. The swarm is not modified.
func (u *Updater) Update(s *swarm.Swarm) *mat.Dense {
	n, d := s.Dims()
	w, c1, c2 := s.Options.W, s.Options.C1, s.Options.C2

	next := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		x := s.Position.RawRowView(i)
		v := s.Velocity.RawRowView(i)
		pbest := s.PbestPos.RawRowView(i)
		social := u.attractor(s, i)
		out := next.RawRowView(i)

		for j := range out {
			r1, r2 := u.rng.Float64(), u.rng.Float64()
			out[j] = w*v[j] + c1*r1*(pbest[j]-x[j]) + c2*r2*(social[j]-x[j])
		}
	}
	return u.Handler.Apply(next, u.Clamp, s.Position, u.Bounds)
}

func (u *Updater) attractor(s *swarm.Swarm, i int) []float64 {
	if s.NeighborPos != nil {
		return s.NeighborPos.RawRowView(i)
	}
	return s.BestPos
}
