package handlers

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// VelocityHandler post-processes a freshly computed velocity matrix. It may
// modify velocity in place and returns the matrix to use. position and
// bounds describe where the particles currently are; bounds may be nil.
type VelocityHandler interface {
	Apply(velocity *mat.Dense, clamp *optimization.Clamp, position *mat.Dense, bounds *optimization.Bounds) *mat.Dense
}

// Unmodified only clips the velocity to the clamp, when one is configured.
type Unmodified struct{}

func (Unmodified) Apply(velocity *mat.Dense, clamp *optimization.Clamp, _ *mat.Dense, _ *optimization.Bounds) *mat.Dense {
	if clamp != nil {
		clamp.Apply(velocity)
	}
	return velocity
}

// Invert reverses, and damps by Z, the velocity components that push a
// particle sitting on a bound further out. Z of 0 falls back to 0.5.
type Invert struct {
	Z float64
}

func (h Invert) Apply(velocity *mat.Dense, clamp *optimization.Clamp, position *mat.Dense, bounds *optimization.Bounds) *mat.Dense {
	z := h.Z
	if z == 0 {
		z = 0.5
	}
	outward(velocity, position, bounds, func(v float64) float64 { return -z * v })
	return Unmodified{}.Apply(velocity, clamp, position, bounds)
}

// Zero cancels the velocity components that push a particle sitting on a
// bound further out.
type Zero struct{}

func (Zero) Apply(velocity *mat.Dense, clamp *optimization.Clamp, position *mat.Dense, bounds *optimization.Bounds) *mat.Dense {
	outward(velocity, position, bounds, func(float64) float64 { return 0 })
	return Unmodified{}.Apply(velocity, clamp, position, bounds)
}

// outward rewrites every component of velocity that points out of bounds
// from a coordinate at or beyond its limit.
func outward(velocity, position *mat.Dense, bounds *optimization.Bounds, fix func(float64) float64) {
	if bounds == nil || position == nil {
		return
	}
	n, _ := velocity.Dims()
	for i := 0; i < n; i++ {
		vel := velocity.RawRowView(i)
		pos := position.RawRowView(i)
		for j, v := range vel {
			if (pos[j] <= bounds.Low[j] && v < 0) || (pos[j] >= bounds.High[j] && v > 0) {
				vel[j] = fix(v)
			}
		}
	}
}

var velocityStrategies = map[string]VelocityHandler{
	"unmodified": Unmodified{},
	"invert":     Invert{Z: 0.5},
	"zero":       Zero{},
}

// NewVelocityHandler returns the velocity strategy registered under name.
func NewVelocityHandler(name string) (VelocityHandler, error) {
	h, ok := velocityStrategies[name]
	if !ok {
		return nil, optimization.NewConfigError("unknown velocity strategy %q, expected one of %v", name, VelocityStrategies()).
			WithComponent("handlers")
	}
	return h, nil
}

// VelocityStrategies lists the registered velocity strategy names.
func VelocityStrategies() []string {
	names := make([]string, 0, len(velocityStrategies))
	for name := range velocityStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
