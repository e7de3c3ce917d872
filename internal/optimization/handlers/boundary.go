// Package handlers implements the interchangeable correction strategies used
// by the swarm operators: boundary handling for positions, velocity
// handling, and coefficient schedules.
package handlers

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// Step is one position update: From is the previous, in-bounds position and
// To the tentative position From + velocity. From may be nil when no
// previous position exists.
type Step struct {
	From *mat.Dense
	To   *mat.Dense
}

// BoundaryHandler returns a copy of step.To with every out-of-bounds
// coordinate moved back inside b. Coordinates already inside are returned
// unchanged. Implementations never modify their inputs.
type BoundaryHandler interface {
	Enforce(step Step, b optimization.Bounds) *mat.Dense
}

// Nearest clips each violating coordinate to the nearest bound.
type Nearest struct{}

// Periodic wraps violating coordinates around the bound range, as if the
// space tiled infinitely.
type Periodic struct{}

// Reflective mirrors violating coordinates back off the bound they crossed,
// bouncing as many times as the overflow requires.
type Reflective struct{}

// Shrink scales back the particle's step so that it stops on the first
// bound it would cross, keeping the step direction.
type Shrink struct{}

// Intermediate moves a violating coordinate halfway between its previous
// value and the bound it crossed.
type Intermediate struct{}

// Random redraws violating coordinates uniformly inside the bounds.
type Random struct {
	rng *rand.Rand
}

// NewRandom creates a Random handler drawing from rng.
func NewRandom(rng *rand.Rand) *Random {
	return &Random{rng: rng}
}

func (Nearest) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	return eachViolation(step.To, b, func(_, _ int, v, lo, hi float64) float64 {
		return math.Max(lo, math.Min(v, hi))
	})
}

func (Periodic) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	return eachViolation(step.To, b, func(_, _ int, v, lo, hi float64) float64 {
		width := hi - lo
		if v > hi {
			return lo + math.Mod(v-hi, width)
		}
		return hi - math.Mod(lo-v, width)
	})
}

func (Reflective) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	return eachViolation(step.To, b, func(_, _ int, v, lo, hi float64) float64 {
		width := hi - lo
		t := math.Mod(v-lo, 2*width)
		if t < 0 {
			t += 2 * width
		}
		if t <= width {
			return lo + t
		}
		return lo + 2*width - t
	})
}

func (Intermediate) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	if step.From == nil {
		return Nearest{}.Enforce(step, b)
	}
	return eachViolation(step.To, b, func(i, j int, v, lo, hi float64) float64 {
		prev := step.From.At(i, j)
		if v > hi {
			return (prev + hi) / 2
		}
		return (prev + lo) / 2
	})
}

func (r *Random) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	return eachViolation(step.To, b, func(_, _ int, _, lo, hi float64) float64 {
		return lo + r.rng.Float64()*(hi-lo)
	})
}

func (Shrink) Enforce(step Step, b optimization.Bounds) *mat.Dense {
	if step.From == nil {
		return Nearest{}.Enforce(step, b)
	}

	out := mat.DenseCopyOf(step.To)
	n, _ := out.Dims()
	for i := 0; i < n; i++ {
		to := out.RawRowView(i)
		from := step.From.RawRowView(i)

		scale, violated := 1.0, false
		for j, v := range to {
			var limit float64
			switch {
			case v > b.High[j]:
				limit = b.High[j]
			case v < b.Low[j]:
				limit = b.Low[j]
			case math.IsNaN(v):
				limit = from[j]
			default:
				continue
			}
			violated = true
			s := (limit - from[j]) / (v - from[j])
			if !(s >= 0) {
				s = 0
			}
			scale = math.Min(scale, s)
		}
		if !violated {
			continue
		}

		for j := range to {
			to[j] = settle(from[j]+scale*(to[j]-from[j]), b.Low[j], b.High[j])
		}
	}
	return out
}

// eachViolation copies x and replaces every coordinate outside b with fix(...).
func eachViolation(x *mat.Dense, b optimization.Bounds, fix func(i, j int, v, lo, hi float64) float64) *mat.Dense {
	out := mat.DenseCopyOf(x)
	n, _ := out.Dims()
	for i := 0; i < n; i++ {
		row := out.RawRowView(i)
		for j, v := range row {
			lo, hi := b.Low[j], b.High[j]
			if v >= lo && v <= hi {
				continue
			}
			row[j] = settle(fix(i, j, v, lo, hi), lo, hi)
		}
	}
	return out
}

// settle absorbs rounding at the edges and maps NaN to the lower bound so a
// corrected coordinate is always inside [lo, hi].
func settle(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(v, hi))
}

var boundaryStrategies = map[string]func(*rand.Rand) BoundaryHandler{
	"nearest":      func(*rand.Rand) BoundaryHandler { return Nearest{} },
	"periodic":     func(*rand.Rand) BoundaryHandler { return Periodic{} },
	"reflective":   func(*rand.Rand) BoundaryHandler { return Reflective{} },
	"shrink":       func(*rand.Rand) BoundaryHandler { return Shrink{} },
	"intermediate": func(*rand.Rand) BoundaryHandler { return Intermediate{} },
	"random":       func(rng *rand.Rand) BoundaryHandler { return NewRandom(rng) },
}

// NewBoundaryHandler returns the boundary strategy registered under name.
// The Random strategy draws from rng.
func NewBoundaryHandler(name string, rng *rand.Rand) (BoundaryHandler, error) {
	build, ok := boundaryStrategies[name]
	if !ok {
		return nil, optimization.NewConfigError("unknown boundary strategy %q, expected one of %v", name, BoundaryStrategies()).
			WithComponent("handlers")
	}
	if rng == nil && name == "random" {
		return nil, optimization.NewConfigError("random boundary strategy needs a random source").WithComponent("handlers")
	}
	return build(rng), nil
}

// BoundaryStrategies lists the registered boundary strategy names.
func BoundaryStrategies() []string {
	names := make([]string, 0, len(boundaryStrategies))
	for name := range boundaryStrategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (Nearest) String() string      { return "nearest" }
func (Periodic) String() string     { return "periodic" }
func (Reflective) String() string   { return "reflective" }
func (Shrink) String() string       { return "shrink" }
func (Intermediate) String() string { return "intermediate" }
func (*Random) String() string      { return "random" }
