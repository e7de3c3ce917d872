// Package objectives provides a catalog of single-objective benchmark
// functions in the vectorized form expected by the optimizers.
package objectives

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

var (
	// ErrOutOfDomain is returned when an input lies outside a function's domain.
	ErrOutOfDomain = errors.New("input out of domain")
	// ErrDimensions is returned for an unsupported number of dimensions.
	ErrDimensions = errors.New("unsupported dimensions")
	// ErrUnknown is returned by Lookup for names not in the catalog.
	ErrUnknown = errors.New("unknown objective")
)

// Objective describes one benchmark function.
type Objective struct {
	Name string
	// Dims is the required dimensionality, 0 when any is accepted.
	Dims int
	// MinDims is the smallest accepted dimensionality.
	MinDims int
	// Low and High delimit the domain; infinite when unrestricted.
	Low, High float64
	// Minimum is the global minimum value.
	Minimum float64
	Func    optimization.ObjectiveFunction
}

// CheckDims reports whether the objective accepts d dimensions.
func (o Objective) CheckDims(d int) error {
	if o.Dims > 0 && d != o.Dims {
		return domainError(o.Name, ErrDimensions, "takes exactly %d dimensions, got %d", o.Dims, d)
	}
	if d < o.MinDims {
		return domainError(o.Name, ErrDimensions, "needs at least %d dimensions, got %d", o.MinDims, d)
	}
	return nil
}

// Bounds returns the domain as bounds for d dimensions, or nil when the
// domain is unrestricted.
func (o Objective) Bounds(d int) (*optimization.Bounds, error) {
	if math.IsInf(o.Low, 0) || math.IsInf(o.High, 0) {
		return nil, nil
	}
	return optimization.ScalarBounds(o.Low, o.High, d)
}

var catalog = map[string]Objective{
	"sphere":     {Name: "sphere", MinDims: 1, Low: math.Inf(-1), High: math.Inf(1), Func: Sphere},
	"rastrigin":  {Name: "rastrigin", MinDims: 1, Low: -5.12, High: 5.12, Func: Rastrigin},
	"ackley":     {Name: "ackley", MinDims: 1, Low: -32, High: 32, Func: Ackley},
	"rosenbrock": {Name: "rosenbrock", MinDims: 2, Low: math.Inf(-1), High: math.Inf(1), Func: Rosenbrock},
	"booth":      {Name: "booth", Dims: 2, MinDims: 2, Low: -10, High: 10, Func: Booth},
	"beale":      {Name: "beale", Dims: 2, MinDims: 2, Low: -4.5, High: 4.5, Func: Beale},
	"himmelblau": {Name: "himmelblau", Dims: 2, MinDims: 2, Low: -5, High: 5, Func: Himmelblau},
	"matyas":     {Name: "matyas", Dims: 2, MinDims: 2, Low: -10, High: 10, Func: Matyas},
}

// Lookup returns the catalog entry registered under name.
func Lookup(name string) (Objective, error) {
	o, ok := catalog[name]
	if !ok {
		return Objective{}, fmt.Errorf("%w %q, expected one of %v", ErrUnknown, name, Names())
	}
	return o, nil
}

// Names lists the catalog in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sphere is sum(x^2).
func Sphere(x *mat.Dense) ([]float64, error) {
	return rows(x, func(p []float64) float64 {
		var s float64
		for _, v := range p {
			s += v * v
		}
		return s
	}), nil
}

// Rastrigin is 10d + sum(x^2 - 10cos(2 pi x)) on [-5.12, 5.12].
func Rastrigin(x *mat.Dense) ([]float64, error) {
	if err := inDomain("rastrigin", x, -5.12, 5.12); err != nil {
		return nil, err
	}
	return rows(x, func(p []float64) float64 {
		s := 10 * float64(len(p))
		for _, v := range p {
			s += v*v - 10*math.Cos(2*math.Pi*v)
		}
		return s
	}), nil
}

// Ackley is the Ackley function on [-32, 32].
func Ackley(x *mat.Dense) ([]float64, error) {
	if err := inDomain("ackley", x, -32, 32); err != nil {
		return nil, err
	}
	return rows(x, func(p []float64) float64 {
		var sq, cs float64
		for _, v := range p {
			sq += v * v
			cs += math.Cos(2 * math.Pi * v)
		}
		d := float64(len(p))
		return -20*math.Exp(-0.2*math.Sqrt(sq/d)) - math.Exp(cs/d) + 20 + math.E
	}), nil
}

// Rosenbrock is sum(100(x[i+1] - x[i]^2)^2 + (1 - x[i])^2) for d >= 2.
func Rosenbrock(x *mat.Dense) ([]float64, error) {
	if _, d := x.Dims(); d < 2 {
		return nil, domainError("rosenbrock", ErrDimensions, "needs at least 2 dimensions, got %d", d)
	}
	return rows(x, func(p []float64) float64 {
		var s float64
		for i := 0; i < len(p)-1; i++ {
			a := p[i+1] - p[i]*p[i]
			b := 1 - p[i]
			s += 100*a*a + b*b
		}
		return s
	}), nil
}

// Booth is (x + 2y - 7)^2 + (2x + y - 5)^2 on [-10, 10]^2.
func Booth(x *mat.Dense) ([]float64, error) {
	return plane("booth", x, -10, 10, func(a, b float64) float64 {
		u, v := a+2*b-7, 2*a+b-5
		return u*u + v*v
	})
}

// Beale is the Beale function on [-4.5, 4.5]^2.
func Beale(x *mat.Dense) ([]float64, error) {
	return plane("beale", x, -4.5, 4.5, func(a, b float64) float64 {
		u := 1.5 - a + a*b
		v := 2.25 - a + a*b*b
		w := 2.625 - a + a*b*b*b
		return u*u + v*v + w*w
	})
}

// Himmelblau is (x^2 + y - 11)^2 + (x + y^2 - 7)^2 on [-5, 5]^2.
func Himmelblau(x *mat.Dense) ([]float64, error) {
	return plane("himmelblau", x, -5, 5, func(a, b float64) float64 {
		u, v := a*a+b-11, a+b*b-7
		return u*u + v*v
	})
}

// Matyas is 0.26(x^2 + y^2) - 0.48xy on [-10, 10]^2.
func Matyas(x *mat.Dense) ([]float64, error) {
	return plane("matyas", x, -10, 10, func(a, b float64) float64 {
		return 0.26*(a*a+b*b) - 0.48*a*b
	})
}

func plane(name string, x *mat.Dense, lo, hi float64, f func(a, b float64) float64) ([]float64, error) {
	if _, d := x.Dims(); d != 2 {
		return nil, domainError(name, ErrDimensions, "takes exactly 2 dimensions, got %d", d)
	}
	if err := inDomain(name, x, lo, hi); err != nil {
		return nil, err
	}
	return rows(x, func(p []float64) float64 { return f(p[0], p[1]) }), nil
}

func rows(x *mat.Dense, f func([]float64) float64) []float64 {
	n, _ := x.Dims()
	out := make([]float64, n)
	for i := range out {
		out[i] = f(x.RawRowView(i))
	}
	return out
}

func inDomain(name string, x *mat.Dense, lo, hi float64) error {
	n, _ := x.Dims()
	for i := 0; i < n; i++ {
		for j, v := range x.RawRowView(i) {
			if !(v >= lo && v <= hi) {
				return domainError(name, ErrOutOfDomain, "x[%d][%d] = %v outside [%v, %v]", i, j, v, lo, hi)
			}
		}
	}
	return nil
}

func domainError(name string, kind error, format string, args ...interface{}) error {
	return &optimization.Error{
		Message:   fmt.Sprintf(format, args...),
		Op:        name,
		Component: "objectives",
		Err:       kind,
	}
}
