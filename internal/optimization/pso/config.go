// Package pso implements the particle swarm optimizers: global-best,
// local-best on a ring of nearest neighbours, and binary.
package pso

import (
	"math"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/evaluator"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
)

// TopologyConfig parameterizes the ring neighbourhood of the local-best and
// binary optimizers.
type TopologyConfig struct {
	// K is the number of neighbours, the particle itself included.
	K int `json:"k" yaml:"k"`
	// P selects the Minkowski distance (1 Manhattan, 2 Euclidean).
	P float64 `json:"p" yaml:"p"`
	// Static keeps the neighbour lists of the first iteration.
	Static bool `json:"static" yaml:"static"`
}

// Config holds the configuration of one optimizer.
type Config struct {
	// Particles is the swarm size.
	Particles int
	// Dimensions is the size of the search space.
	Dimensions int

	// Options are the base velocity coefficients.
	Options optimization.Options

	// Bounds limits positions; nil means unbounded.
	Bounds *optimization.Bounds
	// VelocityClamp limits velocities; nil means unbounded.
	VelocityClamp *optimization.Clamp

	// BoundaryHandler corrects out-of-bounds positions. Defaults to periodic.
	BoundaryHandler handlers.BoundaryHandler
	// VelocityHandler post-processes velocities. Defaults to unmodified.
	VelocityHandler handlers.VelocityHandler
	// Schedule varies the coefficients over a run; nil keeps them constant.
	Schedule *handlers.OptionsHandler

	// FTol is the relative improvement below which an iteration counts
	// towards convergence. -Inf disables early stopping.
	FTol float64
	// FTolIter is the number of consecutive such iterations that stop a run.
	FTolIter int

	// InitPos optionally replaces the random initial positions.
	InitPos *mat.Dense
	// Center scales the initial position range when unbounded.
	Center float64

	// Workers splits evaluation over that many goroutines; 0 evaluates
	// sequentially. Ignored when Evaluator is set.
	Workers   int
	Evaluator evaluator.Evaluator

	// Topology is used by the local-best and binary optimizers.
	Topology TopologyConfig

	// RandomSeed seeds every random draw of the optimizer; 0 picks a
	// time-based seed.
	RandomSeed int64

	Logger *zap.Logger
}

// DefaultConfig returns a configuration for n particles in d dimensions
// that never stops early.
func DefaultConfig(n, d int) Config {
	k := 3
	if n < k {
		k = n
	}
	return Config{
		Particles:  n,
		Dimensions: d,
		Options:    optimization.DefaultOptions(),
		FTol:       math.Inf(-1),
		FTolIter:   1,
		Center:     1,
		Topology:   TopologyConfig{K: k, P: 2},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if c.Particles < 1 {
		return configError("particles must be positive, got %d", c.Particles)
	}
	if c.Dimensions < 1 {
		return configError("dimensions must be positive, got %d", c.Dimensions)
	}
	for _, opt := range []struct {
		name  string
		value float64
	}{{"c1", c.Options.C1}, {"c2", c.Options.C2}, {"w", c.Options.W}} {
		if math.IsNaN(opt.value) || math.IsInf(opt.value, 0) {
			return configError("option %s must be finite, got %v", opt.name, opt.value)
		}
	}
	if c.Bounds != nil {
		if err := c.Bounds.Validate(c.Dimensions); err != nil {
			return err
		}
	}
	if c.VelocityClamp != nil {
		if err := c.VelocityClamp.Validate(c.Dimensions); err != nil {
			return err
		}
	}
	if math.IsNaN(c.FTol) {
		return configError("ftol must not be NaN")
	}
	if c.FTolIter < 1 {
		return configError("ftol_iter must be positive, got %d", c.FTolIter)
	}
	if math.IsNaN(c.Center) || math.IsInf(c.Center, 0) {
		return configError("center must be finite, got %v", c.Center)
	}
	return nil
}

func configError(format string, args ...interface{}) error {
	return optimization.NewConfigError(format, args...).WithComponent("pso")
}
