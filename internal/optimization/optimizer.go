package optimization

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Optimizer defines the interface for swarm optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process for at most iters iterations
	Optimize(ctx context.Context, objective ObjectiveFunction, iters int) (*OptimizationResult, error)

	// Reset discards the history and reinitializes the swarm
	Reset() error

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the per-iteration history of the current run
	GetHistory() *History

	// State returns the lifecycle state of the optimizer
	State() State

	// Stop requests the running optimization to stop after the current iteration
	Stop()
}

// ObjectiveFunction evaluates a batch of positions. Each row of x is one
// particle; the returned slice holds one cost per row, lower is better.
// It may be called with any contiguous subset of the swarm's rows.
type ObjectiveFunction func(x *mat.Dense) ([]float64, error)

// Options holds the velocity update coefficients.
type Options struct {
	// C1 is the cognitive coefficient (pull towards the personal best)
	C1 float64 `json:"c1" yaml:"c1"`
	// C2 is the social coefficient (pull towards the neighbourhood best)
	C2 float64 `json:"c2" yaml:"c2"`
	// W is the inertia weight
	W float64 `json:"w" yaml:"w"`
}

// DefaultOptions returns the constriction-equivalent coefficients.
func DefaultOptions() Options {
	return Options{C1: 1.49618, C2: 1.49618, W: 0.7298}
}

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// State is the lifecycle state of an optimizer.
type State int

const (
	// StateInitialized means the swarm is ready and no iteration ran since the last reset.
	StateInitialized State = iota
	// StateRunning means an optimization is in progress.
	StateRunning
	// StateConverged means the run stopped early on the tolerance rule.
	StateConverged
	// StateExhausted means the run used every requested iteration.
	StateExhausted
	// StateStopped means the run was cancelled between iterations.
	StateStopped
	// StateFailed means the objective returned an error.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateRunning:
		return "running"
	case StateConverged:
		return "converged"
	case StateExhausted:
		return "exhausted"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	Iterations   int
	Converged    bool
	State        State
}
