package pso

import (
	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/topology"
)

var (
	_ optimization.Optimizer = (*GlobalBest)(nil)
	_ optimization.Optimizer = (*LocalBest)(nil)
	_ optimization.Optimizer = (*Binary)(nil)
)

// GlobalBest is the star-topology optimizer: every particle is attracted by
// the best position found by the whole swarm.
type GlobalBest struct {
	*runner
}

// NewGlobalBest creates a global-best optimizer and draws its initial swarm.
func NewGlobalBest(cfg Config) (*GlobalBest, error) {
	r, err := newRunner("global_best", cfg, topology.Star{}, false)
	if err != nil {
		return nil, withOp(err, "NewGlobalBest")
	}
	return &GlobalBest{runner: r}, nil
}

// LocalBest attracts every particle by the best of its K nearest
// neighbours.
type LocalBest struct {
	*runner
}

// NewLocalBest creates a local-best optimizer with the ring described by
// cfg.Topology.
func NewLocalBest(cfg Config) (*LocalBest, error) {
	ring, err := newRing(cfg)
	if err != nil {
		return nil, withOp(err, "NewLocalBest")
	}
	r, err := newRunner("local_best", cfg, ring, false)
	if err != nil {
		return nil, withOp(err, "NewLocalBest")
	}
	return &LocalBest{runner: r}, nil
}

// Binary searches {0,1}^D. Velocities are real valued; each coordinate is
// set with probability sigmoid(velocity). Positions are never bounded.
type Binary struct {
	*runner
}

// NewBinary creates a binary optimizer over a ring topology.
func NewBinary(cfg Config) (*Binary, error) {
	if cfg.Bounds != nil {
		return nil, withOp(configError("binary swarms do not take position bounds"), "NewBinary")
	}
	ring, err := newRing(cfg)
	if err != nil {
		return nil, withOp(err, "NewBinary")
	}
	r, err := newRunner("binary", cfg, ring, true)
	if err != nil {
		return nil, withOp(err, "NewBinary")
	}
	return &Binary{runner: r}, nil
}

func newRing(cfg Config) (*topology.Ring, error) {
	ring, err := topology.NewRing(cfg.Topology.K, cfg.Topology.P, cfg.Topology.Static)
	if err != nil {
		return nil, err
	}
	if err := ring.Validate(cfg.Particles); err != nil {
		return nil, err
	}
	return ring, nil
}

// withOp tags engine errors with the constructor that rejected them.
func withOp(err error, op string) error {
	if e, ok := optimization.IsOptimizationError(err); ok && e.Op == "" {
		e.WithOperation(op)
	}
	return err
}

// New builds an optimizer by variant name: "global_best", "local_best" or
// "binary".
func New(variant string, cfg Config) (optimization.Optimizer, error) {
	var (
		opt optimization.Optimizer
		err error
	)
	switch variant {
	case "", "global_best":
		opt, err = NewGlobalBest(cfg)
	case "local_best":
		opt, err = NewLocalBest(cfg)
	case "binary":
		opt, err = NewBinary(cfg)
	default:
		return nil, configError("unknown optimizer variant %q, expected one of %v", variant, Variants())
	}
	if err != nil {
		return nil, err
	}
	return opt, nil
}

// Variants lists the names accepted by New.
func Variants() []string {
	return []string{"binary", "global_best", "local_best"}
}
