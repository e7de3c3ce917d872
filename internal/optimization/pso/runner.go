package pso

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/evaluator"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
	"github.com/copyleftdev/swarmopt/internal/optimization/swarm"
	"github.com/copyleftdev/swarmopt/internal/optimization/topology"
	"github.com/copyleftdev/swarmopt/internal/optimization/velocity"
)

// runner is the iteration loop shared by every variant. The variants differ
// in their topology and in how positions are generated and moved.
type runner struct {
	variant string
	cfg     Config
	binary  bool

	logger    *zap.Logger
	rng       *rand.Rand
	topo      topology.Topology
	boundary  handlers.BoundaryHandler
	updater   *velocity.Updater
	evaluator evaluator.Evaluator

	// mu serializes Optimize and Reset.
	mu    sync.Mutex
	swarm *swarm.Swarm

	// statusMu guards the snapshots read by pollers during a run.
	statusMu sync.RWMutex
	state    optimization.State
	best     *optimization.Solution
	history  *optimization.History
	cancel   context.CancelFunc
}

func newRunner(variant string, cfg Config, topo topology.Topology, binary bool) (*runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	boundary := cfg.BoundaryHandler
	if boundary == nil {
		boundary = handlers.Periodic{}
	}

	eval := cfg.Evaluator
	if eval == nil {
		eval = evaluator.New(cfg.Workers)
	}

	r := &runner{
		variant:   variant,
		cfg:       cfg,
		binary:    binary,
		logger:    logger.Named("pso." + variant),
		rng:       rng,
		topo:      topo,
		boundary:  boundary,
		updater:   velocity.NewUpdater(rng, cfg.VelocityClamp, cfg.Bounds, cfg.VelocityHandler),
		evaluator: eval,
	}
	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reset discards the history and draws a new swarm. It waits for a running
// optimization to finish.
func (r *runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.newSwarm()
	if err != nil {
		return err
	}
	if resetter, ok := r.topo.(interface{ Reset() }); ok {
		resetter.Reset()
	}
	r.swarm = s

	r.statusMu.Lock()
	r.state = optimization.StateInitialized
	r.best = nil
	r.history = optimization.NewHistory(0)
	r.statusMu.Unlock()
	return nil
}

func (r *runner) newSwarm() (*swarm.Swarm, error) {
	n, d := r.cfg.Particles, r.cfg.Dimensions

	var (
		pos *mat.Dense
		err error
	)
	if r.binary {
		pos, err = swarm.GenerateDiscrete(r.rng, n, d, r.cfg.InitPos)
	} else {
		pos, err = swarm.GeneratePositions(r.rng, n, d, r.cfg.Bounds, r.cfg.Center, r.cfg.InitPos)
	}
	if err != nil {
		return nil, err
	}

	vel, err := swarm.GenerateVelocity(r.rng, n, d, r.cfg.VelocityClamp)
	if err != nil {
		return nil, err
	}
	return swarm.New(pos, vel, r.cfg.Options)
}

// Optimize runs at most iters iterations of objective and returns the best
// personal best found. It stops early when the best cost stalls for
// FTolIter consecutive iterations. When ctx is cancelled or Stop is called
// the partial result is returned together with the context error. Errors
// from the objective are returned as is.
func (r *runner) Optimize(ctx context.Context, objective optimization.ObjectiveFunction, iters int) (*optimization.OptimizationResult, error) {
	if objective == nil {
		return nil, configError("objective function must not be nil")
	}
	if iters < 1 {
		return nil, configError("iters must be positive, got %d", iters)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n, d := r.swarm.Dims()
	ctx, span := startRunSpan(ctx, r.variant, n, d, iters)
	start := time.Now()
	activeRuns.WithLabelValues(r.variant).Inc()
	defer activeRuns.WithLabelValues(r.variant).Dec()

	r.statusMu.Lock()
	r.state = optimization.StateRunning
	r.cancel = cancel
	r.statusMu.Unlock()

	res, err := r.loop(ctx, objective, iters)

	r.statusMu.Lock()
	r.cancel = nil
	if res != nil {
		r.state = res.State
	} else {
		r.state = optimization.StateFailed
	}
	r.statusMu.Unlock()

	runDuration.WithLabelValues(r.variant).Observe(time.Since(start).Seconds())
	runsTotal.WithLabelValues(r.variant, r.State().String()).Inc()
	endRunSpan(span, res, err)

	if err != nil {
		r.logger.Warn("optimization ended with error",
			zap.String("state", r.State().String()),
			zap.Error(err))
		return res, err
	}
	r.logger.Info("optimization finished",
		zap.String("state", res.State.String()),
		zap.Int("iterations", res.Iterations),
		zap.Float64("best_cost", res.BestSolution.Value))
	return res, nil
}

func (r *runner) loop(ctx context.Context, objective optimization.ObjectiveFunction, iters int) (*optimization.OptimizationResult, error) {
	s := r.swarm
	stall := convergence{tol: r.cfg.FTol, window: r.cfg.FTolIter}
	completed := 0

	for i := 0; i < iters; i++ {
		select {
		case <-ctx.Done():
			return r.result(completed, optimization.StateStopped), ctx.Err()
		default:
		}

		cost, err := r.evaluator.Evaluate(s, objective)
		if err != nil {
			return nil, err
		}
		s.CurrentCost = cost
		s.PbestPos, s.PbestCost = swarm.ComputePbest(s)

		best, err := r.topo.ComputeGBest(s)
		if err != nil {
			return nil, err
		}
		prev := s.BestCost
		s.BestPos, s.BestCost = best.Pos, best.Cost
		s.NeighborPos, s.NeighborCost = best.NeighborPos, best.NeighborCost

		r.record(s)
		completed++
		iterationsTotal.WithLabelValues(r.variant).Inc()
		r.logger.Debug("iteration",
			zap.Int("iteration", i),
			zap.Float64("best_cost", s.BestCost))

		if stall.observe(prev, s.BestCost) {
			return r.result(completed, optimization.StateConverged), nil
		}

		if r.cfg.Schedule != nil {
			s.Options = r.cfg.Schedule.Options(r.cfg.Options, i, iters)
		}
		s.Velocity = r.updater.Update(s)
		if r.binary {
			s.Position = swarm.ComputeBinaryPosition(s, r.rng)
		} else {
			s.Position = swarm.ComputePosition(s, r.cfg.Bounds, r.boundary)
		}
	}
	return r.result(completed, optimization.StateExhausted), nil
}

// record appends the evaluated iteration to the history and publishes the
// current best.
func (r *runner) record(s *swarm.Swarm) {
	rec := optimization.IterationRecord{
		BestCost:         s.BestCost,
		MeanPbestCost:    s.MeanPbestCost(),
		MeanNeighborCost: s.MeanNeighborCost(),
		Position:         s.Position,
		Velocity:         s.Velocity,
	}
	best := bestOf(s)

	r.statusMu.Lock()
	r.history.Append(rec)
	r.best = best
	r.statusMu.Unlock()
}

func (r *runner) result(iterations int, state optimization.State) *optimization.OptimizationResult {
	return &optimization.OptimizationResult{
		BestSolution: bestOf(r.swarm),
		Iterations:   iterations,
		Converged:    state == optimization.StateConverged,
		State:        state,
	}
}

// bestOf returns the lowest personal best; ties go to the lowest index.
func bestOf(s *swarm.Swarm) *optimization.Solution {
	idx := floats.MinIdx(s.PbestCost)
	return &optimization.Solution{
		Parameters: append([]float64(nil), s.PbestPos.RawRowView(idx)...),
		Value:      s.PbestCost[idx],
	}
}

// Stop cancels a running optimization after its current iteration.
func (r *runner) Stop() {
	r.statusMu.RLock()
	cancel := r.cancel
	r.statusMu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

// State returns the lifecycle state.
func (r *runner) State() optimization.State {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.state
}

// GetBestSolution returns a copy of the best solution of the latest
// iteration, or nil before the first one.
func (r *runner) GetBestSolution() *optimization.Solution {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	if r.best == nil {
		return nil
	}
	return &optimization.Solution{
		Parameters: append([]float64(nil), r.best.Parameters...),
		Value:      r.best.Value,
	}
}

// GetHistory returns the history since the last reset.
func (r *runner) GetHistory() *optimization.History {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()
	return r.history
}

// convergence tracks consecutive stalled iterations.
type convergence struct {
	tol    float64
	window int
	run    int
}

// observe reports whether the last window iterations all stalled.
func (c *convergence) observe(prev, best float64) bool {
	if stalled(prev, best, c.tol) {
		c.run++
	} else {
		c.run = 0
	}
	return c.run >= c.window
}

func stalled(prev, best, tol float64) bool {
	if math.IsInf(prev, 0) || math.IsNaN(prev) || math.IsInf(best, 0) || math.IsNaN(best) {
		return false
	}
	return math.Abs(best-prev) <= tol*(1+math.Abs(prev))
}
