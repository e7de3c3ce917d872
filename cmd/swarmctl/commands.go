package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/copyleftdev/swarmopt/internal/config"
	"github.com/copyleftdev/swarmopt/internal/job"
	"github.com/copyleftdev/swarmopt/internal/logging"
	"github.com/copyleftdev/swarmopt/internal/optimization/objectives"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

type runFlags struct {
	file       string
	objective  string
	variant    string
	particles  int
	dimensions int
	iterations int
	seed       int64
	workers    int
	bounds     []float64
	boundary   string
	velocity   string
	ftol       float64
	ftolIter   int
	timeout    time.Duration
	history    bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "swarmctl",
		Short: "Run particle swarm optimizations on the benchmark catalog",
		Long: `swarmctl runs global-best, local-best and binary particle swarm
optimizations against the built-in benchmark functions and prints the
result as JSON.`,
		SilenceUsage: true,
	}
	root.AddCommand(newRunCmd(), newObjectivesCmd())
	return root
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one optimization",
		Example: `  swarmctl run --objective rastrigin --particles 30 --dimensions 5 --iterations 200
  swarmctl run --file run.yaml --seed 42`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOptimization(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.file, "file", "f", "", "YAML run file; flags override its values")
	fl.StringVar(&f.objective, "objective", "", "benchmark function, see 'swarmctl objectives'")
	fl.StringVar(&f.variant, "variant", "", fmt.Sprintf("optimizer variant %v (default global_best)", pso.Variants()))
	fl.IntVarP(&f.particles, "particles", "n", 0, "swarm size")
	fl.IntVarP(&f.dimensions, "dimensions", "d", 0, "search space dimensions")
	fl.IntVarP(&f.iterations, "iterations", "i", 0, "maximum iterations (default from OPT_DEFAULT_ITERATIONS)")
	fl.Int64Var(&f.seed, "seed", 0, "random seed, 0 for time based")
	fl.IntVar(&f.workers, "workers", 0, "parallel evaluation goroutines, 0 evaluates sequentially")
	fl.Float64SliceVar(&f.bounds, "bounds", nil, "low,high applied to every dimension")
	fl.StringVar(&f.boundary, "boundary", "", "boundary strategy")
	fl.StringVar(&f.velocity, "velocity", "", "velocity strategy")
	fl.Float64Var(&f.ftol, "ftol", math.Inf(-1), "relative improvement tolerance for early stopping")
	fl.IntVar(&f.ftolIter, "ftol-iter", 0, "stalled iterations before stopping")
	fl.DurationVar(&f.timeout, "timeout", 0, "stop the run after this long")
	fl.BoolVar(&f.history, "history", false, "include the per-iteration best cost")
	fl.StringVar(&f.logLevel, "log-level", "warn", "log level written to stderr")
	return cmd
}

func newObjectivesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objectives",
		Short: "List the benchmark functions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return listObjectives(cmd.OutOrStdout())
		},
	}
}

func listObjectives(out io.Writer) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tDIMENSIONS\tDOMAIN\tMINIMUM")
	for _, name := range objectives.Names() {
		o, err := objectives.Lookup(name)
		if err != nil {
			return err
		}
		dims := fmt.Sprintf(">= %d", o.MinDims)
		if o.Dims > 0 {
			dims = fmt.Sprintf("%d", o.Dims)
		}
		domain := "unbounded"
		if !math.IsInf(o.Low, 0) && !math.IsInf(o.High, 0) {
			domain = fmt.Sprintf("[%g, %g]", o.Low, o.High)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%g\n", o.Name, dims, domain, o.Minimum)
	}
	return tw.Flush()
}

// loadRequest reads the run file, if any, and applies the flags that were
// set on the command line.
func loadRequest(cmd *cobra.Command, f *runFlags) (*job.Request, error) {
	req := &job.Request{}
	if f.file != "" {
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, req); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.file, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("objective") {
		req.Objective = f.objective
	}
	if changed("variant") {
		req.Variant = f.variant
	}
	if changed("particles") {
		req.Particles = f.particles
	}
	if changed("dimensions") {
		req.Dimensions = f.dimensions
	}
	if changed("iterations") {
		req.Iterations = f.iterations
	}
	if changed("seed") {
		req.Seed = f.seed
	}
	if changed("workers") {
		req.Workers = &f.workers
	}
	if changed("bounds") {
		req.Bounds = [][]float64{f.bounds}
	}
	if changed("boundary") {
		req.BoundaryStrategy = f.boundary
	}
	if changed("velocity") {
		req.VelocityStrategy = f.velocity
	}
	if changed("ftol") {
		req.FTol = &f.ftol
	}
	if changed("ftol-iter") {
		req.FTolIter = f.ftolIter
	}
	return req, nil
}

// runResult is printed by the run command.
type runResult struct {
	Objective    string    `json:"objective"`
	Variant      string    `json:"variant"`
	State        string    `json:"state"`
	Converged    bool      `json:"converged"`
	Iterations   int       `json:"iterations"`
	BestCost     float64   `json:"best_cost"`
	BestPosition []float64 `json:"best_position"`
	CostHistory  []float64 `json:"cost_history,omitempty"`
	Error        string    `json:"error,omitempty"`
}

func runOptimization(cmd *cobra.Command, f *runFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	req, err := loadRequest(cmd, f)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(config.Logging{Level: f.logLevel, Format: "text", Output: "stderr"})
	if err != nil {
		return err
	}

	limits := job.Limits{
		MaxParticles:      cfg.Optimization.MaxParticles,
		MaxDimensions:     cfg.Optimization.MaxDimensions,
		MaxIterations:     cfg.Optimization.MaxIterations,
		DefaultIterations: cfg.Optimization.DefaultIterations,
		Workers:           cfg.Optimization.WorkerCount,
	}
	j, err := req.Build(limits, logging.NewZapLogger(logger))
	if err != nil {
		return err
	}
	opt, err := j.NewOptimizer()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	res, runErr := opt.Optimize(ctx, j.Objective.Func, j.Iterations)
	if res == nil {
		return runErr
	}

	out := runResult{
		Objective:    j.Objective.Name,
		Variant:      j.Variant,
		State:        res.State.String(),
		Converged:    res.Converged,
		Iterations:   res.Iterations,
		BestCost:     res.BestSolution.Value,
		BestPosition: res.BestSolution.Parameters,
	}
	if f.history {
		out.CostHistory = opt.GetHistory().CostHistory()
	}
	if runErr != nil {
		out.Error = runErr.Error()
	}
	if err := writeResult(cmd.OutOrStdout(), out); err != nil {
		return err
	}
	// Hitting --timeout is a normal end of the run.
	if errors.Is(runErr, context.DeadlineExceeded) && f.timeout > 0 {
		return nil
	}
	return runErr
}

func writeResult(w io.Writer, res runResult) error {
	if math.IsInf(res.BestCost, 0) || math.IsNaN(res.BestCost) {
		return fmt.Errorf("no finite cost was found after %d iterations", res.Iterations)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}
