package job

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	apperrors "github.com/copyleftdev/swarmopt/internal/errors"
	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

var testLimits = Limits{
	MaxParticles:      100,
	MaxDimensions:     10,
	MaxIterations:     500,
	DefaultIterations: 25,
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildDefaults(t *testing.T) {
	req := &Request{Objective: "rastrigin", Particles: 10, Dimensions: 3, Seed: 7}
	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)

	assert.Equal(t, "global_best", j.Variant)
	assert.Equal(t, "rastrigin", j.Objective.Name)
	assert.Equal(t, 25, j.Iterations)
	assert.Equal(t, optimization.DefaultOptions(), j.Config.Options)
	assert.True(t, math.IsInf(j.Config.FTol, -1))
	assert.Equal(t, int64(7), j.Config.RandomSeed)

	require.NotNil(t, j.Config.Bounds, "bounded objectives default to their domain")
	assert.Equal(t, []float64{-5.12, -5.12, -5.12}, j.Config.Bounds.Low)
	assert.Equal(t, []float64{5.12, 5.12, 5.12}, j.Config.Bounds.High)
}

func TestBuildUnboundedObjective(t *testing.T) {
	req := &Request{Objective: "sphere", Particles: 5, Dimensions: 2}
	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)
	assert.Nil(t, j.Config.Bounds)
}

func TestBuildOverrides(t *testing.T) {
	req := &Request{
		Objective:        "ackley",
		Variant:          "local_best",
		Particles:        12,
		Dimensions:       2,
		Iterations:       40,
		Bounds:           [][]float64{{-2, 2}},
		Options:          &optimization.Options{C1: 0.5, C2: 0.3, W: 0.9},
		BoundaryStrategy: "reflective",
		VelocityStrategy: "zero",
		VelocityClamp:    []float64{-1, 1},
		FTol:             floatPtr(1e-8),
		FTolIter:         5,
		Topology:         &pso.TopologyConfig{K: 4, P: 1, Static: true},
		Schedule: &ScheduleRequest{
			W: &CoefficientSchedule{Kind: "linear", End: 0.4},
		},
		Workers: intPtr(2),
	}
	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)

	cfg := j.Config
	assert.Equal(t, "local_best", j.Variant)
	assert.Equal(t, 40, j.Iterations)
	assert.Equal(t, []float64{-2, -2}, cfg.Bounds.Low)
	assert.Equal(t, []float64{2, 2}, cfg.Bounds.High)
	assert.Equal(t, optimization.Options{C1: 0.5, C2: 0.3, W: 0.9}, cfg.Options)
	assert.Equal(t, handlers.Reflective{}, cfg.BoundaryHandler)
	assert.Equal(t, handlers.Zero{}, cfg.VelocityHandler)
	assert.Equal(t, []float64{-1, -1}, cfg.VelocityClamp.Min)
	assert.Equal(t, 1e-8, cfg.FTol)
	assert.Equal(t, 5, cfg.FTolIter)
	assert.Equal(t, pso.TopologyConfig{K: 4, P: 1, Static: true}, cfg.Topology)
	assert.Equal(t, 2, cfg.Workers)

	require.NotNil(t, cfg.Schedule)
	assert.Equal(t, handlers.Linear{End: 0.4}, cfg.Schedule.W)
	assert.Nil(t, cfg.Schedule.C1)
}

func TestBuildRejects(t *testing.T) {
	base := func() Request {
		return Request{Objective: "booth", Particles: 10, Dimensions: 2}
	}
	tests := []struct {
		name   string
		modify func(r *Request)
	}{
		{"missing objective", func(r *Request) { r.Objective = "" }},
		{"unknown objective", func(r *Request) { r.Objective = "nope" }},
		{"unknown variant", func(r *Request) { r.Variant = "hybrid" }},
		{"no particles", func(r *Request) { r.Particles = 0 }},
		{"negative dimensions", func(r *Request) { r.Dimensions = -1 }},
		{"too many particles", func(r *Request) { r.Particles = 101 }},
		{"too many iterations", func(r *Request) { r.Iterations = 501 }},
		{"fixed dimensionality", func(r *Request) { r.Dimensions = 3 }},
		{"bound pair of three", func(r *Request) { r.Bounds = [][]float64{{-1, 0, 1}} }},
		{"bounds count", func(r *Request) { r.Bounds = [][]float64{{-1, 1}, {-1, 1}, {-1, 1}} }},
		{"bounds outside domain", func(r *Request) { r.Bounds = [][]float64{{-20, 1}} }},
		{"inverted bounds", func(r *Request) { r.Bounds = [][]float64{{1, -1}} }},
		{"unknown boundary strategy", func(r *Request) { r.BoundaryStrategy = "teleport" }},
		{"unknown velocity strategy", func(r *Request) { r.VelocityStrategy = "boost" }},
		{"clamp of one", func(r *Request) { r.VelocityClamp = []float64{1} }},
		{"unknown schedule", func(r *Request) {
			r.Schedule = &ScheduleRequest{C1: &CoefficientSchedule{Kind: "cosine"}}
		}},
		{"infinite schedule end", func(r *Request) {
			r.Schedule = &ScheduleRequest{C2: &CoefficientSchedule{Kind: "linear", End: math.Inf(1)}}
		}},
		{"nan option", func(r *Request) { r.Options = &optimization.Options{C1: math.NaN()} }},
		{"bad ftol_iter", func(r *Request) { r.FTolIter = -2 }},
		{"topology too wide", func(r *Request) {
			r.Variant = "local_best"
			r.Topology = &pso.TopologyConfig{K: 11, P: 2}
		}},
		{"boundary strategy on unbounded domain", func(r *Request) {
			r.Objective = "sphere"
			r.BoundaryStrategy = "nearest"
		}},
		{"binary with bounds", func(r *Request) {
			r.Variant = "binary"
			r.Bounds = [][]float64{{0, 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base()
			tt.modify(&req)
			j, err := req.Build(testLimits, nil)
			if err == nil {
				// Some problems only surface when the optimizer is built.
				_, err = j.NewOptimizer()
			}
			require.Error(t, err)
			assert.Equal(t, apperrors.KindInvalid, apperrors.KindOf(err))
		})
	}
}

func TestJobRuns(t *testing.T) {
	req := &Request{Objective: "sphere", Particles: 15, Dimensions: 2, Iterations: 60, Seed: 3,
		Bounds: [][]float64{{-5, 5}, {-5, 5}}}
	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)

	opt, err := j.NewOptimizer()
	require.NoError(t, err)

	res, err := opt.Optimize(context.Background(), j.Objective.Func, j.Iterations)
	require.NoError(t, err)
	assert.Equal(t, 60, res.Iterations)
	assert.Less(t, res.BestSolution.Value, 1e-2)
}

func TestBinaryJob(t *testing.T) {
	req := &Request{Objective: "sphere", Variant: "binary", Particles: 8, Dimensions: 6, Iterations: 20, Seed: 1}
	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)
	assert.Nil(t, j.Config.Bounds)

	opt, err := j.NewOptimizer()
	require.NoError(t, err)
	res, err := opt.Optimize(context.Background(), j.Objective.Func, j.Iterations)
	require.NoError(t, err)
	for _, v := range res.BestSolution.Parameters {
		assert.Contains(t, []float64{0, 1}, v)
	}
}

func TestRequestFromYAML(t *testing.T) {
	doc := `
objective: himmelblau
variant: local_best
particles: 20
dimensions: 2
iterations: 50
bounds:
  - [-4, 4]
options: {c1: 0.6, c2: 0.4, w: 0.8}
boundary_strategy: shrink
topology: {k: 5, p: 2}
schedule:
  c1: {kind: exp_decay, end: 0.1, param: 3}
seed: 11
`
	var req Request
	require.NoError(t, yaml.Unmarshal([]byte(doc), &req))

	j, err := req.Build(testLimits, nil)
	require.NoError(t, err)
	assert.Equal(t, "local_best", j.Variant)
	assert.Equal(t, 50, j.Iterations)
	assert.Equal(t, optimization.Options{C1: 0.6, C2: 0.4, W: 0.8}, j.Config.Options)
	assert.Equal(t, handlers.Shrink{}, j.Config.BoundaryHandler)
	assert.Equal(t, 5, j.Config.Topology.K)
	assert.Equal(t, handlers.ExpDecay{End: 0.1, Rate: 3}, j.Config.Schedule.C1)
	assert.Equal(t, int64(11), j.Config.RandomSeed)
}
