// Package job turns a declarative run description, as received by the
// server or read from a CLI run file, into a configured optimizer.
package job

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/copyleftdev/swarmopt/internal/errors"
	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/handlers"
	"github.com/copyleftdev/swarmopt/internal/optimization/objectives"
	"github.com/copyleftdev/swarmopt/internal/optimization/pso"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	_ = validate.RegisterValidation("objective", func(fl validator.FieldLevel) bool {
		_, err := objectives.Lookup(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("boundary", oneOf(handlers.BoundaryStrategies))
	_ = validate.RegisterValidation("velocity", oneOf(handlers.VelocityStrategies))
	_ = validate.RegisterValidation("schedule", oneOf(handlers.ScheduleNames))
}

func oneOf(names func() []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		for _, name := range names() {
			if v == name {
				return true
			}
		}
		return false
	}
}

// Request describes one optimization run.
type Request struct {
	Objective  string `json:"objective" yaml:"objective" validate:"required,objective"`
	Variant    string `json:"variant,omitempty" yaml:"variant" validate:"omitempty,oneof=global_best local_best binary"`
	Particles  int    `json:"particles" yaml:"particles" validate:"required,min=1"`
	Dimensions int    `json:"dimensions" yaml:"dimensions" validate:"required,min=1"`
	Iterations int    `json:"iterations,omitempty" yaml:"iterations" validate:"omitempty,min=1"`

	// Bounds holds one [low, high] pair per dimension, or a single pair
	// applied to every dimension.
	Bounds [][]float64 `json:"bounds,omitempty" yaml:"bounds" validate:"omitempty,dive,len=2"`

	Options          *optimization.Options `json:"options,omitempty" yaml:"options"`
	BoundaryStrategy string                `json:"boundary_strategy,omitempty" yaml:"boundary_strategy" validate:"omitempty,boundary"`
	VelocityStrategy string                `json:"velocity_strategy,omitempty" yaml:"velocity_strategy" validate:"omitempty,velocity"`
	// VelocityClamp is a single [min, max] pair applied to every dimension.
	VelocityClamp []float64 `json:"velocity_clamp,omitempty" yaml:"velocity_clamp" validate:"omitempty,len=2"`

	FTol     *float64 `json:"ftol,omitempty" yaml:"ftol"`
	FTolIter int      `json:"ftol_iter,omitempty" yaml:"ftol_iter" validate:"omitempty,min=1"`

	Topology *pso.TopologyConfig `json:"topology,omitempty" yaml:"topology"`
	Schedule *ScheduleRequest    `json:"schedule,omitempty" yaml:"schedule"`

	Workers *int  `json:"workers,omitempty" yaml:"workers" validate:"omitempty,min=0"`
	Seed    int64 `json:"seed,omitempty" yaml:"seed"`
}

// ScheduleRequest selects a schedule per coefficient.
type ScheduleRequest struct {
	W  *CoefficientSchedule `json:"w,omitempty" yaml:"w"`
	C1 *CoefficientSchedule `json:"c1,omitempty" yaml:"c1"`
	C2 *CoefficientSchedule `json:"c2,omitempty" yaml:"c2"`
}

// CoefficientSchedule moves a coefficient from its base value to End.
type CoefficientSchedule struct {
	Kind  string  `json:"kind" yaml:"kind" validate:"required,schedule"`
	End   float64 `json:"end" yaml:"end"`
	Param float64 `json:"param,omitempty" yaml:"param"`
}

// Limits caps what a request may ask for.
type Limits struct {
	MaxParticles      int
	MaxDimensions     int
	MaxIterations     int
	DefaultIterations int
	Workers           int
}

// Job is a validated request ready to run.
type Job struct {
	Variant    string
	Objective  objectives.Objective
	Iterations int
	Config     pso.Config
}

// Validate checks the request's shape and names.
func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		return apperrors.Wrap(describe(err), apperrors.KindInvalid, "invalid request")
	}
	return nil
}

// describe flattens validator errors into one readable error.
func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Build validates the request against the limits and assembles the
// optimizer configuration. logger may be nil.
func (r *Request) Build(limits Limits, logger *zap.Logger) (*Job, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if err := r.checkLimits(limits); err != nil {
		return nil, err
	}

	obj, err := objectives.Lookup(r.Objective)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
	}
	if err := obj.CheckDims(r.Dimensions); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
	}

	variant := r.Variant
	if variant == "" {
		variant = "global_best"
	}
	iters := r.Iterations
	if iters == 0 {
		iters = limits.DefaultIterations
	}

	cfg := pso.DefaultConfig(r.Particles, r.Dimensions)
	cfg.RandomSeed = r.Seed
	cfg.Logger = logger
	cfg.Workers = limits.Workers
	if r.Workers != nil {
		cfg.Workers = *r.Workers
	}
	if r.Options != nil {
		cfg.Options = *r.Options
	}
	if r.FTol != nil {
		cfg.FTol = *r.FTol
	}
	if r.FTolIter > 0 {
		cfg.FTolIter = r.FTolIter
	}
	if r.Topology != nil {
		cfg.Topology = *r.Topology
	}

	// Handlers draw from their own stream so the swarm trajectory only
	// depends on the seed.
	rng := rand.New(rand.NewSource(r.Seed + 1))

	if variant == "binary" {
		if len(r.Bounds) > 0 || r.BoundaryStrategy != "" {
			return nil, apperrors.New(apperrors.KindInvalid, "the binary optimizer takes no bounds").WithComponent("job")
		}
	} else {
		bounds, err := r.bounds(obj)
		if err != nil {
			return nil, apperrors.Wrapf(err, apperrors.KindInvalid, "invalid bounds for %s", obj.Name)
		}
		cfg.Bounds = bounds
		if r.BoundaryStrategy != "" {
			if bounds == nil {
				return nil, apperrors.Errorf(apperrors.KindInvalid,
					"boundary_strategy needs bounds: %s has an unbounded domain", obj.Name).WithComponent("job")
			}
			if cfg.BoundaryHandler, err = handlers.NewBoundaryHandler(r.BoundaryStrategy, rng); err != nil {
				return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
			}
		}
	}

	if r.VelocityStrategy != "" {
		if cfg.VelocityHandler, err = handlers.NewVelocityHandler(r.VelocityStrategy); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
		}
	}
	if len(r.VelocityClamp) == 2 {
		if cfg.VelocityClamp, err = optimization.ScalarClamp(r.VelocityClamp[0], r.VelocityClamp[1], r.Dimensions); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
		}
	}
	if r.Schedule != nil {
		if cfg.Schedule, err = r.Schedule.build(rng); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
	}
	return &Job{Variant: variant, Objective: obj, Iterations: iters, Config: cfg}, nil
}

func (r *Request) checkLimits(l Limits) error {
	switch {
	case l.MaxParticles > 0 && r.Particles > l.MaxParticles:
		return apperrors.Errorf(apperrors.KindInvalid, "particles %d exceeds the limit of %d", r.Particles, l.MaxParticles).WithComponent("job")
	case l.MaxDimensions > 0 && r.Dimensions > l.MaxDimensions:
		return apperrors.Errorf(apperrors.KindInvalid, "dimensions %d exceeds the limit of %d", r.Dimensions, l.MaxDimensions).WithComponent("job")
	case l.MaxIterations > 0 && r.Iterations > l.MaxIterations:
		return apperrors.Errorf(apperrors.KindInvalid, "iterations %d exceeds the limit of %d", r.Iterations, l.MaxIterations).WithComponent("job")
	}
	return nil
}

// bounds resolves the position bounds: explicit bounds must lie inside the
// objective's domain; without them the domain itself is used.
func (r *Request) bounds(obj objectives.Objective) (*optimization.Bounds, error) {
	if len(r.Bounds) == 0 {
		return obj.Bounds(r.Dimensions)
	}

	pairs := r.Bounds
	if len(pairs) == 1 && r.Dimensions > 1 {
		pairs = make([][]float64, r.Dimensions)
		for i := range pairs {
			pairs[i] = r.Bounds[0]
		}
	}
	if len(pairs) != r.Dimensions {
		return nil, fmt.Errorf("got %d bounds for %d dimensions", len(pairs), r.Dimensions)
	}

	low := make([]float64, len(pairs))
	high := make([]float64, len(pairs))
	for i, p := range pairs {
		low[i], high[i] = p[0], p[1]
		if low[i] < obj.Low || high[i] > obj.High {
			return nil, fmt.Errorf("bounds [%v, %v] of dimension %d leave the %s domain [%v, %v]",
				low[i], high[i], i, obj.Name, obj.Low, obj.High)
		}
	}
	return optimization.NewBounds(low, high, r.Dimensions)
}

func (s *ScheduleRequest) build(rng *rand.Rand) (*handlers.OptionsHandler, error) {
	h := &handlers.OptionsHandler{}
	for _, c := range []struct {
		req *CoefficientSchedule
		dst *handlers.Schedule
	}{{s.W, &h.W}, {s.C1, &h.C1}, {s.C2, &h.C2}} {
		if c.req == nil {
			continue
		}
		if math.IsNaN(c.req.End) || math.IsInf(c.req.End, 0) {
			return nil, fmt.Errorf("schedule end must be finite, got %v", c.req.End)
		}
		sched, err := handlers.NewSchedule(c.req.Kind, c.req.End, c.req.Param, rng)
		if err != nil {
			return nil, err
		}
		*c.dst = sched
	}
	return h, nil
}

// NewOptimizer creates the optimizer for the job.
func (j *Job) NewOptimizer() (optimization.Optimizer, error) {
	opt, err := pso.New(j.Variant, j.Config)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request")
	}
	return opt, nil
}
