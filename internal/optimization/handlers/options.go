package handlers

import (
	"math"
	"math/rand"
	"sort"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// Schedule varies one coefficient over a run. Value receives the
// coefficient's configured starting value, the zero-based iteration and the
// total number of iterations.
type Schedule interface {
	Value(start float64, iter, iters int) float64
}

// Constant keeps the starting value.
type Constant struct{}

func (Constant) Value(start float64, _, _ int) float64 { return start }

// Linear moves linearly from the starting value to End.
type Linear struct {
	End float64
}

func (s Linear) Value(start float64, iter, iters int) float64 {
	return start + (s.End-start)*progress(iter, iters)
}

// ExpDecay approaches End exponentially; Rate controls how fast.
type ExpDecay struct {
	End  float64
	Rate float64
}

func (s ExpDecay) Value(start float64, iter, iters int) float64 {
	rate := s.Rate
	if rate <= 0 {
		rate = 5
	}
	return s.End + (start-s.End)*math.Exp(-rate*progress(iter, iters))
}

// Nonlinear follows End + (start-End) * ((iters-iter)/iters)^N.
type Nonlinear struct {
	End float64
	N   float64
}

func (s Nonlinear) Value(start float64, iter, iters int) float64 {
	n := s.N
	if n <= 0 {
		n = 1
	}
	return s.End + (start-s.End)*math.Pow(1-progress(iter, iters), n)
}

// RandomValue draws uniformly between the starting value and End at every
// iteration.
type RandomValue struct {
	End float64
	rng *rand.Rand
}

// NewRandomValue creates a RandomValue schedule drawing from rng.
func NewRandomValue(end float64, rng *rand.Rand) *RandomValue {
	return &RandomValue{End: end, rng: rng}
}

func (s *RandomValue) Value(start float64, _, _ int) float64 {
	return start + (s.End-start)*s.rng.Float64()
}

// OptionsHandler layers schedules over the immutable base options of a run.
// A nil schedule keeps that coefficient constant.
type OptionsHandler struct {
	W  Schedule
	C1 Schedule
	C2 Schedule
}

// Options returns the coefficients to use at iteration iter of iters.
func (h *OptionsHandler) Options(base optimization.Options, iter, iters int) optimization.Options {
	return optimization.Options{
		C1: apply(h.C1, base.C1, iter, iters),
		C2: apply(h.C2, base.C2, iter, iters),
		W:  apply(h.W, base.W, iter, iters),
	}
}

func apply(s Schedule, start float64, iter, iters int) float64 {
	if s == nil {
		return start
	}
	return s.Value(start, iter, iters)
}

func progress(iter, iters int) float64 {
	if iters <= 1 {
		return 1
	}
	p := float64(iter) / float64(iters-1)
	return math.Max(0, math.Min(p, 1))
}

// NewSchedule builds a schedule by name. end is the target value; param is
// the decay rate for exp_decay and the exponent for nonlinear.
func NewSchedule(name string, end, param float64, rng *rand.Rand) (Schedule, error) {
	switch name {
	case "", "constant":
		return Constant{}, nil
	case "linear":
		return Linear{End: end}, nil
	case "exp_decay":
		return ExpDecay{End: end, Rate: param}, nil
	case "nonlinear":
		return Nonlinear{End: end, N: param}, nil
	case "random":
		if rng == nil {
			return nil, optimization.NewConfigError("random schedule needs a random source").WithComponent("handlers")
		}
		return NewRandomValue(end, rng), nil
	default:
		return nil, optimization.NewConfigError("unknown schedule %q, expected one of %v", name, ScheduleNames()).
			WithComponent("handlers")
	}
}

// ScheduleNames lists the schedule names accepted by NewSchedule.
func ScheduleNames() []string {
	names := []string{"constant", "linear", "exp_decay", "nonlinear", "random"}
	sort.Strings(names)
	return names
}
