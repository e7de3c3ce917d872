package handlers

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

func TestSchedules(t *testing.T) {
	const iters = 11

	tests := []struct {
		name  string
		s     Schedule
		first float64
		mid   float64
		last  float64
	}{
		{name: "constant", s: Constant{}, first: 0.9, mid: 0.9, last: 0.9},
		{name: "linear", s: Linear{End: 0.4}, first: 0.9, mid: 0.65, last: 0.4},
		{name: "nonlinear n=1", s: Nonlinear{End: 0.4, N: 1}, first: 0.9, mid: 0.65, last: 0.4},
		{name: "nonlinear n=2", s: Nonlinear{End: 0.4, N: 2}, first: 0.9, mid: 0.525, last: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.first, tt.s.Value(0.9, 0, iters), 1e-12)
			assert.InDelta(t, tt.mid, tt.s.Value(0.9, 5, iters), 1e-12)
			assert.InDelta(t, tt.last, tt.s.Value(0.9, 10, iters), 1e-12)
		})
	}
}

func TestExpDecayIsMonotone(t *testing.T) {
	s := ExpDecay{End: 0.4, Rate: 3}
	prev := s.Value(0.9, 0, 50)
	assert.InDelta(t, 0.9, prev, 1e-12)
	for i := 1; i < 50; i++ {
		v := s.Value(0.9, i, 50)
		assert.Less(t, v, prev)
		assert.Greater(t, v, 0.4)
		prev = v
	}
}

func TestRandomValueStaysInRange(t *testing.T) {
	s := NewRandomValue(0.4, rand.New(rand.NewSource(3)))
	for i := 0; i < 100; i++ {
		v := s.Value(0.9, i, 100)
		assert.GreaterOrEqual(t, v, 0.4)
		assert.LessOrEqual(t, v, 0.9)
	}
}

func TestOptionsHandler(t *testing.T) {
	h := &OptionsHandler{W: Linear{End: 0.4}}
	base := optimization.Options{C1: 0.5, C2: 0.3, W: 0.9}

	got := h.Options(base, 10, 11)
	assert.InDelta(t, 0.4, got.W, 1e-12)
	assert.Equal(t, 0.5, got.C1, "nil schedules keep the coefficient")
	assert.Equal(t, 0.3, got.C2)
	assert.Equal(t, 0.9, base.W, "base options are not modified")
}

func TestNewSchedule(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for _, name := range ScheduleNames() {
		s, err := NewSchedule(name, 0.4, 2, rng)
		require.NoError(t, err, name)
		assert.NotNil(t, s)
	}
	_, err := NewSchedule("cosine", 0, 0, rng)
	assert.True(t, optimization.IsConfigError(err))
	_, err = NewSchedule("random", 0, 0, nil)
	assert.Error(t, err)
}
