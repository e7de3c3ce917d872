package optimization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestHistoryAppendCopies(t *testing.T) {
	h := NewHistory(2)
	pos := mat.NewDense(2, 1, []float64{1, 2})
	vel := mat.NewDense(2, 1, []float64{0.1, 0.2})

	h.Append(IterationRecord{BestCost: 3, MeanPbestCost: 4, MeanNeighborCost: 3, Position: pos, Velocity: vel})
	pos.Set(0, 0, 100)
	vel.Set(0, 0, 100)
	h.Append(IterationRecord{BestCost: 1, MeanPbestCost: 2, MeanNeighborCost: 1, Position: pos, Velocity: vel})

	assert.Equal(t, 2, h.Len())
	assert.Equal(t, []float64{3, 1}, h.CostHistory())
	assert.Equal(t, []float64{4, 2}, h.MeanPbestHistory())
	assert.Equal(t, []float64{3, 1}, h.MeanNeighborHistory())

	positions := h.PosHistory()
	assert.Equal(t, 1.0, positions[0].At(0, 0), "recorded positions must not alias the swarm")
	assert.Equal(t, 100.0, positions[1].At(0, 0))
	assert.Equal(t, 0.1, h.VelocityHistory()[0].At(0, 0))
}

func TestNewHistoryIsEmpty(t *testing.T) {
	h := NewHistory(-1)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.CostHistory())
	assert.Empty(t, h.PosHistory())
}
