package pso

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// zeros counts the unset bits of each row.
func zeros(x *mat.Dense) ([]float64, error) {
	n, _ := x.Dims()
	out := make([]float64, n)
	for i := range out {
		for _, v := range x.RawRowView(i) {
			if v == 0 {
				out[i]++
			}
		}
	}
	return out, nil
}

func TestLocalBestSphere(t *testing.T) {
	cfg := seeded(20, 2)
	cfg.Topology = TopologyConfig{K: 3, P: 2}

	opt, err := NewLocalBest(cfg)
	require.NoError(t, err)
	res, err := opt.Optimize(context.Background(), sphere, 200)
	require.NoError(t, err)

	assert.Less(t, res.BestSolution.Value, 1e-2)
	means := opt.GetHistory().MeanNeighborHistory()
	costs := opt.GetHistory().CostHistory()
	for i := range means {
		assert.GreaterOrEqual(t, means[i], costs[i], "a neighbourhood best is never better than the swarm best")
	}
}

func TestLocalBestStaticRing(t *testing.T) {
	cfg := seeded(10, 2)
	cfg.Topology = TopologyConfig{K: 2, P: 1, Static: true}

	opt, err := NewLocalBest(cfg)
	require.NoError(t, err)
	_, err = opt.Optimize(context.Background(), sphere, 20)
	require.NoError(t, err)
	require.NoError(t, opt.Reset())
	_, err = opt.Optimize(context.Background(), sphere, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, opt.GetHistory().Len())
}

func TestLocalBestRejectsTopology(t *testing.T) {
	tests := []struct {
		name string
		topo TopologyConfig
	}{
		{name: "k zero", topo: TopologyConfig{K: 0, P: 2}},
		{name: "k above swarm size", topo: TopologyConfig{K: 11, P: 2}},
		{name: "p zero", topo: TopologyConfig{K: 3, P: 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := seeded(10, 2)
			cfg.Topology = tt.topo
			_, err := NewLocalBest(cfg)
			assert.True(t, optimization.IsConfigError(err))

			e, ok := optimization.IsOptimizationError(err)
			require.True(t, ok)
			assert.Equal(t, "NewLocalBest", e.Op)
		})
	}
}

func TestLocalBestWithFullRingMatchesGlobalBest(t *testing.T) {
	cfg := seeded(6, 2)
	cfg.Topology = TopologyConfig{K: 6, P: 2}

	local, err := NewLocalBest(cfg)
	require.NoError(t, err)
	global, err := NewGlobalBest(cfg)
	require.NoError(t, err)

	_, err = local.Optimize(context.Background(), sphere, 15)
	require.NoError(t, err)
	_, err = global.Optimize(context.Background(), sphere, 15)
	require.NoError(t, err)

	assert.Equal(t, global.GetHistory().CostHistory(), local.GetHistory().CostHistory())
}

func TestBinaryPositionsStayBinary(t *testing.T) {
	cfg := seeded(10, 8)
	cfg.Topology = TopologyConfig{K: 3, P: 1}

	opt, err := NewBinary(cfg)
	require.NoError(t, err)
	res, err := opt.Optimize(context.Background(), zeros, 40)
	require.NoError(t, err)

	for it, pos := range opt.GetHistory().PosHistory() {
		n, d := pos.Dims()
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				v := pos.At(i, j)
				assert.True(t, v == 0 || v == 1, "iteration %d particle %d has %v", it, i, v)
			}
		}
	}
	for _, v := range res.BestSolution.Parameters {
		assert.True(t, v == 0 || v == 1)
	}
	costs := opt.GetHistory().CostHistory()
	assert.LessOrEqual(t, res.BestSolution.Value, costs[0])
}

func TestBinaryRejectsBoundsAndNonBinaryInit(t *testing.T) {
	cfg := seeded(4, 2)
	b, err := optimization.ScalarBounds(0, 1, 2)
	require.NoError(t, err)
	cfg.Bounds = b
	_, err = NewBinary(cfg)
	assert.True(t, optimization.IsConfigError(err))

	cfg = seeded(4, 2)
	cfg.InitPos = mat.NewDense(4, 2, []float64{0, 1, 1, 0, 0, 0, 0.5, 1})
	_, err = NewBinary(cfg)
	assert.True(t, optimization.IsConfigError(err))
}
