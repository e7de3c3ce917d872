package swarm

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// GeneratePositions draws an n x d position matrix. With bounds the draw is
// uniform inside them; without bounds it is uniform in [0, center) per
// coordinate. A non-nil initPos is validated and copied instead.
func GeneratePositions(rng *rand.Rand, n, d int, bounds *optimization.Bounds, center float64, initPos *mat.Dense) (*mat.Dense, error) {
	if n <= 0 || d <= 0 {
		return nil, optimization.NewConfigError("swarm size must be positive, got %dx%d", n, d).WithComponent("swarm")
	}

	if initPos != nil {
		if err := checkShape(initPos, n, d); err != nil {
			return nil, err
		}
		if bounds != nil && !bounds.Contains(initPos) {
			return nil, optimization.NewConfigError("initial positions must lie within bounds").WithComponent("swarm")
		}
		return mat.DenseCopyOf(initPos), nil
	}

	pos := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := pos.RawRowView(i)
		for j := range row {
			if bounds != nil {
				row[j] = bounds.Low[j] + rng.Float64()*bounds.Width(j)
			} else {
				row[j] = center * rng.Float64()
			}
		}
	}
	return pos, nil
}

// GenerateDiscrete draws an n x d matrix of 0/1 values. A non-nil initPos
// must contain only zeros and ones.
func GenerateDiscrete(rng *rand.Rand, n, d int, initPos *mat.Dense) (*mat.Dense, error) {
	if n <= 0 || d <= 0 {
		return nil, optimization.NewConfigError("swarm size must be positive, got %dx%d", n, d).WithComponent("swarm")
	}

	if initPos != nil {
		if err := checkShape(initPos, n, d); err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			for j := 0; j < d; j++ {
				if v := initPos.At(i, j); v != 0 && v != 1 {
					return nil, optimization.NewConfigError("binary initial position (%d,%d) is %v, want 0 or 1", i, j, v).WithComponent("swarm")
				}
			}
		}
		return mat.DenseCopyOf(initPos), nil
	}

	pos := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := pos.RawRowView(i)
		for j := range row {
			row[j] = float64(rng.Intn(2))
		}
	}
	return pos, nil
}

// GenerateVelocity draws an n x d velocity matrix, uniform inside the clamp
// when one is configured and uniform in [0, 1) otherwise.
func GenerateVelocity(rng *rand.Rand, n, d int, clamp *optimization.Clamp) (*mat.Dense, error) {
	if n <= 0 || d <= 0 {
		return nil, optimization.NewConfigError("swarm size must be positive, got %dx%d", n, d).WithComponent("swarm")
	}

	vel := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := vel.RawRowView(i)
		for j := range row {
			if clamp != nil {
				row[j] = clamp.Min[j] + rng.Float64()*(clamp.Max[j]-clamp.Min[j])
			} else {
				row[j] = rng.Float64()
			}
		}
	}
	return vel, nil
}

func checkShape(m mat.Matrix, n, d int) error {
	r, c := m.Dims()
	if r != n || c != d {
		return optimization.NewConfigError("initial positions are %dx%d, want %dx%d", r, c, n, d).WithComponent("swarm")
	}
	return nil
}
