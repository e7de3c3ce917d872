package swarm

import "gonum.org/v1/gonum/mat"

type shape struct{ r, c int }

// MatrixPool provides reusable dense matrices keyed by shape to reduce
// per-iteration allocations. It is not safe for concurrent use.
type MatrixPool struct {
	dense map[shape][]*mat.Dense
}

// NewMatrixPool creates a new MatrixPool
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		dense: make(map[shape][]*mat.Dense),
	}
}

// GetDense returns an r x c matrix from the pool or creates a new one.
// The contents of a reused matrix are unspecified.
func (p *MatrixPool) GetDense(r, c int) *mat.Dense {
	key := shape{r, c}
	if free := p.dense[key]; len(free) > 0 {
		m := free[len(free)-1]
		p.dense[key] = free[:len(free)-1]
		return m
	}
	return mat.NewDense(r, c, nil)
}

// PutDense returns a matrix to the pool
func (p *MatrixPool) PutDense(m *mat.Dense) {
	if m == nil {
		return
	}
	r, c := m.Dims()
	key := shape{r, c}
	p.dense[key] = append(p.dense[key], m)
}

// Len returns the number of pooled matrices.
func (p *MatrixPool) Len() int {
	n := 0
	for _, free := range p.dense {
		n += len(free)
	}
	return n
}
