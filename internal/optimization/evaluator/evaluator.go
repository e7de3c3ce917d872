// Package evaluator computes objective values for every particle of a swarm,
// either in one call or in row blocks on a bounded set of goroutines.
package evaluator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/copyleftdev/swarmopt/internal/optimization"
	"github.com/copyleftdev/swarmopt/internal/optimization/swarm"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_evaluations_total",
		Help: "Objective evaluations by evaluator mode and result",
	}, []string{"mode", "result"})

	evaluationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swarmopt_evaluation_duration_seconds",
		Help:    "Wall time of one swarm evaluation",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 12),
	}, []string{"mode"})
)

// Evaluator returns one cost per particle, in particle order, for the
// swarm's current positions. Errors from the objective are returned
// unmodified.
type Evaluator interface {
	Evaluate(s *swarm.Swarm, f optimization.ObjectiveFunction) ([]float64, error)
}

// New returns a Parallel evaluator with the given worker count, or a
// Sequential one when workers <= 0.
func New(workers int) Evaluator {
	if workers <= 0 {
		return Sequential{}
	}
	return NewParallel(workers)
}

// Sequential evaluates the whole swarm with a single objective call.
type Sequential struct{}

func (Sequential) Evaluate(s *swarm.Swarm, f optimization.ObjectiveFunction) ([]float64, error) {
	start := time.Now()
	n, _ := s.Dims()

	cost, err := f(mat.DenseCopyOf(s.Position))
	if err == nil {
		err = checkLen(cost, n)
	}
	observe("sequential", start, err)
	return cost, err
}

// Parallel splits the swarm into contiguous row blocks and evaluates each
// block on its own goroutine. The call returns after every block finished.
type Parallel struct {
	Workers int

	mu   sync.Mutex
	pool *swarm.MatrixPool
}

// NewParallel creates a Parallel evaluator running at most workers blocks
// at once.
func NewParallel(workers int) *Parallel {
	if workers < 1 {
		workers = 1
	}
	return &Parallel{Workers: workers, pool: swarm.NewMatrixPool()}
}

func (p *Parallel) Evaluate(s *swarm.Swarm, f optimization.ObjectiveFunction) ([]float64, error) {
	start := time.Now()
	n, d := s.Dims()
	blocks := Split(n, p.Workers)
	limit := p.Workers
	if limit < 1 {
		limit = 1
	}

	inputs := p.copyBlocks(s.Position, blocks, d)
	defer p.release(inputs)

	cost := make([]float64, n)
	var g errgroup.Group
	g.SetLimit(limit)
	for k, b := range blocks {
		k, b := k, b
		g.Go(func() error {
			out, err := f(inputs[k])
			if err != nil {
				return err
			}
			if err := checkLen(out, b.Len()); err != nil {
				return err
			}
			copy(cost[b.Start:b.End], out)
			return nil
		})
	}

	err := g.Wait()
	observe("parallel", start, err)
	if err != nil {
		return nil, err
	}
	return cost, nil
}

func (p *Parallel) copyBlocks(x *mat.Dense, blocks []Block, d int) []*mat.Dense {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pool == nil {
		p.pool = swarm.NewMatrixPool()
	}

	inputs := make([]*mat.Dense, len(blocks))
	for k, b := range blocks {
		m := p.pool.GetDense(b.Len(), d)
		m.Copy(x.Slice(b.Start, b.End, 0, d))
		inputs[k] = m
	}
	return inputs
}

func (p *Parallel) release(inputs []*mat.Dense) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range inputs {
		p.pool.PutDense(m)
	}
}

// Block is the half-open row range [Start, End).
type Block struct {
	Start, End int
}

// Len returns the number of rows in the block.
func (b Block) Len() int { return b.End - b.Start }

// Split partitions n rows into min(n, parts) contiguous blocks. The first
// n mod parts blocks hold one extra row.
func Split(n, parts int) []Block {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}

	size, extra := n/parts, n%parts
	blocks := make([]Block, 0, parts)
	start := 0
	for k := 0; k < parts; k++ {
		end := start + size
		if k < extra {
			end++
		}
		blocks = append(blocks, Block{Start: start, End: end})
		start = end
	}
	return blocks
}

func checkLen(cost []float64, want int) error {
	if len(cost) != want {
		return optimization.NewShapeError("objective returned %d values for %d particles", len(cost), want).
			WithComponent("evaluator")
	}
	return nil
}

func observe(mode string, start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	evaluationsTotal.WithLabelValues(mode, result).Inc()
	evaluationDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}
