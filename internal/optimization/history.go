package optimization

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// IterationRecord is the snapshot appended after every completed iteration.
type IterationRecord struct {
	BestCost         float64
	MeanPbestCost    float64
	MeanNeighborCost float64
	Position         *mat.Dense
	Velocity         *mat.Dense
}

// History is the append-only sequence of iteration records of one run.
// It is owned by a single optimizer and replaced on reset. Readers may
// poll it while the owner appends.
type History struct {
	mu      sync.RWMutex
	records []IterationRecord
}

// NewHistory creates an empty history with room for capacity records.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{records: make([]IterationRecord, 0, capacity)}
}

// Append stores a record. Matrices are copied so later swarm updates
// cannot alter what was recorded.
func (h *History) Append(rec IterationRecord) {
	if rec.Position != nil {
		rec.Position = mat.DenseCopyOf(rec.Position)
	}
	if rec.Velocity != nil {
		rec.Velocity = mat.DenseCopyOf(rec.Velocity)
	}
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
}

// Len returns the number of recorded iterations.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}

// Record returns the i-th record. Recorded matrices must not be modified.
func (h *History) Record(i int) IterationRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.records[i]
}

// CostHistory returns the best cost after each iteration.
func (h *History) CostHistory() []float64 {
	return h.floats(func(r IterationRecord) float64 { return r.BestCost })
}

// MeanPbestHistory returns the mean personal-best cost after each iteration.
func (h *History) MeanPbestHistory() []float64 {
	return h.floats(func(r IterationRecord) float64 { return r.MeanPbestCost })
}

// MeanNeighborHistory returns the mean neighbourhood-best cost after each iteration.
func (h *History) MeanNeighborHistory() []float64 {
	return h.floats(func(r IterationRecord) float64 { return r.MeanNeighborCost })
}

// PosHistory returns the evaluated position matrix of each iteration.
func (h *History) PosHistory() []*mat.Dense {
	return h.matrices(func(r IterationRecord) *mat.Dense { return r.Position })
}

// VelocityHistory returns the velocity matrix of each iteration.
func (h *History) VelocityHistory() []*mat.Dense {
	return h.matrices(func(r IterationRecord) *mat.Dense { return r.Velocity })
}

func (h *History) floats(field func(IterationRecord) float64) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]float64, len(h.records))
	for i, r := range h.records {
		out[i] = field(r)
	}
	return out
}

func (h *History) matrices(field func(IterationRecord) *mat.Dense) []*mat.Dense {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*mat.Dense, len(h.records))
	for i, r := range h.records {
		out[i] = field(r)
	}
	return out
}
