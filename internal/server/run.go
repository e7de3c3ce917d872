package server

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/copyleftdev/swarmopt/internal/job"
	"github.com/copyleftdev/swarmopt/internal/optimization"
)

// Run statuses as reported to clients.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Run tracks one optimization job. It is safe for concurrent use.
type Run struct {
	ID string

	mu          sync.RWMutex
	status      string
	startTime   time.Time
	endTime     *time.Time
	lastUpdated time.Time
	iterations  int
	optimizer   optimization.Optimizer
	cancel      context.CancelFunc
	result      *optimization.OptimizationResult
	err         error
	done        chan struct{}
}

func newRun(id string, j *job.Job, opt optimization.Optimizer, cancel context.CancelFunc) *Run {
	now := time.Now()
	return &Run{
		ID:          id,
		status:      StatusPending,
		startTime:   now,
		lastUpdated: now,
		iterations:  j.Iterations,
		optimizer:   opt,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
}

// Done is closed once the optimizer has returned.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func terminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

func (r *Run) setRunning() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusPending {
		r.status = StatusRunning
		r.lastUpdated = time.Now()
	}
}

// requestCancel cancels a pending or running job. It reports false when the
// job has already finished.
func (r *Run) requestCancel() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if terminal(r.status) {
		return r.status, false
	}
	r.cancel()
	r.optimizer.Stop()

	now := time.Now()
	r.status = StatusCancelled
	r.endTime = &now
	r.lastUpdated = now
	return r.status, true
}

// finish records the outcome of Optimize.
func (r *Run) finish(res *optimization.OptimizationResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.result = res
	switch {
	case r.status == StatusCancelled:
	case err == nil:
		r.status = StatusCompleted
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		r.status = StatusCancelled
	default:
		r.status = StatusFailed
		r.err = err
	}

	now := time.Now()
	if r.endTime == nil {
		r.endTime = &now
	}
	r.lastUpdated = now
	r.cancel()
	close(r.done)
}

// number encodes non-finite values as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

// SolutionView is the wire form of a solution.
type SolutionView struct {
	Parameters []float64 `json:"parameters"`
	Value      number    `json:"value"`
}

// RunStatus is the wire form of a run.
type RunStatus struct {
	ID          string        `json:"optimization_id"`
	Status      string        `json:"status"`
	State       string        `json:"state"`
	Progress    float64       `json:"progress"`
	Iterations  int           `json:"iterations"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     *time.Time    `json:"end_time,omitempty"`
	LastUpdated time.Time     `json:"last_update"`
	Best        *SolutionView `json:"best_solution,omitempty"`
	CostHistory []number      `json:"cost_history,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Snapshot returns the current status of the run.
func (r *Run) Snapshot() RunStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := RunStatus{
		ID:          r.ID,
		Status:      r.status,
		State:       r.optimizer.State().String(),
		StartTime:   r.startTime,
		EndTime:     r.endTime,
		LastUpdated: r.lastUpdated,
	}
	if r.err != nil {
		st.Error = r.err.Error()
	}

	if h := r.optimizer.GetHistory(); h != nil {
		costs := h.CostHistory()
		st.Iterations = len(costs)
		st.CostHistory = make([]number, len(costs))
		for i, c := range costs {
			st.CostHistory[i] = number(c)
		}
		if r.iterations > 0 {
			st.Progress = math.Min(1, float64(len(costs))/float64(r.iterations))
		}
	}

	best := r.optimizer.GetBestSolution()
	if r.result != nil && r.result.BestSolution != nil {
		best = r.result.BestSolution
	}
	if best != nil && !math.IsInf(best.Value, 0) && !math.IsNaN(best.Value) {
		st.Best = &SolutionView{Parameters: best.Parameters, Value: number(best.Value)}
	}
	return st
}
