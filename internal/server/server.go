package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/copyleftdev/swarmopt/internal/config"
	apperrors "github.com/copyleftdev/swarmopt/internal/errors"
	"github.com/copyleftdev/swarmopt/internal/job"
	"github.com/copyleftdev/swarmopt/internal/logging"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "swarmopt_server_runs_started_total",
		Help: "Optimization jobs accepted by the server.",
	})
	runsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_server_runs_rejected_total",
		Help: "Optimization jobs refused by the server, by error kind.",
	}, []string{"kind"})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_server_runs_finished_total",
		Help: "Optimization jobs that reached a terminal status.",
	}, []string{"status"})
	rpcRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swarmopt_rpc_requests_total",
		Help: "JSON-RPC requests by method and result code.",
	}, []string{"method", "code"})
)

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It manages optimization jobs and provides endpoints to start, monitor, and cancel them.
type Server struct {
	cfg    *config.Config
	logger Logger
	limits job.Limits

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	slots  chan struct{}

	mu     sync.RWMutex // protects runs and closed
	runs   map[string]*Run
	closed bool
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	o := cfg.Optimization
	slots := o.MaxConcurrentRuns
	if slots < 1 {
		slots = 1
	}
	return &Server{
		cfg:    cfg,
		logger: logger,
		limits: job.Limits{
			MaxParticles:      o.MaxParticles,
			MaxDimensions:     o.MaxDimensions,
			MaxIterations:     o.MaxIterations,
			DefaultIterations: o.DefaultIterations,
			Workers:           o.WorkerCount,
		},
		ctx:    ctx,
		cancel: cancel,
		slots:  make(chan struct{}, slots),
		runs:   make(map[string]*Run),
	}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// Start validates req and launches it in the background.
func (s *Server) Start(req *job.Request) (*Run, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, s.reject(apperrors.New(apperrors.KindUnavailable, "server is shutting down"))
	}

	id := uuid.NewString()
	runLogger := s.logger.WithFields(map[string]interface{}{"optimization_id": id})

	j, err := req.Build(s.limits, logging.NewZapLogger(runLogger))
	if err != nil {
		return nil, s.reject(err)
	}
	opt, err := j.NewOptimizer()
	if err != nil {
		return nil, s.reject(err)
	}

	select {
	case s.slots <- struct{}{}:
	default:
		return nil, s.reject(apperrors.Errorf(apperrors.KindUnavailable,
			"too many concurrent optimizations, the limit is %d", cap(s.slots)))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		<-s.slots
		return nil, s.reject(apperrors.New(apperrors.KindUnavailable, "server is shutting down"))
	}
	ctx, cancel := context.WithCancel(s.ctx)
	run := newRun(id, j, opt, cancel)
	s.runs[id] = run
	s.wg.Add(1)
	s.mu.Unlock()

	runsStarted.Inc()
	runLogger.Info("Optimization started", map[string]interface{}{
		"objective":  j.Objective.Name,
		"variant":    j.Variant,
		"particles":  j.Config.Particles,
		"dimensions": j.Config.Dimensions,
		"iterations": j.Iterations,
	})

	go s.execute(ctx, run, j, runLogger)
	return run, nil
}

func (s *Server) reject(err error) error {
	runsRejected.WithLabelValues(apperrors.KindOf(err).String()).Inc()
	return err
}

// execute runs the optimization in its own goroutine.
func (s *Server) execute(ctx context.Context, run *Run, j *job.Job, logger *logging.Logger) {
	defer s.wg.Done()
	defer func() { <-s.slots }()

	run.setRunning()
	res, err := run.optimizer.Optimize(ctx, j.Objective.Func, j.Iterations)
	run.finish(res, err)
	if err != nil {
		logger = logger.WithError(err)
	}

	st := run.Snapshot()
	runsFinished.WithLabelValues(st.Status).Inc()
	fields := map[string]interface{}{
		"status":     st.Status,
		"state":      st.State,
		"iterations": st.Iterations,
	}
	if st.Best != nil {
		fields["best_cost"] = float64(st.Best.Value)
	}
	if st.Status == StatusFailed {
		logger.Error("Optimization failed", fields)
		return
	}
	logger.Info("Optimization finished", fields)
}

// Lookup returns the run registered under id.
func (s *Server) Lookup(id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, apperrors.Errorf(apperrors.KindNotFound, "optimization %q not found", id).WithComponent("server")
	}
	return run, nil
}

// Cancel stops a pending or running job.
func (s *Server) Cancel(id string) error {
	run, err := s.Lookup(id)
	if err != nil {
		return err
	}
	status, ok := run.requestCancel()
	if !ok {
		return apperrors.Errorf(apperrors.KindConflict, "cannot cancel optimization with status: %s", status).
			WithOperation("cancel").
			WithComponent("server")
	}
	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// Close cancels every job and waits for them to return.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

// handleOptimize handles the HTTP POST /optimize endpoint for starting a new optimization
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req job.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		apperrors.WriteJSON(w, apperrors.Wrap(err, apperrors.KindInvalid, "invalid request body"))
		return
	}

	run, err := s.Start(&req)
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"optimization_id": run.ID,
		"status":          StatusPending,
	})
}

// handleStatus handles the HTTP GET /status/{id} endpoint for checking optimization status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	run, err := s.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run.Snapshot())
}

// handleCancel handles the HTTP DELETE /optimization/{id} endpoint for canceling an optimization
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.Cancel(chi.URLParam(r, "id")); err != nil {
		apperrors.WriteJSON(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
