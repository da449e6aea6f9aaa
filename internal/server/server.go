// Package server exposes the simulator over HTTP and websockets.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/semaphore"

	"github.com/lox/uboat/internal/runid"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
)

const apiVersion = "1.0.0"

// ErrBusy is returned when every simulation slot is taken.
var ErrBusy = errors.New("server busy")

// Server serves the simulation API
type Server struct {
	config      *ServerConfig
	logger      *log.Logger
	clock       quartz.Clock
	upgrader    websocket.Upgrader
	slots       *semaphore.Weighted
	ids         *runid.Generator
	connections map[*Connection]bool
	mu          sync.RWMutex
}

// NewServer creates a server for an already validated configuration
func NewServer(config *ServerConfig, logger *log.Logger, clock quartz.Clock) *Server {
	return &Server{
		config: config,
		logger: logger.WithPrefix("server"),
		clock:  clock,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Matches the allow-all CORS policy on the HTTP routes
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		slots:       semaphore.NewWeighted(int64(config.Server.MaxConcurrent)),
		ids:         runid.NewGenerator(clock, nil),
		connections: make(map[*Connection]bool),
	}
}

// Handler returns the routed handler with CORS applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)
	mux.HandleFunc("GET /api/theoretical", s.handleTheoretical)
	mux.HandleFunc("GET /api/chart", s.handleChart)
	mux.HandleFunc("/ws", s.handleWebSocket)
	return withCORS(mux)
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.GetServerAddress(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("Shutdown did not complete", "error", err)
		}
	}()

	s.logger.Info("Starting server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop closes every websocket connection, cancelling their batches
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.connections {
		_ = conn.Close() // Ignore close errors during shutdown
	}
}

func (s *Server) register(conn *Connection) {
	s.mu.Lock()
	s.connections[conn] = true
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)
}

func (s *Server) unregister(conn *Connection) {
	s.mu.Lock()
	delete(s.connections, conn)
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client disconnected", "total", total)
}

// ConnectionCount returns the number of open websocket connections
func (s *Server) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.connections)
}

// newSimulator fills omitted request fields from the configured defaults.
func (s *Server) newSimulator(req SimulateRequest, progress func(done, total int)) (*simulator.Simulator, int, error) {
	defaults := s.config.Simulation

	runs := defaults.Runs
	if req.Runs != nil {
		runs = *req.Runs
	}
	if runs < 1 || runs > s.config.Server.MaxRuns {
		return nil, 0, fmt.Errorf("%w: runs must be between 1 and %d, got %d", sampler.ErrInvalidArgument, s.config.Server.MaxRuns, runs)
	}

	policyName := req.Policy
	if policyName == "" {
		policyName = defaults.Policy
	}
	policy, err := sampler.ParsePolicy(policyName)
	if err != nil {
		return nil, 0, err
	}

	draws := defaults.Draws
	if req.Draws != nil {
		draws = *req.Draws
	}
	if _, err := sampler.New(policy, draws); err != nil {
		return nil, 0, err
	}
	exact := defaults.Exact
	if req.Exact != nil {
		exact = *req.Exact
	}

	sim, err := simulator.New(simulator.Config{
		Policy:     policy,
		Draws:      draws,
		Workers:    s.config.Server.Workers,
		Seed:       req.Seed,
		MaxTrials:  s.config.Server.MaxRuns,
		ExactTable: exact,
		Logger:     s.logger,
		Progress:   progress,
	})
	if err != nil {
		return nil, 0, err
	}
	return sim, runs, nil
}

// run executes one batch inside a simulation slot.
func (s *Server) run(ctx context.Context, id string, sim *simulator.Simulator, runs int) (SimulateResponse, error) {
	if !s.slots.TryAcquire(1) {
		return SimulateResponse{}, ErrBusy
	}
	defer s.slots.Release(1)

	start := s.clock.Now()
	report, err := sim.CompareBatch(ctx, runs)
	if err != nil {
		return SimulateResponse{}, err
	}
	report = report.Strip()

	return SimulateResponse{
		RunID:      id,
		Policy:     report.Policy,
		Draws:      report.Draws,
		Seed:       sim.Config().Seed,
		Statistics: report.Statistics,
		Comparison: report.Comparison,
		ElapsedMS:  s.clock.Since(start).Milliseconds(),
	}, nil
}
