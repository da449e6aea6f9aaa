package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lox/uboat/internal/chart"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/simulator"
	"github.com/lox/uboat/internal/theory"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "U-Boat Game API", "version": apiVersion})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK") // Ignore write errors for health check
}

func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req SimulateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	sim, runs, err := s.newSimulator(req, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	id, err := s.ids.New()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp, err := s.run(r.Context(), id, sim, runs)
	if err != nil {
		s.logger.Warn("Simulation failed", "run_id", id, "runs", runs, "error", err)
		writeError(w, statusFor(err), err)
		return
	}

	s.logger.Info("Simulation complete", "run_id", id, "runs", runs, "policy", resp.Policy, "draws", resp.Draws, "mean", resp.Statistics.Mean, "elapsed_ms", resp.ElapsedMS)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTheoretical(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	policy, err := sampler.ParsePolicy(req.Policy)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	exact, draws := *req.Exact, *req.Draws
	var table theory.Distribution
	if exact {
		table, err = theory.Exact(policy, draws)
	} else {
		table, err = simulator.Theoretical(policy, draws)
	}
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	writeJSON(w, http.StatusOK, TheoreticalResponse{
		Policy:        policy,
		Draws:         draws,
		Exact:         exact,
		Probabilities: table,
		Mean:          table.Mean(),
	})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseQuery(r.URL.Query())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	sim, runs, err := s.newSimulator(req, nil)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	id, err := s.ids.New()
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	resp, err := s.run(r.Context(), id, sim, runs)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	report := simulator.Report{
		Policy:     resp.Policy,
		Draws:      resp.Draws,
		Statistics: resp.Statistics,
		Comparison: resp.Comparison,
	}
	if err := chart.Render(w, report); err != nil {
		s.logger.Error("Failed to render chart", "error", err)
	}
}

// handleWebSocket handles WebSocket upgrade requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s)
	s.register(client)
	client.Start()

	go func() {
		<-client.ctx.Done()
		s.unregister(client)
	}()
}

// parseQuery reads runs, policy, draws, seed and exact from a query string,
// filling gaps from the configured defaults.
func (s *Server) parseQuery(q url.Values) (SimulateRequest, error) {
	defaults := s.config.Simulation
	req := SimulateRequest{Policy: q.Get("policy")}
	if req.Policy == "" {
		req.Policy = defaults.Policy
	}

	ints := []struct {
		name string
		dst  **int
		def  int
	}{
		{"runs", &req.Runs, defaults.Runs},
		{"draws", &req.Draws, defaults.Draws},
	}
	for _, f := range ints {
		v := f.def
		if raw := q.Get(f.name); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return SimulateRequest{}, fmt.Errorf("%w: %s %q is not a number", sampler.ErrInvalidArgument, f.name, raw)
			}
			v = parsed
		}
		*f.dst = &v
	}

	if raw := q.Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return SimulateRequest{}, fmt.Errorf("%w: seed %q is not a number", sampler.ErrInvalidArgument, raw)
		}
		req.Seed = seed
	}

	exact := defaults.Exact
	if raw := q.Get("exact"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return SimulateRequest{}, fmt.Errorf("%w: exact %q is not a boolean", sampler.ErrInvalidArgument, raw)
		}
		exact = v
	}
	req.Exact = &exact

	return req, nil
}
