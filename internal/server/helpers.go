package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lox/uboat/internal/board"
	"github.com/lox/uboat/internal/randutil"
	"github.com/lox/uboat/internal/sampler"
)

// WaitForHealthy polls /health until it answers 200 OK or ctx is cancelled.
// baseURL is the server root, e.g. "http://localhost:8000".
func WaitForHealthy(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: time.Second}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		if resp, err := client.Do(req); err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		} else {
			w.Header().Add("Vary", "Origin")
		}
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusFor maps simulation errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, sampler.ErrInvalidArgument), errors.Is(err, board.ErrInvalidIndex):
		return http.StatusBadRequest
	case errors.Is(err, ErrBusy), errors.Is(err, randutil.ErrRandomSourceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorCode names an error for websocket clients
func errorCode(err error) string {
	switch {
	case errors.Is(err, board.ErrInvalidIndex):
		return "invalid_index"
	case errors.Is(err, sampler.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, randutil.ErrRandomSourceUnavailable):
		return "random_source_unavailable"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	}
	return "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Client may have gone away
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"detail": err.Error()})
}
