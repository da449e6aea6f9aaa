package server

import (
	"encoding/json"
	"time"

	"github.com/lox/uboat/internal/compare"
	"github.com/lox/uboat/internal/sampler"
	"github.com/lox/uboat/internal/statistics"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message stamped with the given time
func NewMessage(messageType MessageType, data any, now time.Time) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: now,
	}, nil
}

// SimulateRequest is the body of POST /api/simulate and the data of a
// websocket simulate message. Omitted fields fall back to the configured
// defaults; an explicit zero runs or draws is rejected.
type SimulateRequest struct {
	Runs   *int   `json:"runs,omitempty"`
	Policy string `json:"policy,omitempty"`
	Draws  *int   `json:"draws,omitempty"`
	Seed   int64  `json:"seed,omitempty"`
	Exact  *bool  `json:"exact,omitempty"`
}

// SimulateResponse mirrors a batch report plus timing.
type SimulateResponse struct {
	RunID      string             `json:"run_id"`
	Policy     sampler.Policy     `json:"policy"`
	Draws      int                `json:"draws"`
	Seed       int64              `json:"seed"`
	Statistics statistics.Summary `json:"statistics"`
	Comparison compare.Comparison `json:"comparison"`
	ElapsedMS  int64              `json:"elapsed_ms"`
}

// TheoreticalResponse is returned by GET /api/theoretical.
type TheoreticalResponse struct {
	Policy        sampler.Policy  `json:"policy"`
	Draws         int             `json:"draws"`
	Exact         bool            `json:"exact"`
	Probabilities map[int]float64 `json:"probabilities"`
	Mean          float64         `json:"mean"`
}

type ProgressData struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AcceptedData struct {
	RunID  string         `json:"run_id"`
	Runs   int            `json:"runs"`
	Policy sampler.Policy `json:"policy"`
	Draws  int            `json:"draws"`
	Seed   int64          `json:"seed"`
}
