package api

import (
	"time"

	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/internal/ingest"
	"github.com/faulttwin/faulttwin/internal/present"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	State      string             `json:"state"`
	Health     present.HealthCard `json:"health"`
	Fault      present.FaultCard  `json:"fault"`
	Summary    health.Summary     `json:"summary"`
	Capacity   int                `json:"capacity"`
	AlertCount int                `json:"alert_count"`
}

// FaultsResponse is the payload for GET /api/v1/faults.
type FaultsResponse struct {
	Count  int                 `json:"count"`
	Faults []health.FaultCount `json:"faults"`
}

// HistoryResponse is the payload for GET /api/v1/history.
type HistoryResponse struct {
	Capacity int                  `json:"capacity"`
	Count    int                  `json:"count"`
	Entries  []types.HistoryEntry `json:"entries"`
}

// StatsResponse is the payload for GET /api/v1/stats.
type StatsResponse struct {
	ingest.Stats
	Rejected       uint64    `json:"rejected"`
	HistoryEntries int       `json:"history_entries"`
	Capacity       int       `json:"capacity"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
