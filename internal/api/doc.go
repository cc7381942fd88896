// Package api implements the read-only HTTP REST API.
//
// New(deps) returns an http.Handler that serves:
//
//	GET /api/v1/view     latest presentation view (awaiting state before data)
//	GET /api/v1/health   latest health card plus a summary over the window
//	GET /api/v1/faults   fault-label distribution in the window
//	GET /api/v1/history  raw window entries, oldest first; ?limit=N keeps the newest N
//	GET /api/v1/alerts   firing and recently resolved alerts
//	GET /api/v1/stats    ingestion counters
//
// All endpoints respond with Content-Type: application/json and return 405
// for non-GET methods. JSON types are defined in types.go.
package api
