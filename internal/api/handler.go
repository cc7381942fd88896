package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/faulttwin/faulttwin/internal/alerts"
	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/internal/ingest"
	"github.com/faulttwin/faulttwin/internal/present"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// Viewer returns the most recent presentation view.
type Viewer interface {
	Latest() *present.View
}

// Window is read access to the rolling history.
type Window interface {
	Snapshot() []types.HistoryEntry
	Cap() int
}

// AlertLister returns active and recently resolved alerts.
type AlertLister interface {
	Active() []*alerts.Alert
}

// StatsSource returns the ingestion counters.
type StatsSource interface {
	Stats() ingest.Stats
}

// Deps are the read models behind the API. Alerts and Stats may be nil.
type Deps struct {
	Viewer Viewer
	Window Window
	Alerts AlertLister
	Stats  StatsSource
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
	now  func() time.Time
}

// New creates a Handler and registers all routes.
func New(d Deps) http.Handler {
	h := &Handler{deps: d, mux: http.NewServeMux(), now: time.Now}

	h.mux.HandleFunc("/api/v1/view", h.view)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/faults", h.faults)
	h.mux.HandleFunc("/api/v1/history", h.history)
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)
	h.mux.HandleFunc("/api/v1/stats", h.stats)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// view returns GET /api/v1/view, the poller's latest view.
func (h *Handler) view(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.deps.Viewer.Latest())
}

// health returns GET /api/v1/health: the latest cards and a window summary.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	v := h.deps.Viewer.Latest()
	resp := HealthResponse{
		State:    v.State,
		Health:   v.Health,
		Fault:    v.Fault,
		Summary:  health.Summarize(h.deps.Window.Snapshot()),
		Capacity: h.deps.Window.Cap(),
	}
	if h.deps.Alerts != nil {
		for _, a := range h.deps.Alerts.Active() {
			if a.State == alerts.StateFiring {
				resp.AlertCount++
			}
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// faults returns GET /api/v1/faults: label counts over the window.
func (h *Handler) faults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s := health.Summarize(h.deps.Window.Snapshot())
	jsonResp(w, http.StatusOK, FaultsResponse{Count: s.Count, Faults: s.Faults})
}

// history returns GET /api/v1/history. ?limit=N keeps the newest N entries,
// still oldest first.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	entries := h.deps.Window.Snapshot()
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if n < len(entries) {
			entries = entries[len(entries)-n:]
		}
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}
	jsonResp(w, http.StatusOK, HistoryResponse{
		Capacity: h.deps.Window.Cap(),
		Count:    len(entries),
		Entries:  entries,
	})
}

// alerts returns GET /api/v1/alerts, newest first.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := []*alerts.Alert{}
	if h.deps.Alerts != nil {
		out = append(out, h.deps.Alerts.Active()...)
	}
	jsonResp(w, http.StatusOK, out)
}

// stats returns GET /api/v1/stats: ingestion counters.
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var st ingest.Stats
	if h.deps.Stats != nil {
		st = h.deps.Stats.Stats()
	}
	jsonResp(w, http.StatusOK, StatsResponse{
		Stats:          st,
		Rejected:       st.Rejected(),
		HistoryEntries: len(h.deps.Window.Snapshot()),
		Capacity:       h.deps.Window.Cap(),
		GeneratedAt:    h.now().UTC(),
	})
}

// --- helpers ----------------------------------------------------------------

// jsonResp encodes v before writing the status line so an encoding failure
// turns into a 500 instead of an empty 200.
func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		slog.Error("api: encode response", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(errorResponse{Error: "encode response"}) //nolint:errcheck
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes()) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
