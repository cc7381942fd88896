package present

import (
	"fmt"
	"time"

	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// StaleAfter is how old the newest entry may be before the view flags the
// stream as stalled.
const StaleAfter = 5 * time.Second

// Hint levels.
const (
	LevelOK       = "ok"
	LevelInfo     = "info"
	LevelWarning  = "warning"
	LevelCritical = "critical"
)

// nominalLabels are fault labels that mean "nothing wrong".
var nominalLabels = map[string]bool{
	"No Fault":         true,
	"Normal Condition": true,
}

// DiagnosticHint is one human-readable insight about the monitored device.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level  string   `json:"level"`
	Title  string   `json:"title"`
	Detail string   `json:"detail"`
	Value  *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a snapshot. Order: stream problems
// first, then the latest result, then window-level observations.
func computeDiagnostics(entries []types.HistoryEntry, now time.Time) []DiagnosticHint {
	if len(entries) == 0 {
		return []DiagnosticHint{{
			Key:   "awaiting_data",
			Level: LevelInfo,
			Title: "Waiting for data",
			Detail: "No valid sensor record has been processed yet. " +
				"Check that the device is connected and sending current,voltage,temperature lines.",
		}}
	}

	var hints []DiagnosticHint
	latest := entries[len(entries)-1]

	if age := now.Sub(latest.Timestamp); age > StaleAfter {
		secs := age.Seconds()
		hints = append(hints, DiagnosticHint{
			Key:   "stale_data",
			Level: LevelWarning,
			Title: "Stream stalled",
			Detail: fmt.Sprintf("The newest reading is %.0fs old. The view below shows the last "+
				"known state; the device may have stopped sending or every recent line was rejected.", secs),
			Value: &secs,
		})
	}

	hi := latest.Result.HealthIndex
	if !health.Plausible(hi) {
		v := hi
		hints = append(hints, DiagnosticHint{
			Key:   "implausible_health",
			Level: LevelWarning,
			Title: "Index out of range",
			Detail: fmt.Sprintf("The health model returned %.2f, outside the expected 0–100 range. "+
				"The input is probably outside the conditions the model was trained on.", hi),
			Value: &v,
		})
	}

	if label := latest.Result.FaultLabel; !nominalLabels[label] {
		hints = append(hints, DiagnosticHint{
			Key:    "fault_present",
			Level:  LevelCritical,
			Title:  label,
			Detail: fmt.Sprintf("The classifier reports %q for the latest reading.", label),
		})
	}

	switch latest.Result.HealthStatus {
	case types.Faulty:
		v := hi
		hints = append(hints, DiagnosticHint{
			Key:    "health_band",
			Level:  LevelCritical,
			Title:  "Faulty",
			Detail: fmt.Sprintf("Health index %.2f is below %.0f.", hi, health.ThresholdModerate),
			Value:  &v,
		})
	case types.ModerateRisk:
		v := hi
		hints = append(hints, DiagnosticHint{
			Key:   "health_band",
			Level: LevelWarning,
			Title: "Moderate risk",
			Detail: fmt.Sprintf("Health index %.2f is between %.0f and %.0f.",
				hi, health.ThresholdModerate, health.ThresholdHealthy),
			Value: &v,
		})
	}

	if n := faultyShare(entries); n > 0.5 && len(entries) > 1 {
		pct := n * 100
		hints = append(hints, DiagnosticHint{
			Key:    "window_faulty",
			Level:  LevelWarning,
			Title:  fmt.Sprintf("%.0f%% faulty", pct),
			Detail: fmt.Sprintf("%.0f%% of the last %d readings were classified Faulty.", pct, len(entries)),
			Value:  &pct,
		})
	}

	if len(hints) == 0 {
		v := hi
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  LevelOK,
			Title:  "All clear",
			Detail: fmt.Sprintf("No fault detected and health index is %.2f.", hi),
			Value:  &v,
		})
	}
	return hints
}

func faultyShare(entries []types.HistoryEntry) float64 {
	var n int
	for _, e := range entries {
		if e.Result.HealthStatus == types.Faulty {
			n++
		}
	}
	return float64(n) / float64(len(entries))
}
