package health

import (
	"math"
	"sort"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// Thresholds that map a health index to a status.
const (
	// ThresholdHealthy is exclusive: an index of exactly 80 is Moderate Risk.
	ThresholdHealthy = 80.0
	// ThresholdModerate is inclusive: an index of exactly 50 is Moderate Risk.
	ThresholdModerate = 50.0
)

// Expected range of the regressor output.
const (
	MinIndex = 0.0
	MaxIndex = 100.0
)

// Card severities, one per status.
const (
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityDanger  = "danger"
	// SeverityNone is used before any result exists.
	SeverityNone = "secondary"
)

// StatusFor maps a health index to its status band.
func StatusFor(index float64) types.HealthStatus {
	switch {
	case index > ThresholdHealthy:
		return types.Healthy
	case index >= ThresholdModerate:
		return types.ModerateRisk
	default:
		// NaN compares false everywhere and lands here.
		return types.Faulty
	}
}

// Severity returns the card severity for s.
func Severity(s types.HealthStatus) string {
	switch s {
	case types.Healthy:
		return SeveritySuccess
	case types.ModerateRisk:
		return SeverityWarning
	default:
		return SeverityDanger
	}
}

// Plausible reports whether index is finite and within [MinIndex, MaxIndex].
func Plausible(index float64) bool {
	if math.IsNaN(index) || math.IsInf(index, 0) {
		return false
	}
	return index >= MinIndex && index <= MaxIndex
}

// Summary aggregates a window of results.
type Summary struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`

	// Statuses counts entries per status name.
	Statuses map[string]int `json:"statuses"`

	// Faults lists fault labels by descending count, ties by label.
	Faults []FaultCount `json:"faults"`
}

// FaultCount is one row of the fault distribution.
type FaultCount struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"` // 0–1
}

// Summarize aggregates entries. An empty window yields a zero Summary with
// non-nil maps and slices so it encodes cleanly.
func Summarize(entries []types.HistoryEntry) Summary {
	s := Summary{
		Statuses: map[string]int{
			types.Healthy.String():      0,
			types.ModerateRisk.String(): 0,
			types.Faulty.String():       0,
		},
		Faults: []FaultCount{},
	}
	if len(entries) == 0 {
		return s
	}

	faults := make(map[string]int)
	s.Min = math.Inf(1)
	s.Max = math.Inf(-1)
	var sum float64
	for _, e := range entries {
		hi := e.Result.HealthIndex
		sum += hi
		s.Min = math.Min(s.Min, hi)
		s.Max = math.Max(s.Max, hi)
		s.Statuses[e.Result.HealthStatus.String()]++
		faults[e.Result.FaultLabel]++
	}
	s.Count = len(entries)
	s.Mean = sum / float64(s.Count)

	for label, n := range faults {
		s.Faults = append(s.Faults, FaultCount{
			Label: label,
			Count: n,
			Share: float64(n) / float64(s.Count),
		})
	}
	sort.Slice(s.Faults, func(i, j int) bool {
		if s.Faults[i].Count != s.Faults[j].Count {
			return s.Faults[i].Count > s.Faults[j].Count
		}
		return s.Faults[i].Label < s.Faults[j].Label
	})
	return s
}
