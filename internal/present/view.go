package present

import (
	"fmt"
	"time"

	"github.com/faulttwin/faulttwin/internal/health"
	"github.com/faulttwin/faulttwin/pkg/types"
)

// View states.
const (
	StateAwaitingData = "awaiting_data"
	StateLive         = "live"
)

// WaitingText is shown on both cards until the first result arrives.
const WaitingText = "Waiting for data..."

// Display colours.
const (
	ColorGreen  = "green"
	ColorRed    = "red"
	ColorOrange = "orange"
	ColorYellow = "yellow"
	ColorBlue   = "blue"
	ColorWhite  = "white"
)

// timeLayout formats series labels.
const timeLayout = "15:04:05"

var faultColors = map[string]string{
	"No Fault":        ColorGreen,
	"Overcurrent":     ColorRed,
	"Overvoltage":     ColorOrange,
	"Overtemperature": ColorYellow,
	"Undervoltage":    ColorBlue,
}

// FaultColor returns the display colour for a fault label. Labels outside
// the table are white.
func FaultColor(label string) string {
	if c, ok := faultColors[label]; ok {
		return c
	}
	return ColorWhite
}

// View is everything a dashboard needs for one refresh.
type View struct {
	State       string    `json:"state"`
	GeneratedAt time.Time `json:"generated_at"`

	// Seq is the sequence number of the newest entry; 0 while awaiting data.
	Seq      uint64 `json:"seq"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`

	Fault       FaultCard        `json:"fault"`
	Health      HealthCard       `json:"health"`
	Series      Series           `json:"series"`
	Scatter     Scatter          `json:"scatter"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
}

// Awaiting reports whether the view was built from an empty window.
func (v *View) Awaiting() bool { return v.State == StateAwaitingData }

// FaultCard shows the latest predicted fault.
type FaultCard struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// HealthCard shows the latest health index.
type HealthCard struct {
	// Text is the formatted index ("87.25%") or WaitingText.
	Text     string              `json:"text"`
	Index    *float64            `json:"index,omitempty"`
	Status   *types.HealthStatus `json:"status,omitempty"`
	Severity string              `json:"severity"`
}

// Series holds time-aligned columns, oldest first. All slices have the same
// length.
type Series struct {
	Time        []string  `json:"time"`
	Current     []float64 `json:"current"`
	Voltage     []float64 `json:"voltage"`
	Temperature []float64 `json:"temperature"`
	Power       []float64 `json:"power"`
	HealthIndex []float64 `json:"health_index"`
}

// Scatter places each sample in (current, voltage, temperature) space,
// coloured by health index.
type Scatter struct {
	X     []float64 `json:"x"`
	Y     []float64 `json:"y"`
	Z     []float64 `json:"z"`
	Color []float64 `json:"color"`
}

// Build assembles a View from a snapshot (oldest first). It never fails:
// an empty snapshot yields the awaiting-data view.
func Build(entries []types.HistoryEntry, capacity int, now time.Time) *View {
	n := len(entries)
	v := &View{
		GeneratedAt: now,
		Entries:     n,
		Capacity:    capacity,
		Series: Series{
			Time:        make([]string, n),
			Current:     make([]float64, n),
			Voltage:     make([]float64, n),
			Temperature: make([]float64, n),
			Power:       make([]float64, n),
			HealthIndex: make([]float64, n),
		},
	}

	if n == 0 {
		v.State = StateAwaitingData
		v.Fault = FaultCard{Label: WaitingText, Color: ColorWhite}
		v.Health = HealthCard{Text: WaitingText, Severity: health.SeverityNone}
		v.Scatter = Scatter{X: []float64{}, Y: []float64{}, Z: []float64{}, Color: []float64{}}
		v.Diagnostics = computeDiagnostics(entries, now)
		return v
	}

	for i, e := range entries {
		v.Series.Time[i] = e.Timestamp.Format(timeLayout)
		v.Series.Current[i] = e.Sample.Current
		v.Series.Voltage[i] = e.Sample.Voltage
		v.Series.Temperature[i] = e.Sample.Temperature
		v.Series.Power[i] = e.Sample.Power
		v.Series.HealthIndex[i] = e.Result.HealthIndex
	}
	// The scatter shares the series columns; both are read-only once built.
	v.Scatter = Scatter{
		X:     v.Series.Current,
		Y:     v.Series.Voltage,
		Z:     v.Series.Temperature,
		Color: v.Series.HealthIndex,
	}

	latest := entries[n-1]
	hi := latest.Result.HealthIndex
	status := latest.Result.HealthStatus

	v.State = StateLive
	v.Seq = latest.Seq
	v.Fault = FaultCard{
		Label: latest.Result.FaultLabel,
		Color: FaultColor(latest.Result.FaultLabel),
	}
	v.Health = HealthCard{
		Text:     fmt.Sprintf("%.2f%%", hi),
		Index:    &hi,
		Status:   &status,
		Severity: health.Severity(status),
	}
	v.Diagnostics = computeDiagnostics(entries, now)
	return v
}
