package types

import (
	"fmt"
	"time"
)

// HealthStatus is the coarse band a health index falls into.
type HealthStatus int

const (
	Faulty HealthStatus = iota
	ModerateRisk
	Healthy
)

var statusNames = map[HealthStatus]string{
	Healthy:      "Healthy",
	ModerateRisk: "Moderate Risk",
	Faulty:       "Faulty",
}

func (s HealthStatus) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("HealthStatus(%d)", int(s))
}

// MarshalText encodes the status by name so JSON payloads stay readable.
func (s HealthStatus) MarshalText() ([]byte, error) {
	if _, ok := statusNames[s]; !ok {
		return nil, fmt.Errorf("types: unknown health status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText accepts the display name or the compact identifier
// ("Healthy", "ModerateRisk", "Moderate Risk", "Faulty").
func (s *HealthStatus) UnmarshalText(b []byte) error {
	v, err := ParseHealthStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseHealthStatus maps a status name back to its value.
func ParseHealthStatus(name string) (HealthStatus, error) {
	switch name {
	case "Healthy", "healthy":
		return Healthy, nil
	case "Moderate Risk", "ModerateRisk", "moderate_risk", "moderate":
		return ModerateRisk, nil
	case "Faulty", "faulty":
		return Faulty, nil
	}
	return Faulty, fmt.Errorf("types: unknown health status %q", name)
}

// InferenceResult is the per-sample output of the two models.
type InferenceResult struct {
	FaultLabel   string       `json:"fault_label"`
	HealthIndex  float64      `json:"health_index"`
	HealthStatus HealthStatus `json:"health_status"`
}

// HistoryEntry is the unit stored in the rolling window. Seq is assigned by
// the store and increases strictly with arrival order.
type HistoryEntry struct {
	Seq       uint64          `json:"seq"`
	Timestamp time.Time       `json:"timestamp"`
	Sample    EnrichedSample  `json:"sample"`
	Result    InferenceResult `json:"result"`
}
