package types

// SensorSample is one validated reading from the device. All fields are
// finite; only the record parser constructs it.
type SensorSample struct {
	Current     float64 `json:"current"`     // A
	Voltage     float64 `json:"voltage"`     // V
	Temperature float64 `json:"temperature"` // °C
}

// EnrichedSample is a SensorSample plus derived features.
type EnrichedSample struct {
	SensorSample
	Power float64 `json:"power"` // W, Voltage * Current
}
