package feature

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faulttwin/faulttwin/pkg/types"
)

func TestEnrich_Power(t *testing.T) {
	e := Enrich(types.SensorSample{Current: 0.30, Voltage: 220.0, Temperature: 35.0})
	assert.InDelta(t, 66.0, e.Power, 1e-9)
	assert.Equal(t, 35.0, e.Temperature)
}

func TestEnrich_RandomSamples(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		s := types.SensorSample{Current: rng.Float64(), Voltage: rng.Float64() * 300, Temperature: rng.Float64() * 60}
		e := Enrich(s)
		assert.Equal(t, s.Voltage*s.Current, e.Power)
		assert.Equal(t, s, e.SensorSample)
	}
}

func TestResolveOrder_Canonical(t *testing.T) {
	o, err := ResolveOrder([]string{"Current", "Voltage", "Temperature", "Power"})
	require.NoError(t, err)
	assert.Equal(t, CanonicalOrder(), o)
}

func TestResolveOrder_Permuted(t *testing.T) {
	o, err := ResolveOrder([]string{" power", "TEMPERATURE", "current", "Voltage"})
	require.NoError(t, err)
	assert.Equal(t, []string{Power, Temperature, Current, Voltage}, o.Names())

	e := types.EnrichedSample{SensorSample: types.SensorSample{Current: 1, Voltage: 2, Temperature: 3}, Power: 4}
	assert.Equal(t, []float64{4, 3, 1, 2}, o.Vector(e))
}

func TestResolveOrder_Rejects(t *testing.T) {
	tests := map[string][]string{
		"too short":  {"Current", "Voltage", "Temperature"},
		"too long":   {"Current", "Voltage", "Temperature", "Power", "Timestamp"},
		"unknown":    {"Current", "Voltage", "Temperature", "Humidity"},
		"duplicate":  {"Current", "Current", "Temperature", "Power"},
		"empty list": {},
	}
	for name, names := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ResolveOrder(names)
			assert.Error(t, err)
		})
	}
}

func TestFinite(t *testing.T) {
	assert.True(t, Finite(Enrich(types.SensorSample{Current: 0.30, Voltage: 220.0, Temperature: 35.0})))

	overflow := Enrich(types.SensorSample{Current: 1e200, Voltage: 1e200, Temperature: 30})
	assert.True(t, math.IsInf(overflow.Power, 1))
	assert.False(t, Finite(overflow))
}
