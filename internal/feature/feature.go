// Package feature derives engineering quantities from a validated sample and
// lays them out as model input vectors.
package feature

import (
	"fmt"
	"math"
	"strings"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// Canonical feature names, in the order the health regressor was trained on.
const (
	Current     = "Current"
	Voltage     = "Voltage"
	Temperature = "Temperature"
	Power       = "Power"
)

// Names is the canonical schema. Callers must not modify it.
var Names = []string{Current, Voltage, Temperature, Power}

// Enrich adds derived features to s.
func Enrich(s types.SensorSample) types.EnrichedSample {
	return types.EnrichedSample{
		SensorSample: s,
		Power:        s.Voltage * s.Current,
	}
}

// Finite reports whether every feature of e is a finite number. Finite
// readings can still overflow Power (1e200 V × 1e200 A).
func Finite(e types.EnrichedSample) bool {
	for _, v := range [...]float64{e.Current, e.Voltage, e.Temperature, e.Power} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Order maps vector positions to canonical feature indexes. It is built once
// from an external feature-name list and reused for every sample.
type Order []int

// CanonicalOrder is the identity order over Names.
func CanonicalOrder() Order {
	return Order{0, 1, 2, 3}
}

// ResolveOrder validates names against the canonical schema and returns the
// order it describes. Matching ignores case and surrounding whitespace; every
// canonical feature must appear exactly once.
func ResolveOrder(names []string) (Order, error) {
	if len(names) != len(Names) {
		return nil, fmt.Errorf("feature: got %d feature names, want %d (%s)",
			len(names), len(Names), strings.Join(Names, ", "))
	}

	seen := make([]bool, len(Names))
	order := make(Order, len(names))
	for i, n := range names {
		idx := indexOf(n)
		if idx < 0 {
			return nil, fmt.Errorf("feature: unknown feature name %q at position %d", n, i)
		}
		if seen[idx] {
			return nil, fmt.Errorf("feature: duplicate feature name %q at position %d", n, i)
		}
		seen[idx] = true
		order[i] = idx
	}
	return order, nil
}

// Names returns the feature names in this order.
func (o Order) Names() []string {
	out := make([]string, len(o))
	for i, idx := range o {
		out[i] = Names[idx]
	}
	return out
}

// Vector lays out e according to o.
func (o Order) Vector(e types.EnrichedSample) []float64 {
	canon := [4]float64{e.Current, e.Voltage, e.Temperature, e.Power}
	out := make([]float64, len(o))
	for i, idx := range o {
		out[i] = canon[idx]
	}
	return out
}

func indexOf(name string) int {
	name = strings.TrimSpace(name)
	for i, n := range Names {
		if strings.EqualFold(n, name) {
			return i
		}
	}
	return -1
}

// Vector lays out e in the given order. It is shorthand for order.Vector(e).
func Vector(e types.EnrichedSample, order Order) []float64 {
	return order.Vector(e)
}
