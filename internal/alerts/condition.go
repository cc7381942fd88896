package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// Reading is the view of one history entry that rules are evaluated on.
type Reading struct {
	Seq         uint64
	Current     float64
	Voltage     float64
	Temperature float64
	Power       float64
	HealthIndex float64
	Fault       string
	Status      types.HealthStatus
}

// condition is a parsed rule expression.
//
// Supported expressions (field operator value):
//
//	health_index < 50
//	current > 0.415
//	voltage >= 240
//	temperature > 42
//	power > 100
//	fault == Overvoltage
//	fault != Normal Condition
//	status == Faulty
//	status != Healthy
type condition struct {
	field     string
	op        string
	threshold float64            // numeric fields
	label     string             // fault
	status    types.HealthStatus // status
}

var numericFields = map[string]func(Reading) float64{
	"health_index": func(r Reading) float64 { return r.HealthIndex },
	"current":      func(r Reading) float64 { return r.Current },
	"voltage":      func(r Reading) float64 { return r.Voltage },
	"temperature":  func(r Reading) float64 { return r.Temperature },
	"power":        func(r Reading) float64 { return r.Power },
}

// parseCondition compiles a rule expression. Everything after the operator
// is the value, so fault labels may contain spaces.
func parseCondition(expr string) (condition, error) {
	parts := strings.Fields(expr)
	if len(parts) < 3 {
		return condition{}, fmt.Errorf("condition %q: want \"field op value\"", expr)
	}
	c := condition{field: parts[0], op: parts[1]}
	rhs := strings.Join(parts[2:], " ")

	switch c.field {
	case "fault":
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("condition %q: fault supports == and != only", expr)
		}
		c.label = rhs
	case "status":
		if c.op != "==" && c.op != "!=" {
			return condition{}, fmt.Errorf("condition %q: status supports == and != only", expr)
		}
		s, err := types.ParseHealthStatus(rhs)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: %w", expr, err)
		}
		c.status = s
	default:
		if _, ok := numericFields[c.field]; !ok {
			return condition{}, fmt.Errorf("condition %q: unknown field %q", expr, c.field)
		}
		switch c.op {
		case ">", ">=", "<", "<=", "==", "!=":
		default:
			return condition{}, fmt.Errorf("condition %q: unknown operator %q", expr, c.op)
		}
		v, err := strconv.ParseFloat(rhs, 64)
		if err != nil {
			return condition{}, fmt.Errorf("condition %q: value: %w", expr, err)
		}
		c.threshold = v
	}
	return c, nil
}

// eval reports whether the condition holds for r and the value that
// triggered it (the health index for label conditions).
func (c condition) eval(r Reading) (bool, float64) {
	switch c.field {
	case "fault":
		return (r.Fault == c.label) == (c.op == "=="), r.HealthIndex
	case "status":
		return (r.Status == c.status) == (c.op == "=="), r.HealthIndex
	default:
		v := numericFields[c.field](r)
		return compareFloat(v, c.op, c.threshold), v
	}
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
