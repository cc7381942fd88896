// Package record turns one raw text line from the device into a validated
// types.SensorSample, or reports why it could not.
package record

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/faulttwin/faulttwin/pkg/types"
)

// Delimiter separates fields within a record.
const Delimiter = ","

// minFields is the number of leading fields consumed; extras are ignored.
const minFields = 3

var (
	// ErrIncompleteRecord is returned when a line has fewer than three fields.
	ErrIncompleteRecord = errors.New("incomplete record")

	// ErrNumericFormat is returned when one of the first three fields is not a
	// finite floating-point number.
	ErrNumericFormat = errors.New("numeric format error")
)

// fieldNames labels the consumed fields in error messages.
var fieldNames = [minFields]string{"current", "voltage", "temperature"}

// ParseError describes why a line was rejected. It wraps one of the sentinel
// errors above, so callers can branch with errors.Is.
type ParseError struct {
	Line   string
	Field  string // empty for ErrIncompleteRecord
	Fields int    // number of fields found
	Err    error
}

func (e *ParseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("record: %v: field %s in %q", e.Err, e.Field, e.Line)
	}
	return fmt.Sprintf("record: %v: %d field(s) in %q", e.Err, e.Fields, e.Line)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse validates line and returns the sample it encodes. Leading and trailing
// whitespace is trimmed from the line and from each field before any check.
func Parse(line string) (types.SensorSample, error) {
	trimmed := strings.TrimSpace(line)
	fields := strings.Split(trimmed, Delimiter)
	if trimmed == "" || len(fields) < minFields {
		n := len(fields)
		if trimmed == "" {
			n = 0
		}
		return types.SensorSample{}, &ParseError{Line: trimmed, Fields: n, Err: ErrIncompleteRecord}
	}

	var vals [minFields]float64
	for i := 0; i < minFields; i++ {
		v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.SensorSample{}, &ParseError{
				Line:   trimmed,
				Field:  fieldNames[i],
				Fields: len(fields),
				Err:    ErrNumericFormat,
			}
		}
		vals[i] = v
	}

	return types.SensorSample{
		Current:     vals[0],
		Voltage:     vals[1],
		Temperature: vals[2],
	}, nil
}
