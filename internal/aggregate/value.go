package aggregate

import (
	"math"
	"strconv"
)

// ValueKind identifies which member of a Value is populated
type ValueKind int

const (
	IntKind ValueKind = iota
	FloatKind
	StringKind
)

// Value is a normalized field value. Integers and floats carry their own
// formatting rules; strings are passed through verbatim.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

// Int returns an integer value
func Int(v int64) Value {
	return Value{kind: IntKind, i: v}
}

// Float returns a floating-point value
func Float(v float64) Value {
	return Value{kind: FloatKind, f: v}
}

// String returns a string value that is emitted as-is
func String(v string) Value {
	return Value{kind: StringKind, s: v}
}

// Kind returns the value kind
func (v Value) Kind() ValueKind {
	return v.kind
}

// Float64 returns the numeric value, or 0 for strings
func (v Value) Float64() float64 {
	switch v.kind {
	case IntKind:
		return float64(v.i)
	case FloatKind:
		return v.f
	default:
		return 0
	}
}

// String renders the value as an unquoted line-protocol literal.
// Floats use the shortest representation, so 100.0 renders as "100".
func (v Value) String() string {
	switch v.kind {
	case IntKind:
		return strconv.FormatInt(v.i, 10)
	case FloatKind:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return v.s
	}
}

// Round rounds x to the given number of decimal places, half away from zero
func Round(x float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(x*p) / p
}

// Normalize applies the sample value rule: floating-point samples are
// rounded to 5 decimal places, integer samples are floored.
func Normalize(raw float64, fractional bool) Value {
	if fractional {
		return Float(Round(raw, 5))
	}
	return Int(int64(math.Floor(raw)))
}
