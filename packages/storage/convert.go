package storage

import (
	"math"
	"strconv"
	"strings"
)

// conversions between the three cell encodings. every conversion maps the
// source missing marker onto the target missing marker, and anything that
// cannot be represented in the target becomes missing.

// IntToFloat widens an integer cell
func IntToFloat(v int32) float64 {
	if v == MissingInt {
		return MissingFloat()
	}
	return float64(v)
}

// FloatToInt truncates a decimal cell toward zero
func FloatToInt(v float64) int32 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return MissingInt
	}
	t := math.Trunc(v)
	if t <= math.MinInt32 || t > math.MaxInt32 {
		return MissingInt
	}
	return int32(t)
}

// IntToText formats an integer cell
func IntToText(v int32) string {
	if v == MissingInt {
		return ""
	}
	return strconv.FormatInt(int64(v), 10)
}

// FloatToText formats a decimal cell with the shortest exact representation
func FloatToText(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TextToInt parses a text cell as an integer, accepting decimal text
func TextToInt(s string) int32 {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingInt
	}
	if i, err := strconv.ParseInt(s, 10, 32); err == nil && int32(i) != MissingInt {
		return int32(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return FloatToInt(f)
	}
	return MissingInt
}

// TextToFloat parses a text cell as a decimal
func TextToFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return MissingFloat()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return MissingFloat()
	}
	return f
}
