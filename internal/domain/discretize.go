package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidThresholds is returned when class boundaries are empty, contain
// NaN, or are not strictly ascending.
var ErrInvalidThresholds = errors.New("invalid class thresholds")

// Class is an ordinal class index (0 is the lowest class).
type Class int

// ClassMissing marks a value that could not be classified (NaN input).
const ClassMissing Class = -1

// IsMissing reports whether c is ClassMissing.
func (c Class) IsMissing() bool { return c == ClassMissing }

// String renders the class index, or an empty string when missing.
func (c Class) String() string {
	if c.IsMissing() {
		return ""
	}
	return strconv.Itoa(int(c))
}

// MarshalJSON encodes missing classes as null.
func (c Class) MarshalJSON() ([]byte, error) {
	if c.IsMissing() {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(c))), nil
}

// UnmarshalJSON accepts an integer or null.
func (c *Class) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*c = ClassMissing
		return nil
	}
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return fmt.Errorf("decode class: %w", err)
	}
	*c = Class(n)
	return nil
}

// ParseClass parses a class index. Empty strings and "NA"/"NaN" are missing.
// Float-formatted integers ("1.0") are accepted since tabular tools often
// write classes that way.
func ParseClass(s string) (Class, error) {
	switch s {
	case "", "NA", "NaN", "nan":
		return ClassMissing, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ClassMissing, fmt.Errorf("parse class %q: %w", s, err)
	}
	if math.IsNaN(v) {
		return ClassMissing, nil
	}
	if v != math.Trunc(v) || v < 0 {
		return ClassMissing, fmt.Errorf("parse class %q: not a class index", s)
	}
	return Class(v), nil
}

// Discretize maps a continuous value onto the classes delimited by thresholds.
// A value below thresholds[0] is class 0; a value at or above thresholds[i]
// and below thresholds[i+1] is class i+1; a value at or above the last
// boundary is class len(thresholds). NaN values yield ClassMissing.
//
//	Discretize([]float64{29.5}, 25)   // 0
//	Discretize([]float64{29.5}, 35)   // 1
//	Discretize([]float64{10, 20}, 15) // 1
func Discretize(thresholds []float64, value float64) (Class, error) {
	if err := validateThresholds(thresholds); err != nil {
		return ClassMissing, err
	}
	if math.IsNaN(value) {
		return ClassMissing, nil
	}
	for i, boundary := range thresholds {
		if value < boundary {
			return Class(i), nil
		}
	}
	return Class(len(thresholds)), nil
}

func validateThresholds(thresholds []float64) error {
	if len(thresholds) == 0 {
		return fmt.Errorf("%w: no boundaries", ErrInvalidThresholds)
	}
	for i, t := range thresholds {
		if math.IsNaN(t) {
			return fmt.Errorf("%w: boundary %d is NaN", ErrInvalidThresholds, i)
		}
		if i > 0 && t <= thresholds[i-1] {
			return fmt.Errorf("%w: %g does not exceed %g", ErrInvalidThresholds, t, thresholds[i-1])
		}
	}
	return nil
}

// DiscretizeSeries applies Discretize to every value.
func DiscretizeSeries(thresholds []float64, values []float64) ([]Class, error) {
	if err := validateThresholds(thresholds); err != nil {
		return nil, err
	}
	out := make([]Class, len(values))
	for i, v := range values {
		c, err := Discretize(thresholds, v)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
