package compute

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Reading is a single sample that may be absent. The zero value is absent.
type Reading struct {
	Value   float64
	Present bool
}

// Absent is the missing-sample reading.
var Absent = Reading{}

// Val returns a present reading holding v.
func Val(v float64) Reading {
	return Reading{Value: v, Present: true}
}

// Ptr returns a present reading for a non-nil v and Absent otherwise.
// It is the bridge from YAML/JSON documents where null marks a missing value.
func Ptr(v *float64) Reading {
	if v == nil {
		return Absent
	}
	return Val(*v)
}

func (r Reading) String() string {
	if !r.Present {
		return "none"
	}
	return strconv.FormatFloat(r.Value, 'f', -1, 64)
}

// MarshalJSON encodes an absent reading as null.
func (r Reading) MarshalJSON() ([]byte, error) {
	if !r.Present {
		return []byte("null"), nil
	}
	return json.Marshal(r.Value)
}

// UnmarshalJSON accepts a number or null.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var v *float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Ptr(v)
	return nil
}

// ConfigError reports a malformed range or limit set supplied by a caller.
// It is the only error this package returns.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidRange declares the values a sensor can legitimately produce.
// An absent bound leaves that side unbounded.
type ValidRange struct {
	Min Reading
	Max Reading
}

// Range returns a ValidRange bounded on both sides.
func Range(min, max float64) ValidRange {
	return ValidRange{Min: Val(min), Max: Val(max)}
}

// Unbounded reports whether neither bound is set.
func (r ValidRange) Unbounded() bool {
	return !r.Min.Present && !r.Max.Present
}

// Validate fails when both bounds are present and min > max.
func (r ValidRange) Validate() error {
	if r.Min.Present && r.Max.Present && r.Min.Value > r.Max.Value {
		return &ConfigError{
			Field:  "valid range",
			Reason: fmt.Sprintf("min %v greater than max %v", r.Min.Value, r.Max.Value),
		}
	}
	return nil
}

// LimitSet holds the four thresholds A ≤ B ≤ C ≤ D that split the value line
// into five severity buckets. Any absent entry disables classification.
type LimitSet [4]Reading

// Limits returns a complete limit set.
func Limits(a, b, c, d float64) LimitSet {
	return LimitSet{Val(a), Val(b), Val(c), Val(d)}
}

// Complete reports whether all four thresholds are present.
func (l LimitSet) Complete() bool {
	for _, r := range l {
		if !r.Present {
			return false
		}
	}
	return true
}

// Validate fails when two present thresholds are out of order.
func (l LimitSet) Validate() error {
	last := Absent
	for i, r := range l {
		if !r.Present {
			continue
		}
		if last.Present && r.Value < last.Value {
			return &ConfigError{
				Field:  "limits",
				Reason: fmt.Sprintf("limit %d (%v) is below a preceding limit (%v)", i, r.Value, last.Value),
			}
		}
		last = r
	}
	return nil
}
