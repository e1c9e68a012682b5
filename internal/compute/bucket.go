package compute

import (
	"fmt"
	"strconv"
)

// Severity is the bucket a value falls into relative to a LimitSet.
type Severity int

const (
	// SeverityNone means classification is undefined (incomplete limits or
	// no current value).
	SeverityNone Severity = iota
	SeverityDangerouslyLow
	SeverityLow
	SeverityNormal
	SeverityHigh
	SeverityDangerouslyHigh
)

// ColorMap is the five-color severity palette, dangerously-low first.
var ColorMap = [5]string{"red", "yellow", "green", "cyan", "blue"}

// DefaultColor is used wherever no severity applies.
const DefaultColor = "grey"

var severityNames = map[Severity]string{
	SeverityNone:            "none",
	SeverityDangerouslyLow:  "dangerously-low",
	SeverityLow:             "low",
	SeverityNormal:          "normal",
	SeverityHigh:            "high",
	SeverityDangerouslyHigh: "dangerously-high",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return "severity(" + strconv.Itoa(int(s)) + ")"
}

// ParseSeverity is the inverse of Severity.String.
func ParseSeverity(s string) (Severity, error) {
	for sev, n := range severityNames {
		if n == s {
			return sev, nil
		}
	}
	return SeverityNone, fmt.Errorf("compute: unknown severity %q", s)
}

// MarshalText lets severities appear as names in JSON and YAML.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Color returns the ColorMap entry for s, or DefaultColor for SeverityNone.
func (s Severity) Color() string {
	if s < SeverityDangerouslyLow || s > SeverityDangerouslyHigh {
		return DefaultColor
	}
	return ColorMap[s-SeverityDangerouslyLow]
}

// Tri collapses s onto the three-level palette used by graphs: both low
// buckets become SeverityLow and both high buckets become SeverityHigh.
func (s Severity) Tri() Severity {
	switch s {
	case SeverityDangerouslyLow, SeverityLow:
		return SeverityLow
	case SeverityHigh, SeverityDangerouslyHigh:
		return SeverityHigh
	default:
		return s
	}
}

// TriPalette holds the colors for the low, normal and high graph levels.
type TriPalette struct {
	Low    string
	Normal string
	High   string
}

// DefaultTriPalette uses ColorMap entries 0, 2 and 4.
func DefaultTriPalette() TriPalette {
	return TriPalette{Low: ColorMap[0], Normal: ColorMap[2], High: ColorMap[4]}
}

// Color returns the palette color for s after collapsing it with Tri.
func (p TriPalette) Color(s Severity) string {
	switch s.Tri() {
	case SeverityLow:
		return p.Low
	case SeverityNormal:
		return p.Normal
	case SeverityHigh:
		return p.High
	default:
		return DefaultColor
	}
}

// Bucket maps v onto a severity using l. Each bucket is closed on its upper
// edge, so v == A is dangerously low and v == D is high:
//
//	v ≤ A       dangerously low
//	A < v ≤ B   low
//	B < v ≤ C   normal
//	C < v ≤ D   high
//	v > D       dangerously high
//
// An incomplete limit set yields SeverityNone.
func Bucket(v float64, l LimitSet) Severity {
	if !l.Complete() {
		return SeverityNone
	}
	switch {
	case v <= l[0].Value:
		return SeverityDangerouslyLow
	case v <= l[1].Value:
		return SeverityLow
	case v <= l[2].Value:
		return SeverityNormal
	case v <= l[3].Value:
		return SeverityHigh
	default:
		return SeverityDangerouslyHigh
	}
}

// Op is a comparison used by an emphasis rule.
type Op string

const (
	OpGT Op = "gt"
	OpEQ Op = "eq"
	OpLT Op = "lt"
)

// EmphasisRule colors graph points that compare to Threshold with Op.
type EmphasisRule struct {
	Severity  Severity `json:"severity"`
	Op        Op       `json:"op"`
	Threshold float64  `json:"threshold"`
}

// Holds reports whether v satisfies the rule.
func (r EmphasisRule) Holds(v float64) bool {
	switch r.Op {
	case OpGT:
		return v > r.Threshold
	case OpEQ:
		return v == r.Threshold
	case OpLT:
		return v < r.Threshold
	}
	return false
}

// String renders the rule as "severity:op:threshold" with one decimal.
func (r EmphasisRule) String() string {
	return fmt.Sprintf("%s:%s:%.1f", r.Severity, r.Op, r.Threshold)
}

// EmphasisMap is an ordered list of rules, broadest first.
type EmphasisMap []EmphasisRule

// Emphasis builds the graph emphasis map for l:
//
//	high:gt:C, normal:eq:C, normal:lt:C, low:eq:B, low:lt:B
//
// It returns nil when l is incomplete.
func Emphasis(l LimitSet) EmphasisMap {
	if !l.Complete() {
		return nil
	}
	b, c := l[1].Value, l[2].Value
	return EmphasisMap{
		{Severity: SeverityHigh, Op: OpGT, Threshold: c},
		{Severity: SeverityNormal, Op: OpEQ, Threshold: c},
		{Severity: SeverityNormal, Op: OpLT, Threshold: c},
		{Severity: SeverityLow, Op: OpEQ, Threshold: b},
		{Severity: SeverityLow, Op: OpLT, Threshold: b},
	}
}

// Match returns the severity for v. Rules later in the map are narrower and
// take precedence, so the scan runs from the end. The result always equals
// Bucket(v, l).Tri() for the limit set the map was built from.
func (m EmphasisMap) Match(v float64) (Severity, bool) {
	for i := len(m) - 1; i >= 0; i-- {
		if m[i].Holds(v) {
			return m[i].Severity, true
		}
	}
	return SeverityNone, false
}
