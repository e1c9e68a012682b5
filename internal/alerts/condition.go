package alerts

import (
	"fmt"
	"strings"

	"github.com/f451labs/telemetry/internal/compute"
)

// Condition is the set of severities that count as alerting.
type Condition map[compute.Severity]bool

// NewCondition returns a Condition matching any of sevs.
func NewCondition(sevs ...compute.Severity) Condition {
	c := make(Condition, len(sevs))
	for _, s := range sevs {
		c[s] = true
	}
	return c
}

// Matches reports whether the row's current value is present and falls in
// an alerting bucket. Rows without a current value never match.
func (c Condition) Matches(r compute.Row) bool {
	return r.Current.Present && c[r.Severity]
}

func (c Condition) String() string {
	names := make([]string, 0, len(c))
	for s := compute.SeverityDangerouslyLow; s <= compute.SeverityDangerouslyHigh; s++ {
		if c[s] {
			names = append(names, s.String())
		}
	}
	return strings.Join(names, "|")
}

func label(r compute.Row) string {
	if r.Label != "" {
		return r.Label
	}
	return r.Name
}

func firingMessage(r compute.Row) string {
	return fmt.Sprintf("%s is %s at %.2f%s", label(r), r.Severity, r.Current.Value, unitSuffix(r.Unit))
}

func resolvedMessage(r compute.Row) string {
	if !r.Current.Present {
		return fmt.Sprintf("%s has no current value", label(r))
	}
	return fmt.Sprintf("%s back to %s at %.2f%s", label(r), r.Severity, r.Current.Value, unitSuffix(r.Unit))
}

func unitSuffix(u string) string {
	if u == "" {
		return ""
	}
	return " " + u
}
