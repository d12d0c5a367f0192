// Package crisis implements the safety classification used to gate the
// plan generation pipeline: a total severity order plus the local
// keyword screener that runs before any model call.
package crisis

import "strings"

// Severity is the total order used for crisis aggregation and halting.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ParseSeverity maps a severity label back to its value. Labels this
// package never produced fail safe to SeverityHigh: a garbled label on
// the classification path must halt for review, not slip through.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none":
		return SeverityNone
	case "low":
		return SeverityLow
	case "medium", "moderate":
		return SeverityMedium
	case "high":
		return SeverityHigh
	case "critical":
		return SeverityCritical
	default:
		return SeverityHigh
	}
}

// IsHalting reports whether s stops the pipeline before the canonical
// plan is touched.
func (s Severity) IsHalting() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// IsWarning reports whether s is recorded as a run warning while the
// pipeline continues.
func (s Severity) IsWarning() bool {
	return s == SeverityMedium
}

// MaxSeverity returns the maximum element of severities under the total
// order, SeverityNone for an empty list.
func MaxSeverity(severities ...Severity) Severity {
	out := SeverityNone
	for _, s := range severities {
		if s > out {
			out = s
		}
	}
	return out
}
