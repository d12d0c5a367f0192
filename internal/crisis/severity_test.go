package crisis

import "testing"

func TestSeverityOrder(t *testing.T) {
	if !(SeverityNone < SeverityLow && SeverityLow < SeverityMedium &&
		SeverityMedium < SeverityHigh && SeverityHigh < SeverityCritical) {
		t.Fatalf("severity values are not totally ordered")
	}
}

func TestIsHalting(t *testing.T) {
	all := []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for _, s := range all {
		want := s == SeverityHigh || s == SeverityCritical
		if got := s.IsHalting(); got != want {
			t.Fatalf("IsHalting(%s)=%v, want %v", s, got, want)
		}
	}
}

func TestMaxSeverity(t *testing.T) {
	cases := []struct {
		name string
		in   []Severity
		want Severity
	}{
		{"empty", nil, SeverityNone},
		{"single", []Severity{SeverityLow}, SeverityLow},
		{"mixed", []Severity{SeverityLow, SeverityCritical, SeverityMedium}, SeverityCritical},
		{"all_none", []Severity{SeverityNone, SeverityNone}, SeverityNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MaxSeverity(tc.in...); got != tc.want {
				t.Fatalf("MaxSeverity(%v)=%s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseSeverityRoundTrip(t *testing.T) {
	for _, s := range []Severity{SeverityNone, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if got := ParseSeverity(s.String()); got != s {
			t.Fatalf("ParseSeverity(%q)=%s, want %s", s.String(), got, s)
		}
	}
	// An unrecognized label must never downgrade to a continuing
	// severity.
	if got := ParseSeverity("garbage"); got != SeverityHigh {
		t.Fatalf("ParseSeverity(garbage)=%s, want high", got)
	}
	if got := ParseSeverity(""); got != SeverityHigh {
		t.Fatalf("ParseSeverity(\"\")=%s, want high", got)
	}
}
