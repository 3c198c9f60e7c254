package models

import (
	"fmt"
	"strings"
)

// Ordered scales are ints so that comparison operators give their declared
// order. On the wire they travel as their lowercase names.

// ConflictSeverity ranks how serious a conflict is.
type ConflictSeverity int

const (
	SeverityMinor ConflictSeverity = iota
	SeverityModerate
	SeverityMajor
	SeverityCritical
	SeverityBlocking
)

var severityNames = []string{"minor", "moderate", "major", "critical", "blocking"}

func (s ConflictSeverity) String() string { return ordinalName(severityNames, int(s)) }

func (s ConflictSeverity) MarshalText() ([]byte, error) {
	return marshalOrdinal(severityNames, int(s), "severity")
}

func (s *ConflictSeverity) UnmarshalText(b []byte) error {
	v, err := parseOrdinal(severityNames, string(b), "severity")
	if err != nil {
		return err
	}
	*s = ConflictSeverity(v)
	return nil
}

// ResolutionEffort estimates how much work a resolution needs.
type ResolutionEffort int

const (
	EffortMinimal ResolutionEffort = iota
	EffortLow
	EffortMedium
	EffortHigh
	EffortVeryHigh
)

var effortNames = []string{"minimal", "low", "medium", "high", "very_high"}

func (e ResolutionEffort) String() string { return ordinalName(effortNames, int(e)) }

func (e ResolutionEffort) MarshalText() ([]byte, error) {
	return marshalOrdinal(effortNames, int(e), "effort")
}

func (e *ResolutionEffort) UnmarshalText(b []byte) error {
	v, err := parseOrdinal(effortNames, string(b), "effort")
	if err != nil {
		return err
	}
	*e = ResolutionEffort(v)
	return nil
}

// RiskLevel ranks how likely a resolution is to introduce problems.
type RiskLevel int

const (
	RiskVeryLow RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskVeryHigh
)

var riskNames = []string{"very_low", "low", "medium", "high", "very_high"}

func (r RiskLevel) String() string { return ordinalName(riskNames, int(r)) }

func (r RiskLevel) MarshalText() ([]byte, error) {
	return marshalOrdinal(riskNames, int(r), "risk level")
}

func (r *RiskLevel) UnmarshalText(b []byte) error {
	v, err := parseOrdinal(riskNames, string(b), "risk level")
	if err != nil {
		return err
	}
	*r = RiskLevel(v)
	return nil
}

// IssueSeverity ranks repository health issues.
type IssueSeverity int

const (
	IssueSeverityLow IssueSeverity = iota
	IssueSeverityMedium
	IssueSeverityHigh
	IssueSeverityCritical
)

var issueSeverityNames = []string{"low", "medium", "high", "critical"}

func (s IssueSeverity) String() string { return ordinalName(issueSeverityNames, int(s)) }

func (s IssueSeverity) MarshalText() ([]byte, error) {
	return marshalOrdinal(issueSeverityNames, int(s), "issue severity")
}

func (s *IssueSeverity) UnmarshalText(b []byte) error {
	v, err := parseOrdinal(issueSeverityNames, string(b), "issue severity")
	if err != nil {
		return err
	}
	*s = IssueSeverity(v)
	return nil
}

func ordinalName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("unknown(%d)", v)
	}
	return names[v]
}

func marshalOrdinal(names []string, v int, what string) ([]byte, error) {
	if v < 0 || v >= len(names) {
		return nil, fmt.Errorf("invalid %s: %d", what, v)
	}
	return []byte(names[v]), nil
}

func parseOrdinal(names []string, s, what string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range names {
		if n == s {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s: %q", what, s)
}
