package models

import "time"

// ConflictType is the closed set of conflict kinds.
type ConflictType string

const (
	ConflictContent      ConflictType = "content_conflict"
	ConflictDeleteModify ConflictType = "delete_modify"
	ConflictAddAdd       ConflictType = "add_add"
	ConflictRenameRename ConflictType = "rename_rename"
	ConflictMode         ConflictType = "mode_conflict"
	ConflictSubmodule    ConflictType = "submodule_conflict"
	ConflictSemantic     ConflictType = "semantic_conflict"
	ConflictStructural   ConflictType = "structural_conflict"
	ConflictAttribution  ConflictType = "attribution_conflict"
	ConflictDependency   ConflictType = "dependency_conflict"
)

// ContentCategory classifies a file by what it holds.
type ContentCategory string

const (
	ContentText          ContentCategory = "text"
	ContentBinary        ContentCategory = "binary"
	ContentImage         ContentCategory = "image"
	ContentConfiguration ContentCategory = "configuration"
	ContentSourceCode    ContentCategory = "source_code"
	ContentDocumentation ContentCategory = "documentation"
)

// ResolutionStatus tracks a conflict from detection to its outcome.
type ResolutionStatus string

const (
	StatusDetected   ResolutionStatus = "detected"
	StatusInProgress ResolutionStatus = "in_progress"
	StatusResolved   ResolutionStatus = "resolved"
	StatusFailed     ResolutionStatus = "failed"
	StatusDeferred   ResolutionStatus = "deferred"
	StatusEscalated  ResolutionStatus = "escalated"
)

// Terminal reports whether no further transition is allowed from s.
func (s ResolutionStatus) Terminal() bool {
	switch s {
	case StatusResolved, StatusFailed, StatusDeferred, StatusEscalated:
		return true
	}
	return false
}

// ConflictLocation is the 1-based line span of the first marker block.
type ConflictLocation struct {
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	StartColumn *int   `json:"start_column,omitempty"`
	EndColumn   *int   `json:"end_column,omitempty"`
	Context     string `json:"context,omitempty"`
}

// ConflictText holds both sides of a conflict and, for diff3 markers, the base.
type ConflictText struct {
	Ours       string          `json:"ours"`
	Theirs     string          `json:"theirs"`
	Base       *string         `json:"base,omitempty"`
	HasMarkers bool            `json:"has_markers"`
	Category   ContentCategory `json:"content_type"`
}

// Conflict is one detected conflict. Severity is derived by the detector's
// analysis and Status only moves through the detector's record keeping.
type Conflict struct {
	ID               string            `json:"conflict_id"`
	Type             ConflictType      `json:"conflict_type"`
	Severity         ConflictSeverity  `json:"severity"`
	FilePath         string            `json:"file_path"`
	Location         ConflictLocation  `json:"location"`
	Description      string            `json:"description"`
	ConflictingRefs  []string          `json:"conflicting_refs"`
	Content          ConflictText      `json:"conflict_content"`
	Resolutions      []Resolution      `json:"suggested_resolutions"`
	Metadata         map[string]string `json:"metadata"`
	DetectedAt       time.Time         `json:"detected_at"`
	ResolutionStatus ResolutionStatus  `json:"resolution_status"`
}

// ConflictPattern is a recurring conflict shape mined from resolution history.
type ConflictPattern struct {
	ID                 string           `json:"pattern_id"`
	Name               string           `json:"name"`
	ConflictTypes      []ConflictType   `json:"conflict_types"`
	FilePatterns       []string         `json:"file_patterns"`
	TypicalResolutions []ResolutionType `json:"typical_resolutions"`
	Frequency          int              `json:"frequency"`
	SuccessRate        float64          `json:"success_rate"`
	Confidence         float64          `json:"confidence"`
}

// ConflictStatistics summarizes the detector's cache and history.
type ConflictStatistics struct {
	TotalConflicts        int                  `json:"total_conflicts"`
	ResolvedConflicts     int                  `json:"resolved_conflicts"`
	ResolutionRate        float64              `json:"resolution_rate"`
	AverageResolutionMins float64              `json:"average_resolution_time_minutes"`
	TypeDistribution      map[ConflictType]int `json:"conflict_type_distribution"`
	PatternsLearned       int                  `json:"patterns_learned"`
}

// ParseSeverity parses a severity name such as "major".
func ParseSeverity(s string) (ConflictSeverity, error) {
	var sev ConflictSeverity
	err := sev.UnmarshalText([]byte(s))
	return sev, err
}
