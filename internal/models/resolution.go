package models

import "time"

// ResolutionType is the strategy a suggested resolution follows.
type ResolutionType string

const (
	ResolutionAcceptOurs   ResolutionType = "accept_ours"
	ResolutionAcceptTheirs ResolutionType = "accept_theirs"
	ResolutionManualMerge  ResolutionType = "manual_merge"
	ResolutionAutoMerge    ResolutionType = "auto_merge"
	ResolutionRewrite      ResolutionType = "rewrite"
	ResolutionSplit        ResolutionType = "split"
	ResolutionDefer        ResolutionType = "defer"
	ResolutionEscalate     ResolutionType = "escalate"
)

// StepType tells an executor how to carry out a resolution step.
type StepType string

const (
	StepGitCommand          StepType = "git_command"
	StepFileEdit            StepType = "file_edit"
	StepCodeReview          StepType = "code_review"
	StepTestExecution       StepType = "test_execution"
	StepDocumentationUpdate StepType = "documentation_update"
	StepCeremonyInitiation  StepType = "ceremony_initiation"
	StepManualIntervention  StepType = "manual_intervention"
)

// ResolutionStep is one instruction for an external executor. Order is 1-based.
type ResolutionStep struct {
	ID          string            `json:"step_id"`
	Description string            `json:"description"`
	Type        StepType          `json:"step_type"`
	Parameters  map[string]string `json:"parameters"`
	Order       int               `json:"order"`
	Optional    bool              `json:"optional"`
}

// Resolution is a ranked suggestion for resolving a conflict.
type Resolution struct {
	ID                string           `json:"resolution_id"`
	Type              ResolutionType   `json:"resolution_type"`
	Description       string           `json:"description"`
	Confidence        float64          `json:"confidence"`
	Steps             []ResolutionStep `json:"steps"`
	EstimatedEffort   ResolutionEffort `json:"estimated_effort"`
	RiskLevel         RiskLevel        `json:"risk_level"`
	RequiredExpertise []string         `json:"required_expertise"`
}

// ResolutionOutcome is what the executor reports after applying a resolution.
type ResolutionOutcome struct {
	Success         bool     `json:"success"`
	Description     string   `json:"description"`
	QualityScore    float64  `json:"quality_score"`
	SideEffects     []string `json:"side_effects"`
	FollowUpActions []string `json:"follow_up_actions"`
}

// ResolutionRecord is an append-only history entry for one applied resolution.
type ResolutionRecord struct {
	ID                    string            `json:"record_id"`
	Conflict              Conflict          `json:"conflict"`
	Resolution            Resolution        `json:"resolution"`
	Outcome               ResolutionOutcome `json:"outcome"`
	ResolutionTimeMinutes int               `json:"resolution_time_minutes"`
	Participants          []string          `json:"participants"`
	LessonsLearned        []string          `json:"lessons_learned"`
	RecordedAt            time.Time         `json:"recorded_at"`
}
