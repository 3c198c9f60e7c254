package models

import "time"

// HealthStatus is the overall verdict for a repository.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthFailed   HealthStatus = "failed"
	HealthUnknown  HealthStatus = "unknown"
)

// HealthCheckStatus is the result of a single check.
type HealthCheckStatus string

const (
	CheckPassed  HealthCheckStatus = "passed"
	CheckFailed  HealthCheckStatus = "failed"
	CheckSkipped HealthCheckStatus = "skipped"
	CheckTimeout HealthCheckStatus = "timeout"
)

// HealthCheck records one check run.
type HealthCheck struct {
	Name       string            `json:"name"`
	Status     HealthCheckStatus `json:"status"`
	Message    string            `json:"message"`
	DurationMS int64             `json:"duration_ms"`
	Timestamp  time.Time         `json:"timestamp"`
}

// HealthIssueType categorizes a health issue.
type HealthIssueType string

const (
	IssueCorruption       HealthIssueType = "corruption"
	IssueMissingFiles     HealthIssueType = "missing_files"
	IssuePermissionDenied HealthIssueType = "permission_denied"
	IssueNetwork          HealthIssueType = "network_issues"
	IssueDiskSpace        HealthIssueType = "disk_space"
	IssueConfiguration    HealthIssueType = "configuration"
	IssuePerformance      HealthIssueType = "performance"
	IssueSecurity         HealthIssueType = "security"
)

// IssueResolutionStatus tracks whether a health issue has been dealt with.
type IssueResolutionStatus string

const (
	IssueOpen       IssueResolutionStatus = "open"
	IssueInProgress IssueResolutionStatus = "in_progress"
	IssueResolved   IssueResolutionStatus = "resolved"
	IssueIgnored    IssueResolutionStatus = "ignored"
	IssueFailed     IssueResolutionStatus = "failed"
)

// HealthIssue is a problem found by a health check.
type HealthIssue struct {
	ID               string                `json:"issue_id"`
	Type             HealthIssueType       `json:"issue_type"`
	Severity         IssueSeverity         `json:"severity"`
	Description      string                `json:"description"`
	DetectedAt       time.Time             `json:"detected_at"`
	SuggestedFix     string                `json:"suggested_fix,omitempty"`
	ResolutionStatus IssueResolutionStatus `json:"resolution_status"`
}

// RepositoryHealth is the result of a full health check. Score is in [0,1].
type RepositoryHealth struct {
	Status          HealthStatus  `json:"status"`
	Score           float64       `json:"score"`
	Checks          []HealthCheck `json:"checks"`
	Issues          []HealthIssue `json:"issues"`
	Recommendations []string      `json:"recommendations"`
	LastChecked     time.Time     `json:"last_checked"`
}
