package models

import "time"

// RepositoryState is the working-tree and HEAD snapshot of a repository.
type RepositoryState struct {
	WorkingDirectoryClean bool       `json:"working_directory_clean"`
	StagedChanges         int        `json:"staged_changes"`
	UnstagedChanges       int        `json:"unstaged_changes"`
	UntrackedFiles        int        `json:"untracked_files"`
	AheadCommits          int        `json:"ahead_commits"`
	BehindCommits         int        `json:"behind_commits"`
	StashCount            int        `json:"stash_count"`
	LastCommitHash        string     `json:"last_commit_hash,omitempty"`
	LastCommitTimestamp   *time.Time `json:"last_commit_timestamp,omitempty"`
	RepositorySizeBytes   int64      `json:"repository_size_bytes"`
}

// SetCounts records the change counts and derives WorkingDirectoryClean from them.
func (s *RepositoryState) SetCounts(staged, unstaged, untracked int) {
	s.StagedChanges = staged
	s.UnstagedChanges = unstaged
	s.UntrackedFiles = untracked
	s.WorkingDirectoryClean = staged == 0 && unstaged == 0 && untracked == 0
}

// RepositoryMetadata is descriptive information gathered during a scan.
type RepositoryMetadata struct {
	Description  string             `json:"description,omitempty"`
	Tags         []string           `json:"tags"`
	Contributors []string           `json:"contributors"`
	Languages    map[string]float64 `json:"languages"`
	License      string             `json:"license,omitempty"`
	CreatedAt    *time.Time         `json:"created_at,omitempty"`
	LastActivity *time.Time         `json:"last_activity,omitempty"`
	Custom       map[string]string  `json:"custom"`
}

// RepositoryStatistics are derived activity numbers. ActivityScore is in [0,1].
type RepositoryStatistics struct {
	TotalCommits       int     `json:"total_commits"`
	TotalFiles         int     `json:"total_files"`
	TotalLinesOfCode   int     `json:"total_lines_of_code"`
	CommitFrequency    float64 `json:"commit_frequency"`
	ActiveContributors int     `json:"active_contributors"`
	AverageCommitSize  float64 `json:"average_commit_size"`
	ActivityScore      float64 `json:"activity_score"`
}

// TrackedRepository is a registered repository and its latest scan.
type TrackedRepository struct {
	ID            string               `json:"repository_id"`
	Path          string               `json:"path"`
	Name          string               `json:"name"`
	RemoteURL     string               `json:"remote_url,omitempty"`
	CurrentBranch string               `json:"current_branch"`
	Branches      []string             `json:"branches"`
	State         RepositoryState      `json:"state"`
	Metadata      RepositoryMetadata   `json:"metadata"`
	Statistics    RepositoryStatistics `json:"statistics"`
	LastScanned   time.Time            `json:"last_scanned"`
}

// StateChangeType names what changed between two scans of a repository.
type StateChangeType string

const (
	ChangeStatus        StateChangeType = "status_change"
	ChangeBranch        StateChangeType = "branch_change"
	ChangeCommitAdded   StateChangeType = "commit_added"
	ChangeFilesModified StateChangeType = "files_modified"
	ChangeTagCreated    StateChangeType = "tag_created"
)

// StateChangeEvent records one difference observed by a rescan.
type StateChangeEvent struct {
	ID            string          `json:"event_id"`
	RepositoryID  string          `json:"repository_id"`
	Type          StateChangeType `json:"event_type"`
	Description   string          `json:"description"`
	PreviousState string          `json:"previous_state,omitempty"`
	NewState      string          `json:"new_state"`
	Timestamp     time.Time       `json:"timestamp"`
}
