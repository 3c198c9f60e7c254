package tracker

import (
	"fmt"
	"slices"
	"time"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func cleanLabel(clean bool) string {
	if clean {
		return "clean"
	}
	return "dirty"
}

func countsLabel(s models.RepositoryState) string {
	return fmt.Sprintf("staged=%d unstaged=%d untracked=%d", s.StagedChanges, s.UnstagedChanges, s.UntrackedFiles)
}

// Diff lists what changed between two scans of the same repository.
func Diff(prev, next *models.TrackedRepository, at time.Time) []models.StateChangeEvent {
	var events []models.StateChangeEvent
	add := func(kind models.StateChangeType, desc, before, after string) {
		events = append(events, models.StateChangeEvent{
			ID:            models.NewID(),
			RepositoryID:  next.ID,
			Type:          kind,
			Description:   desc,
			PreviousState: before,
			NewState:      after,
			Timestamp:     at,
		})
	}

	if prev.CurrentBranch != next.CurrentBranch {
		add(models.ChangeBranch, "switched branch", prev.CurrentBranch, next.CurrentBranch)
	}
	if next.State.LastCommitHash != "" && prev.State.LastCommitHash != next.State.LastCommitHash {
		add(models.ChangeCommitAdded, "HEAD moved to a new commit", prev.State.LastCommitHash, next.State.LastCommitHash)
	}
	if prev.State.WorkingDirectoryClean != next.State.WorkingDirectoryClean {
		add(models.ChangeStatus, "working tree became "+cleanLabel(next.State.WorkingDirectoryClean),
			cleanLabel(prev.State.WorkingDirectoryClean), cleanLabel(next.State.WorkingDirectoryClean))
	}
	if before, after := countsLabel(prev.State), countsLabel(next.State); before != after {
		add(models.ChangeFilesModified, "file change counts changed", before, after)
	}
	for _, tag := range next.Metadata.Tags {
		if !slices.Contains(prev.Metadata.Tags, tag) {
			add(models.ChangeTagCreated, "tag "+tag+" created", "", tag)
		}
	}
	return events
}
