package tracker

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func TestActivityScore(t *testing.T) {
	tests := []struct {
		name         string
		frequency    float64
		contributors int
		commits      int
		want         float64
	}{
		{"idle", 0, 0, 0, 0},
		{"small", 0.5, 1, 10, 0.2 + 0.3 + 0.03},
		{"many contributors", 0, 1000, 0, 1},
		{"many commits", 0, 0, 1_000_000, 1},
		{"huge frequency", 1e9, 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActivityScore(tt.frequency, tt.contributors, tt.commits)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.GreaterOrEqual(t, got, 0.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestCommitFrequency(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tenDaysAgo := now.Add(-10 * 24 * time.Hour)
	anHourAgo := now.Add(-time.Hour)

	assert.InDelta(t, 5.0, CommitFrequency(50, &tenDaysAgo, now), 1e-9)
	assert.InDelta(t, 7.0, CommitFrequency(7, &anHourAgo, now), 1e-9)
	assert.InDelta(t, 3.0, CommitFrequency(3, nil, now), 1e-9)
	assert.Zero(t, CommitFrequency(0, nil, now))
}

func TestDetectLicense(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"mit", "LICENSE", "MIT License\n\nCopyright (c) 2024\n", "MIT"},
		{"mit body", "LICENSE.md", "Copyright 2024 Someone\n\nPermission is hereby granted, free of charge, to any person\n", "MIT"},
		{"apache", "LICENSE.txt", "\n                                 Apache License\n                           Version 2.0, January 2004\n", "Apache-2.0"},
		{"gpl", "COPYING", "                    GNU GENERAL PUBLIC LICENSE\n                       Version 3, 29 June 2007\n", "GPL"},
		{"lgpl", "COPYING", "GNU LESSER GENERAL PUBLIC LICENSE\n", "LGPL"},
		{"unknown", "LICENSE", "\nAcme Proprietary Terms\nAll rights reserved.\n", "Acme Proprietary Terms"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, tt.file), []byte(tt.content), 0644))
			assert.Equal(t, tt.want, DetectLicense(dir))
		})
	}

	assert.Empty(t, DetectLicense(t.TempDir()))
}

func TestDiff(t *testing.T) {
	at := time.Now()
	prev := &models.TrackedRepository{ID: "r1", CurrentBranch: "main"}
	prev.State.SetCounts(0, 0, 0)
	prev.State.LastCommitHash = "aaa"
	prev.Metadata.Tags = []string{"v1"}

	same := *prev
	assert.Empty(t, Diff(prev, &same, at))

	next := *prev
	next.CurrentBranch = "dev"
	next.State.SetCounts(2, 0, 0)
	next.State.LastCommitHash = "bbb"
	next.Metadata.Tags = []string{"v1", "v2"}

	events := Diff(prev, &next, at)
	require.Len(t, events, 5)
	assert.Equal(t, models.ChangeBranch, events[0].Type)
	assert.Equal(t, "main", events[0].PreviousState)
	assert.Equal(t, "dev", events[0].NewState)
	assert.Equal(t, models.ChangeCommitAdded, events[1].Type)
	assert.Equal(t, models.ChangeStatus, events[2].Type)
	assert.Equal(t, "dirty", events[2].NewState)
	assert.Equal(t, models.ChangeFilesModified, events[3].Type)
	assert.Equal(t, "staged=2 unstaged=0 untracked=0", events[3].NewState)
	assert.Equal(t, models.ChangeTagCreated, events[4].Type)
	assert.Equal(t, "v2", events[4].NewState)
	for _, e := range events {
		assert.Equal(t, "r1", e.RepositoryID)
		assert.Equal(t, at, e.Timestamp)
		assert.NotEmpty(t, e.ID)
	}
}
