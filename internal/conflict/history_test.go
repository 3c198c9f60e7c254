package conflict

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func detectOne(t *testing.T, d *Detector, files ...string) []models.Conflict {
	t.Helper()
	var entries []git.StatusEntry
	for _, f := range files {
		entries = append(entries, unmergedEntry("UU", f))
	}
	d.git = &fakeGit{status: &git.Status{Entries: entries}}
	conflicts, err := d.DetectConflicts(context.Background(), t.TempDir())
	require.NoError(t, err)
	require.Len(t, conflicts, len(files))
	return conflicts
}

func TestStatistics_Empty(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	stats := d.Statistics()
	assert.Zero(t, stats.TotalConflicts)
	assert.Zero(t, stats.ResolutionRate)
	assert.Zero(t, stats.AverageResolutionMins)
	assert.Empty(t, stats.TypeDistribution)
}

func TestStatistics(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	ctx := context.Background()
	first := detectOne(t, d, "a.go", "b.go")
	detectOne(t, d, "c.md")

	_, err := d.RecordResolution(ctx, first[0], first[0].Resolutions[0], models.ResolutionOutcome{Success: true}, 10, nil, nil)
	require.NoError(t, err)
	_, err = d.RecordResolution(ctx, first[1], first[1].Resolutions[1], models.ResolutionOutcome{Success: false}, 20, nil, nil)
	require.NoError(t, err)

	stats := d.Statistics()
	assert.Equal(t, 5, stats.TotalConflicts)
	assert.Equal(t, 2, stats.ResolvedConflicts)
	assert.InDelta(t, 0.4, stats.ResolutionRate, 1e-9)
	assert.InDelta(t, 15.0, stats.AverageResolutionMins, 1e-9)

	sum := 0
	for _, n := range stats.TypeDistribution {
		sum += n
	}
	assert.Equal(t, 3, sum)
	assert.Equal(t, 3, stats.TypeDistribution[models.ConflictContent])
}

func TestRecordResolution(t *testing.T) {
	sink := &memorySink{}
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil, WithHistorySink(sink))
	ctx := context.Background()
	c := detectOne(t, d, "a.go")[0]

	rec, err := d.RecordResolution(ctx, c, c.Resolutions[0],
		models.ResolutionOutcome{Success: true, QualityScore: 0.8}, 5, []string{"alice"}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, models.StatusResolved, rec.Conflict.ResolutionStatus)
	assert.Equal(t, []string{"alice"}, rec.Participants)
	assert.Equal(t, []string{}, rec.LessonsLearned)
	assert.False(t, rec.RecordedAt.IsZero())

	cached, err := d.Conflict(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, cached.ResolutionStatus)

	require.Len(t, sink.records, 1)
	assert.Equal(t, rec.ID, sink.records[0].ID)
	assert.Len(t, d.History(), 1)

	_, err = d.RecordResolution(ctx, c, c.Resolutions[1], models.ResolutionOutcome{}, 1, nil, nil)
	assert.True(t, errors.Is(err, ErrTerminalStatus))
	assert.Len(t, d.History(), 1)
}

func TestRecordResolution_Failed(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	c := detectOne(t, d, "a.go")[0]

	rec, err := d.RecordResolution(context.Background(), c, c.Resolutions[0], models.ResolutionOutcome{}, 3, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.Conflict.ResolutionStatus)
}

func TestStatusTransitions(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	conflicts := detectOne(t, d, "a.go", "b.go")

	// Deferring or escalating needs the conflict to be in progress first.
	assert.True(t, errors.Is(d.Defer(conflicts[0].ID), ErrInvalidTransition))
	assert.True(t, errors.Is(d.Escalate(conflicts[0].ID), ErrInvalidTransition))

	require.NoError(t, d.MarkInProgress(conflicts[0].ID))
	c, err := d.Conflict(conflicts[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, c.ResolutionStatus)
	assert.True(t, errors.Is(d.MarkInProgress(conflicts[0].ID), ErrInvalidTransition))

	require.NoError(t, d.Defer(conflicts[0].ID))
	assert.True(t, errors.Is(d.MarkInProgress(conflicts[0].ID), ErrTerminalStatus))

	require.NoError(t, d.MarkInProgress(conflicts[1].ID))
	require.NoError(t, d.Escalate(conflicts[1].ID))
	assert.True(t, errors.Is(d.Defer(conflicts[1].ID), ErrTerminalStatus))

	assert.True(t, errors.Is(d.Escalate("missing"), ErrConflictNotFound))
	_, err = d.Conflict("missing")
	assert.True(t, errors.Is(err, ErrConflictNotFound))
}

func TestRecordResolution_InvalidOutcome(t *testing.T) {
	sink := &memorySink{}
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil, WithHistorySink(sink))
	ctx := context.Background()
	c := detectOne(t, d, "a.go")[0]

	tests := []struct {
		name    string
		quality float64
		minutes int
	}{
		{"quality above one", 7.5, 1},
		{"negative quality", -0.1, 1},
		{"negative minutes", 0.5, -30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.RecordResolution(ctx, c, c.Resolutions[0],
				models.ResolutionOutcome{Success: true, QualityScore: tt.quality}, tt.minutes, nil, nil)
			assert.True(t, errors.Is(err, ErrInvalidOutcome))
		})
	}

	assert.Empty(t, d.History())
	assert.Empty(t, sink.records)
	cached, err := d.Conflict(c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDetected, cached.ResolutionStatus)
	assert.Zero(t, d.Statistics().AverageResolutionMins)

	_, err = d.RecordResolution(ctx, c, c.Resolutions[0],
		models.ResolutionOutcome{Success: true, QualityScore: 1}, 0, nil, nil)
	assert.NoError(t, err)
}

func TestHistory_ReturnsCopies(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	c := detectOne(t, d, "a.go")[0]
	_, err := d.RecordResolution(context.Background(), c, c.Resolutions[0],
		models.ResolutionOutcome{Success: true}, 2, []string{"alice"}, nil)
	require.NoError(t, err)

	h := d.History()
	h[0].Participants[0] = "mallory"
	h[0].Conflict.Metadata["edited"] = "yes"

	again := d.History()
	assert.Equal(t, []string{"alice"}, again[0].Participants)
	assert.NotContains(t, again[0].Conflict.Metadata, "edited")
}

func TestLearnPatterns(t *testing.T) {
	sink := &memorySink{}
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil, WithHistorySink(sink))
	ctx := context.Background()
	conflicts := detectOne(t, d, "a.go", "b.go")

	for _, c := range conflicts {
		_, err := d.RecordResolution(ctx, c, c.Resolutions[0], models.ResolutionOutcome{Success: true}, 1, nil, nil)
		require.NoError(t, err)
	}

	learned, err := d.LearnPatterns(ctx)
	require.NoError(t, err)
	require.Len(t, learned, 1)
	assert.Equal(t, 2, learned[0].Frequency)
	assert.Equal(t, 1, d.Statistics().PatternsLearned)
	assert.Equal(t, learned, sink.patterns)

	next := detectOne(t, d, "pkg/c.go")[0]
	assert.Len(t, d.MatchingPatterns(next), 1)
}

func TestRestore(t *testing.T) {
	d := NewDetector(DefaultConfig(), &fakeGit{}, nil)
	d.Restore(
		[]models.ResolutionRecord{{ID: "r1", ResolutionTimeMinutes: 4}},
		[]models.ConflictPattern{{ID: "p1"}},
	)
	assert.Len(t, d.History(), 1)
	assert.Len(t, d.Patterns(), 1)
	stats := d.Statistics()
	assert.Equal(t, 1, stats.TotalConflicts)
	assert.Equal(t, 1.0, stats.ResolutionRate)
	assert.Equal(t, 1, stats.PatternsLearned)
}
