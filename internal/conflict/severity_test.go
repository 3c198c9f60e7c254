package conflict

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func TestSeverityForScore(t *testing.T) {
	tests := []struct {
		score int
		want  models.ConflictSeverity
	}{
		{0, models.SeverityMinor},
		{1, models.SeverityMinor},
		{2, models.SeverityModerate},
		{3, models.SeverityModerate},
		{4, models.SeverityMajor},
		{5, models.SeverityMajor},
		{6, models.SeverityCritical},
		{7, models.SeverityCritical},
		{8, models.SeverityBlocking},
		{12, models.SeverityBlocking},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeverityForScore(tt.score), "score %d", tt.score)
	}
}

func TestSeverityScore(t *testing.T) {
	tests := []struct {
		name   string
		kind   models.ConflictType
		path   string
		ours   string
		theirs string
		want   int
	}{
		{"plain content", models.ConflictContent, "file.txt", "A\n", "B\n", 1},
		{"main path", models.ConflictContent, "cmd/main.go", "", "", 3},
		{"core path", models.ConflictContent, "internal/core/x.go", "", "", 3},
		{"delete modify", models.ConflictDeleteModify, "a.txt", "", "", 2},
		{"semantic", models.ConflictSemantic, "a.txt", "", "", 3},
		{"structural", models.ConflictStructural, "a.txt", "", "", 3},
		{"add add", models.ConflictAddAdd, "a.txt", "", "", 1},
		{"medium content", models.ConflictContent, "a.txt", strings.Repeat("a", 60), strings.Repeat("b", 60), 2},
		{"large content", models.ConflictContent, "a.txt", strings.Repeat("a", 600), strings.Repeat("b", 600), 3},
		{"everything", models.ConflictSemantic, "core/main.rs", strings.Repeat("a", 2000), "", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &models.Conflict{Type: tt.kind, FilePath: tt.path}
			c.Content.Ours = tt.ours
			c.Content.Theirs = tt.theirs
			assert.Equal(t, tt.want, SeverityScore(c))
		})
	}
}

func TestAssessSeverity_Floor(t *testing.T) {
	c := &models.Conflict{Type: models.ConflictContent, FilePath: "file.txt"}
	assert.Equal(t, models.SeverityMinor, AssessSeverity(c, models.SeverityMinor))
	assert.Equal(t, models.SeverityMajor, AssessSeverity(c, models.SeverityMajor))

	c.Type = models.ConflictSemantic
	c.FilePath = "core/main.rs"
	c.Content.Ours = strings.Repeat("a", 2000)
	assert.Equal(t, models.SeverityCritical, AssessSeverity(c, models.SeverityMajor))
}
