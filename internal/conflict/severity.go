package conflict

import (
	"strings"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// SeverityScore is the weighted score behind AssessSeverity.
func SeverityScore(c *models.Conflict) int {
	score := 0
	if strings.Contains(c.FilePath, "main") || strings.Contains(c.FilePath, "core") {
		score += 2
	}

	switch c.Type {
	case models.ConflictDeleteModify:
		score += 2
	case models.ConflictSemantic, models.ConflictStructural:
		score += 3
	default:
		score++
	}

	size := len(c.Content.Ours) + len(c.Content.Theirs)
	switch {
	case size > 1000:
		score += 2
	case size > 100:
		score++
	}
	return score
}

// SeverityForScore maps a score onto the severity buckets.
func SeverityForScore(score int) models.ConflictSeverity {
	switch {
	case score >= 8:
		return models.SeverityBlocking
	case score >= 6:
		return models.SeverityCritical
	case score >= 4:
		return models.SeverityMajor
	case score >= 2:
		return models.SeverityModerate
	default:
		return models.SeverityMinor
	}
}

// AssessSeverity scores c and returns the bucketed severity, never below floor.
func AssessSeverity(c *models.Conflict, floor models.ConflictSeverity) models.ConflictSeverity {
	return max(floor, SeverityForScore(SeverityScore(c)))
}
