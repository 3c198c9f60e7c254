package conflict

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/BalansCollective/weavemesh-git/internal/models"
	"github.com/BalansCollective/weavemesh-git/internal/patterns"
)

// Statistics summarizes cached conflicts and resolution history.
func (d *Detector) Statistics() models.ConflictStatistics {
	d.mu.Lock()
	defer d.mu.Unlock()

	stats := models.ConflictStatistics{
		TypeDistribution: make(map[models.ConflictType]int),
		PatternsLearned:  len(d.patterns),
	}
	cached := 0
	d.cache.each(func(_ string, conflicts []models.Conflict) {
		cached += len(conflicts)
		for _, c := range conflicts {
			stats.TypeDistribution[c.Type]++
		}
	})

	stats.ResolvedConflicts = len(d.history)
	stats.TotalConflicts = cached + stats.ResolvedConflicts
	if stats.TotalConflicts > 0 {
		stats.ResolutionRate = float64(stats.ResolvedConflicts) / float64(stats.TotalConflicts)
	}
	if len(d.history) > 0 {
		total := 0
		for _, r := range d.history {
			total += r.ResolutionTimeMinutes
		}
		stats.AverageResolutionMins = float64(total) / float64(len(d.history))
	}
	return stats
}

// Conflict looks up a cached conflict by id.
func (d *Detector) Conflict(id string) (models.Conflict, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.findLocked(id)
	if c == nil {
		return models.Conflict{}, fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	return c.Clone(), nil
}

func (d *Detector) findLocked(id string) *models.Conflict {
	var found *models.Conflict
	d.cache.each(func(_ string, conflicts []models.Conflict) {
		for i := range conflicts {
			if conflicts[i].ID == id {
				found = &conflicts[i]
			}
		}
	})
	return found
}

// transition moves a cached conflict from one of the from statuses to to.
func (d *Detector) transition(id string, to models.ResolutionStatus, from ...models.ResolutionStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	c := d.findLocked(id)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrConflictNotFound, id)
	}
	if c.ResolutionStatus.Terminal() {
		return fmt.Errorf("%w: %s is %s", ErrTerminalStatus, id, c.ResolutionStatus)
	}
	if !slices.Contains(from, c.ResolutionStatus) {
		return fmt.Errorf("%w: %s cannot move from %s to %s", ErrInvalidTransition, id, c.ResolutionStatus, to)
	}
	c.ResolutionStatus = to
	return nil
}

// MarkInProgress records that someone has started resolving a detected conflict.
func (d *Detector) MarkInProgress(id string) error {
	return d.transition(id, models.StatusInProgress, models.StatusDetected)
}

// Defer parks a conflict that is in progress.
func (d *Detector) Defer(id string) error {
	return d.transition(id, models.StatusDeferred, models.StatusInProgress)
}

// Escalate hands a conflict that is in progress to someone else.
func (d *Detector) Escalate(id string) error {
	return d.transition(id, models.StatusEscalated, models.StatusInProgress)
}

func validateOutcome(outcome models.ResolutionOutcome, minutes int) error {
	if outcome.QualityScore < 0 || outcome.QualityScore > 1 || math.IsNaN(outcome.QualityScore) {
		return fmt.Errorf("%w: quality score %v is outside [0,1]", ErrInvalidOutcome, outcome.QualityScore)
	}
	if minutes < 0 {
		return fmt.Errorf("%w: negative resolution time %d", ErrInvalidOutcome, minutes)
	}
	return nil
}

// RecordResolution appends a history record for a resolution applied by an
// external executor. The conflict's status becomes Resolved or Failed
// depending on the outcome, both in the record and in the cache. A Detected
// conflict is treated as having been in progress.
func (d *Detector) RecordResolution(
	ctx context.Context,
	c models.Conflict,
	res models.Resolution,
	outcome models.ResolutionOutcome,
	minutes int,
	participants, lessons []string,
) (*models.ResolutionRecord, error) {
	if err := validateOutcome(outcome, minutes); err != nil {
		return nil, err
	}
	status := models.StatusFailed
	if outcome.Success {
		status = models.StatusResolved
	}

	d.mu.Lock()
	if cached := d.findLocked(c.ID); cached != nil {
		if cached.ResolutionStatus.Terminal() {
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: %s is %s", ErrTerminalStatus, c.ID, cached.ResolutionStatus)
		}
		cached.ResolutionStatus = status
	}
	c = c.Clone()
	c.ResolutionStatus = status
	rec := models.ResolutionRecord{
		ID:                    models.NewID(),
		Conflict:              c,
		Resolution:            res.Clone(),
		Outcome:               outcome,
		ResolutionTimeMinutes: minutes,
		Participants:          nonNil(slices.Clone(participants)),
		LessonsLearned:        nonNil(slices.Clone(lessons)),
		RecordedAt:            d.now(),
	}
	rec.Outcome.SideEffects = slices.Clone(outcome.SideEffects)
	rec.Outcome.FollowUpActions = slices.Clone(outcome.FollowUpActions)
	d.history = append(d.history, rec)
	d.mu.Unlock()

	out := rec.Clone()
	if d.sink != nil {
		if err := d.sink.AddResolutionRecord(ctx, &out); err != nil {
			return &out, fmt.Errorf("persist resolution record: %w", err)
		}
	}
	d.logger.Info("resolution recorded", "conflict", c.ID, "resolution", res.Type, "success", outcome.Success)
	return &out, nil
}

// History returns a copy of the resolution history.
func (d *Detector) History() []models.ResolutionRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ResolutionRecord, len(d.history))
	for i, r := range d.history {
		out[i] = r.Clone()
	}
	return out
}

// Patterns returns a copy of the learned patterns.
func (d *Detector) Patterns() []models.ConflictPattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]models.ConflictPattern, len(d.patterns))
	for i, p := range d.patterns {
		out[i] = p.Clone()
	}
	return out
}

// Restore seeds history and patterns, typically from the store at startup.
func (d *Detector) Restore(history []models.ResolutionRecord, learned []models.ConflictPattern) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append([]models.ResolutionRecord(nil), history...)
	d.patterns = append([]models.ConflictPattern(nil), learned...)
}

// LearnPatterns mines the resolution history and replaces the learned
// pattern collection with the result.
func (d *Detector) LearnPatterns(ctx context.Context) ([]models.ConflictPattern, error) {
	d.mu.Lock()
	learned := patterns.Mine(d.history)
	if learned == nil {
		learned = []models.ConflictPattern{}
	}
	d.patterns = learned
	out := make([]models.ConflictPattern, len(learned))
	for i, p := range learned {
		out[i] = p.Clone()
	}
	d.mu.Unlock()

	if d.sink != nil {
		if err := d.sink.ReplacePatterns(ctx, out); err != nil {
			return out, fmt.Errorf("persist patterns: %w", err)
		}
	}
	d.logger.Info("patterns learned", "count", len(out))
	return out, nil
}

// MatchingPatterns returns the learned patterns that apply to c.
func (d *Detector) MatchingPatterns(c models.Conflict) []models.ConflictPattern {
	d.mu.Lock()
	defer d.mu.Unlock()
	matched := patterns.Match(d.patterns, c)
	for i := range matched {
		matched[i] = matched[i].Clone()
	}
	return matched
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
