package models

import (
	"maps"
	"slices"
)

// Clone returns a deep copy of c.
func (c Conflict) Clone() Conflict {
	out := c
	out.ConflictingRefs = slices.Clone(c.ConflictingRefs)
	out.Metadata = maps.Clone(c.Metadata)
	out.Location.StartColumn = clonePtr(c.Location.StartColumn)
	out.Location.EndColumn = clonePtr(c.Location.EndColumn)
	out.Content.Base = clonePtr(c.Content.Base)
	if c.Resolutions != nil {
		out.Resolutions = make([]Resolution, len(c.Resolutions))
		for i, r := range c.Resolutions {
			out.Resolutions[i] = r.Clone()
		}
	}
	return out
}

// Clone returns a deep copy of r.
func (r Resolution) Clone() Resolution {
	out := r
	out.RequiredExpertise = slices.Clone(r.RequiredExpertise)
	if r.Steps != nil {
		out.Steps = make([]ResolutionStep, len(r.Steps))
		for i, s := range r.Steps {
			s.Parameters = maps.Clone(s.Parameters)
			out.Steps[i] = s
		}
	}
	return out
}

// CloneConflicts deep-copies every conflict in cs.
func CloneConflicts(cs []Conflict) []Conflict {
	if cs == nil {
		return nil
	}
	out := make([]Conflict, len(cs))
	for i, c := range cs {
		out[i] = c.Clone()
	}
	return out
}

// Clone returns a deep copy of r.
func (r ResolutionRecord) Clone() ResolutionRecord {
	out := r
	out.Conflict = r.Conflict.Clone()
	out.Resolution = r.Resolution.Clone()
	out.Outcome.SideEffects = slices.Clone(r.Outcome.SideEffects)
	out.Outcome.FollowUpActions = slices.Clone(r.Outcome.FollowUpActions)
	out.Participants = slices.Clone(r.Participants)
	out.LessonsLearned = slices.Clone(r.LessonsLearned)
	return out
}

// Clone returns a deep copy of p.
func (p ConflictPattern) Clone() ConflictPattern {
	out := p
	out.ConflictTypes = slices.Clone(p.ConflictTypes)
	out.FilePatterns = slices.Clone(p.FilePatterns)
	out.TypicalResolutions = slices.Clone(p.TypicalResolutions)
	return out
}

// Clone returns a deep copy of r.
func (r *TrackedRepository) Clone() *TrackedRepository {
	if r == nil {
		return nil
	}
	out := *r
	out.Branches = slices.Clone(r.Branches)
	out.State.LastCommitTimestamp = clonePtr(r.State.LastCommitTimestamp)
	out.Metadata.Tags = slices.Clone(r.Metadata.Tags)
	out.Metadata.Contributors = slices.Clone(r.Metadata.Contributors)
	out.Metadata.Languages = maps.Clone(r.Metadata.Languages)
	out.Metadata.Custom = maps.Clone(r.Metadata.Custom)
	out.Metadata.CreatedAt = clonePtr(r.Metadata.CreatedAt)
	out.Metadata.LastActivity = clonePtr(r.Metadata.LastActivity)
	return &out
}

// Clone returns a deep copy of h.
func (h *RepositoryHealth) Clone() *RepositoryHealth {
	if h == nil {
		return nil
	}
	out := *h
	out.Checks = slices.Clone(h.Checks)
	out.Issues = slices.Clone(h.Issues)
	out.Recommendations = slices.Clone(h.Recommendations)
	return &out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
