package tracker

import (
	"context"
	"time"
)

// Result holds the outcome of rescanning a single repository.
type Result struct {
	ID      string `json:"repository_id"`
	Name    string `json:"name"`
	Changes int    `json:"changes"`
	Error   string `json:"error,omitempty"`
}

// AllResult holds the outcome of rescanning every tracked repository.
type AllResult struct {
	Changed int      `json:"changed"`
	Total   int      `json:"total"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// RescanAll rescans every tracked repository. A failing repository is
// reported in its Result and does not stop the others.
func (t *Tracker) RescanAll(ctx context.Context) *AllResult {
	repos := t.GetAll()
	result := &AllResult{Total: len(repos), Results: []Result{}}
	for _, r := range repos {
		res := Result{ID: r.ID, Name: r.Name}
		_, changes, err := t.Rescan(ctx, r.ID)
		if err != nil {
			res.Error = err.Error()
			result.Failed++
			t.logger.Warn("rescan failed", "id", r.ID, "path", r.Path, "error", err)
		} else {
			res.Changes = len(changes)
			if len(changes) > 0 {
				result.Changed++
			}
		}
		result.Results = append(result.Results, res)
	}
	return result
}

// Watch calls RescanAll every ScanInterval until ctx is done, passing each
// result to fn. It returns ctx's error.
func (t *Tracker) Watch(ctx context.Context, fn func(*AllResult)) error {
	interval := t.cfg.ScanInterval
	if interval <= 0 {
		interval = DefaultConfig().ScanInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			res := t.RescanAll(ctx)
			if fn != nil {
				fn(res)
			}
		}
	}
}
