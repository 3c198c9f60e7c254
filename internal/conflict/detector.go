// Package conflict detects merge conflicts in a working copy, analyzes them
// and suggests resolutions.
package conflict

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BalansCollective/weavemesh-git/internal/classify"
	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

var (
	ErrConflictNotFound  = errors.New("conflict not found")
	ErrTerminalStatus    = errors.New("conflict already has a final status")
	ErrInvalidTransition = errors.New("invalid conflict status transition")
	ErrInvalidOutcome    = errors.New("invalid resolution outcome")
)

// HistorySink persists resolution history and learned patterns.
type HistorySink interface {
	AddResolutionRecord(ctx context.Context, rec *models.ResolutionRecord) error
	ReplacePatterns(ctx context.Context, patterns []models.ConflictPattern) error
}

// Option configures a Detector.
type Option func(*Detector)

// WithSemanticStrategy replaces NoSemanticStrategy.
func WithSemanticStrategy(s Strategy) Option { return func(d *Detector) { d.semantic = s } }

// WithProactiveStrategy replaces NoProactiveStrategy.
func WithProactiveStrategy(s Strategy) Option { return func(d *Detector) { d.proactive = s } }

// WithHistorySink persists every recorded resolution and learned pattern.
func WithHistorySink(s HistorySink) Option { return func(d *Detector) { d.sink = s } }

// Detector finds and analyzes conflicts. It is safe for concurrent use; two
// concurrent detections of the same uncached path both scan and the later
// one wins the cache slot.
type Detector struct {
	cfg       Config
	git       git.Client
	logger    *slog.Logger
	semantic  Strategy
	proactive Strategy
	sink      HistorySink
	now       func() time.Time

	mu       sync.Mutex
	cache    *resultCache
	aliases  map[string]string // caller path -> repository root
	history  []models.ResolutionRecord
	patterns []models.ConflictPattern
}

// NewDetector creates a Detector. A nil logger uses slog.Default().
func NewDetector(cfg Config, gc git.Client, logger *slog.Logger, opts ...Option) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Detector{
		cfg:       cfg,
		git:       gc,
		logger:    logger,
		semantic:  NoSemanticStrategy{},
		proactive: NoProactiveStrategy{},
		now:       time.Now,
		cache:     newResultCache(cfg.CacheSize),
		aliases:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func cacheKey(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

// DetectConflicts returns the conflicts in the repository at path. Results
// are cached per repository root until evicted or invalidated, so any path
// inside the same working tree shares one entry.
func (d *Detector) DetectConflicts(ctx context.Context, path string) ([]models.Conflict, error) {
	key := cacheKey(path)

	if out, ok := d.cached(key); ok {
		d.logger.Debug("conflict cache hit", "path", key, "conflicts", len(out))
		return out, nil
	}

	if d.cfg.AnalysisTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.AnalysisTimeout)
		defer cancel()
	}

	root, err := d.git.RepoRoot(ctx, key)
	if err != nil {
		return nil, err
	}
	root = cacheKey(root)

	d.mu.Lock()
	if root != key {
		d.aliases[key] = root
	}
	d.mu.Unlock()
	if out, ok := d.cached(root); ok {
		d.logger.Debug("conflict cache hit", "path", key, "root", root, "conflicts", len(out))
		return out, nil
	}

	found, err := d.scan(ctx, root)
	if err != nil {
		return nil, err
	}

	for i := range found {
		d.analyze(root, &found[i].conflict, found[i].floor)
		found[i].conflict.Resolutions = GenerateResolutions(&found[i].conflict)
	}

	conflicts := make([]models.Conflict, 0, len(found))
	for _, f := range found {
		conflicts = append(conflicts, f.conflict)
	}

	d.mu.Lock()
	if d.cache.put(root, conflicts) {
		d.pruneAliasesLocked()
		d.logger.Debug("conflict cache evicted an entry", "size", d.cache.len())
	}
	out := models.CloneConflicts(conflicts)
	d.mu.Unlock()

	d.logger.Info("conflict detection finished", "path", root, "conflicts", len(conflicts))
	return out, nil
}

// cached returns a deep copy of the entry for key, following an alias to the
// repository root when key is a path inside it.
func (d *Detector) cached(key string) ([]models.Conflict, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if root, ok := d.aliases[key]; ok {
		key = root
	}
	conflicts, ok := d.cache.get(key)
	if !ok {
		return nil, false
	}
	return models.CloneConflicts(conflicts), true
}

func (d *Detector) pruneAliasesLocked() {
	for alias, root := range d.aliases {
		if !d.cache.contains(root) {
			delete(d.aliases, alias)
		}
	}
}

// Invalidate drops the cached result for path, or for the repository that
// contains it, so the next call rescans.
func (d *Detector) Invalidate(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := cacheKey(path)
	if root, ok := d.aliases[key]; ok {
		key = root
	}
	d.cache.remove(key)
	d.pruneAliasesLocked()
}

type candidate struct {
	conflict models.Conflict
	floor    models.ConflictSeverity
}

// scan runs the sub-detectors in order and stops at the first failure.
func (d *Detector) scan(ctx context.Context, root string) ([]candidate, error) {
	merged, err := d.mergeStateConflicts(ctx, root)
	if err != nil {
		return nil, err
	}
	found := merged

	seen := make(map[string]bool, len(merged))
	for _, c := range merged {
		seen[c.conflict.FilePath] = true
	}
	status, err := d.statusConflicts(ctx, root, seen)
	if err != nil {
		return nil, err
	}
	found = append(found, status...)

	for _, s := range []struct {
		strategy Strategy
		enabled  bool
	}{
		{d.semantic, d.cfg.EnableSemanticDetection},
		{d.proactive, d.cfg.EnableProactiveDetection},
	} {
		if !s.enabled || s.strategy == nil {
			continue
		}
		extra, err := s.strategy.Detect(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("%s detection: %w", s.strategy.Name(), err)
		}
		d.logger.Debug("strategy finished", "strategy", s.strategy.Name(), "conflicts", len(extra))
		for _, c := range extra {
			found = append(found, candidate{conflict: d.prepare(c), floor: models.SeverityMinor})
		}
	}
	return found, nil
}

func (d *Detector) mergeStateConflicts(ctx context.Context, root string) ([]candidate, error) {
	merging, err := d.git.MergeInProgress(ctx, root)
	if err != nil {
		return nil, err
	}
	if !merging {
		return nil, nil
	}
	paths, err := d.git.UnmergedPaths(ctx, root)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(paths))
	for _, p := range paths {
		c := d.newConflict(models.ConflictContent, p, fmt.Sprintf("Merge conflict in %s", p))
		c.ConflictingRefs = []string{"HEAD", "MERGE_HEAD"}
		c.Content.HasMarkers = true
		out = append(out, candidate{conflict: c, floor: models.SeverityMajor})
	}
	return out, nil
}

func (d *Detector) statusConflicts(ctx context.Context, root string, seen map[string]bool) ([]candidate, error) {
	st, err := d.git.Status(ctx, root, false)
	if err != nil {
		return nil, err
	}

	var out []candidate
	for _, e := range st.Entries {
		if !e.Conflicted() || seen[e.Path] {
			continue
		}
		kind := models.ConflictContent
		switch {
		case e.DeletedModified():
			kind = models.ConflictDeleteModify
		case e.AddedAdded():
			kind = models.ConflictAddAdd
		}
		c := d.newConflict(kind, e.Path, fmt.Sprintf("Conflicted status (%c%c) for %s", e.Index, e.Worktree, e.Path))
		out = append(out, candidate{conflict: c, floor: models.SeverityMinor})
	}
	return out, nil
}

func (d *Detector) newConflict(kind models.ConflictType, path, desc string) models.Conflict {
	return models.Conflict{
		ID:               models.NewID(),
		Type:             kind,
		Severity:         models.SeverityMinor,
		FilePath:         path,
		Description:      desc,
		ConflictingRefs:  []string{},
		Content:          models.ConflictText{Category: classify.Classify(path)},
		Metadata:         map[string]string{},
		DetectedAt:       d.now(),
		ResolutionStatus: models.StatusDetected,
	}
}

// prepare fills the fields a strategy is not trusted to set.
func (d *Detector) prepare(c models.Conflict) models.Conflict {
	if c.ID == "" {
		c.ID = models.NewID()
	}
	if c.DetectedAt.IsZero() {
		c.DetectedAt = d.now()
	}
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	if c.ConflictingRefs == nil {
		c.ConflictingRefs = []string{}
	}
	c.Content.Category = classify.Classify(c.FilePath)
	c.Severity = models.SeverityMinor
	c.ResolutionStatus = models.StatusDetected
	return c
}

// analyze reads the conflicted file, parses its markers and assesses severity.
// An unreadable file leaves content and location empty.
func (d *Detector) analyze(root string, c *models.Conflict, floor models.ConflictSeverity) {
	data, err := os.ReadFile(filepath.Join(root, c.FilePath))
	if err != nil {
		d.logger.Debug("conflict file unreadable", "file", c.FilePath, "error", err)
	} else {
		m, ok := ParseMarkers(string(data))
		c.Content.HasMarkers = ok
		if ok {
			c.Content.Ours = m.Ours
			c.Content.Theirs = m.Theirs
			c.Content.Base = m.Base
			c.Location.StartLine = m.StartLine
			c.Location.EndLine = m.EndLine
		}
	}
	c.Severity = AssessSeverity(c, floor)
}
