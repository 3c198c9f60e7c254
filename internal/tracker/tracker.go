// Package tracker registers repositories by path, scans their state and
// keeps the latest scan, health result and change events for each.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/health"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

var (
	ErrNotFound    = errors.New("repository not tracked")
	ErrTrackerFull = errors.New("repository limit reached")
)

// Config holds the tracker's limits.
type Config struct {
	MaxRepositories      int
	ContributorWalkLimit int
	MaxEvents            int
	ScanInterval         time.Duration
}

// DefaultConfig returns the defaults used when no config file is present.
func DefaultConfig() Config {
	return Config{
		MaxRepositories:      100,
		ContributorWalkLimit: 100,
		MaxEvents:            100,
		ScanInterval:         5 * time.Minute,
	}
}

// Store persists tracked repositories across runs.
type Store interface {
	SaveRepository(ctx context.Context, r *models.TrackedRepository) error
	DeleteRepository(ctx context.Context, id string) error
	ListRepositories(ctx context.Context) ([]*models.TrackedRepository, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithStore persists registrations, rescans and removals.
func WithStore(s Store) Option { return func(t *Tracker) { t.store = s } }

// WithHealthChecker replaces the default health checker.
func WithHealthChecker(c *health.Checker) Option { return func(t *Tracker) { t.checker = c } }

// WithGitHub enriches scans of GitHub-hosted repositories through gh.
func WithGitHub(gh git.GitHubClient) Option { return func(t *Tracker) { t.gh = gh } }

// Tracker is safe for concurrent use. Scans run outside the lock.
type Tracker struct {
	cfg     Config
	git     git.Client
	gh      git.GitHubClient
	checker *health.Checker
	store   Store
	logger  *slog.Logger
	now     func() time.Time

	mu     sync.RWMutex
	repos  map[string]*models.TrackedRepository
	byPath map[string]string
	health map[string]*models.RepositoryHealth
	events map[string][]models.StateChangeEvent
}

// New creates a Tracker. A nil logger uses slog.Default().
func New(cfg Config, gc git.Client, logger *slog.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	t := &Tracker{
		cfg:     cfg,
		git:     gc,
		checker: health.NewChecker(health.DefaultConfig(), gc),
		logger:  logger,
		now:     time.Now,
		repos:   make(map[string]*models.TrackedRepository),
		byPath:  make(map[string]string),
		health:  make(map[string]*models.RepositoryHealth),
		events:  make(map[string][]models.StateChangeEvent),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return filepath.Clean(abs)
}

func (t *Tracker) lookup(path string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byPath[path]
	return id, ok
}

// GetOrCreateRepositoryID returns the identity registered for path, scanning
// and registering the repository on first sight. If the store rejects a new
// registration the repository stays tracked in memory and both the id and
// the error are returned.
func (t *Tracker) GetOrCreateRepositoryID(ctx context.Context, path string) (string, error) {
	key := canonical(path)
	if id, ok := t.lookup(key); ok {
		return id, nil
	}

	root, err := t.git.RepoRoot(ctx, key)
	if err != nil {
		return "", err
	}
	if id, ok := t.lookup(root); ok {
		t.mu.Lock()
		t.byPath[key] = id
		t.mu.Unlock()
		return id, nil
	}

	if t.full() {
		return "", fmt.Errorf("%w (%d)", ErrTrackerFull, t.cfg.MaxRepositories)
	}

	repo, err := t.Scan(ctx, root)
	if err != nil {
		return "", err
	}
	repo.ID = models.NewID()

	t.mu.Lock()
	if id, ok := t.byPath[root]; ok {
		t.byPath[key] = id
		t.mu.Unlock()
		return id, nil
	}
	if t.cfg.MaxRepositories > 0 && len(t.repos) >= t.cfg.MaxRepositories {
		t.mu.Unlock()
		return "", fmt.Errorf("%w (%d)", ErrTrackerFull, t.cfg.MaxRepositories)
	}
	t.repos[repo.ID] = repo
	t.byPath[root] = repo.ID
	t.byPath[key] = repo.ID
	t.mu.Unlock()

	if err := t.persist(ctx, repo); err != nil {
		return repo.ID, err
	}
	t.logger.Info("repository registered", "id", repo.ID, "path", root)
	return repo.ID, nil
}

func (t *Tracker) full() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg.MaxRepositories > 0 && len(t.repos) >= t.cfg.MaxRepositories
}

func (t *Tracker) persist(ctx context.Context, r *models.TrackedRepository) error {
	if t.store == nil {
		return nil
	}
	if err := t.store.SaveRepository(ctx, r); err != nil {
		return fmt.Errorf("save repository: %w", err)
	}
	return nil
}

// Get returns a copy of the tracked repository.
func (t *Tracker) Get(id string) (*models.TrackedRepository, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.repos[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r.Clone(), nil
}

// Resolve finds a tracked repository by id, path inside it, or unique name.
func (t *Tracker) Resolve(ref string) (*models.TrackedRepository, error) {
	if r, err := t.Get(ref); err == nil {
		return r, nil
	}
	if id, ok := t.lookup(canonical(ref)); ok {
		return t.Get(id)
	}

	var match *models.TrackedRepository
	for _, r := range t.GetAll() {
		if r.Name != ref {
			continue
		}
		if match != nil {
			return nil, fmt.Errorf("ambiguous repository name %q: use an id or path", ref)
		}
		match = r
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return match, nil
}

// GetAll returns copies of every tracked repository ordered by name.
func (t *Tracker) GetAll() []*models.TrackedRepository {
	t.mu.RLock()
	out := make([]*models.TrackedRepository, 0, len(t.repos))
	for _, r := range t.repos {
		out = append(out, r.Clone())
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Path < out[j].Path
	})
	return out
}

// Remove unregisters a repository along with its path mappings, cached
// health and events.
func (t *Tracker) Remove(ctx context.Context, id string) error {
	t.mu.Lock()
	if _, ok := t.repos[id]; !ok {
		t.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(t.repos, id)
	delete(t.health, id)
	delete(t.events, id)
	for p, v := range t.byPath {
		if v == id {
			delete(t.byPath, p)
		}
	}
	t.mu.Unlock()

	if t.store != nil {
		if err := t.store.DeleteRepository(ctx, id); err != nil {
			return fmt.Errorf("delete repository: %w", err)
		}
	}
	t.logger.Info("repository removed", "id", id)
	return nil
}

// GetRepositoryHealth returns the last health result for id, if any.
func (t *Tracker) GetRepositoryHealth(id string) (*models.RepositoryHealth, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.health[id]
	return h.Clone(), ok
}

// CheckHealth runs the health checker and caches the result.
func (t *Tracker) CheckHealth(ctx context.Context, id string) (*models.RepositoryHealth, error) {
	r, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	h := t.checker.Check(ctx, r.Path)

	t.mu.Lock()
	if _, ok := t.repos[id]; ok {
		t.health[id] = h.Clone()
	}
	t.mu.Unlock()
	return h, nil
}

// Rescan scans a tracked repository again, keeping its identity, and returns
// the events describing what changed.
func (t *Tracker) Rescan(ctx context.Context, id string) (*models.TrackedRepository, []models.StateChangeEvent, error) {
	prev, err := t.Get(id)
	if err != nil {
		return nil, nil, err
	}
	next, err := t.Scan(ctx, prev.Path)
	if err != nil {
		return nil, nil, err
	}
	next.ID = id
	changes := Diff(prev, next, t.now())

	t.mu.Lock()
	if _, ok := t.repos[id]; !ok {
		t.mu.Unlock()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.repos[id] = next
	events := append(t.events[id], changes...)
	if t.cfg.MaxEvents > 0 && len(events) > t.cfg.MaxEvents {
		events = events[len(events)-t.cfg.MaxEvents:]
	}
	t.events[id] = events
	t.mu.Unlock()

	if err := t.persist(ctx, next); err != nil {
		return nil, nil, err
	}
	return next.Clone(), changes, nil
}

// Events returns the recorded change events for id, oldest first.
func (t *Tracker) Events(id string) []models.StateChangeEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]models.StateChangeEvent(nil), t.events[id]...)
}

// Load registers every repository from the store, replacing nothing that is
// already tracked.
func (t *Tracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	repos, err := t.store.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("list repositories: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range repos {
		if _, ok := t.repos[r.ID]; ok {
			continue
		}
		t.repos[r.ID] = r
		t.byPath[r.Path] = r.ID
	}
	t.logger.Debug("repositories loaded", "count", len(repos))
	return nil
}
