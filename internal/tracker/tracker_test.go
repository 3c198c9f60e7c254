package tracker

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, "git %v: %s", args, out)
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// initTestRepo creates a repo with user config; with files it also commits them.
func initTestRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	if len(files) > 0 {
		for name, content := range files {
			writeFile(t, dir, name, content)
		}
		runGit(t, dir, "add", ".")
		runGit(t, dir, "commit", "-m", "init")
	}
	return dir
}

func newTestTracker(t *testing.T, opts ...Option) *Tracker {
	t.Helper()
	return New(DefaultConfig(), git.NewClient(), nil, opts...)
}

type memoryStore struct {
	repos map[string]*models.TrackedRepository
}

func newMemoryStore() *memoryStore {
	return &memoryStore{repos: make(map[string]*models.TrackedRepository)}
}

func (m *memoryStore) SaveRepository(_ context.Context, r *models.TrackedRepository) error {
	cp := *r
	m.repos[r.ID] = &cp
	return nil
}

func (m *memoryStore) DeleteRepository(_ context.Context, id string) error {
	delete(m.repos, id)
	return nil
}

func (m *memoryStore) ListRepositories(context.Context) ([]*models.TrackedRepository, error) {
	var out []*models.TrackedRepository
	for _, r := range m.repos {
		out = append(out, r)
	}
	return out, nil
}

type fakeGitHub struct {
	info *git.RepoInfo
	err  error
}

func (f fakeGitHub) RepoInfo(context.Context, string, string) (*git.RepoInfo, error) {
	return f.info, f.err
}

type failingTags struct {
	*git.RealClient
}

func (failingTags) Tags(context.Context, string) ([]string, error) {
	return nil, &git.OperationError{Op: "tag --list", Err: errors.New("exit status 128")}
}

func TestGetOrCreateRepositoryID(t *testing.T) {
	dir := initTestRepo(t, map[string]string{
		"main.go":   "package main\n",
		"README.md": "# demo\n",
	})
	runGit(t, dir, "tag", "v0.1.0")
	runGit(t, dir, "remote", "add", "origin", "git@github.com:example/demo.git")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))

	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	again, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	fromSub, err := tr.GetOrCreateRepositoryID(ctx, filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Equal(t, id, fromSub)
	assert.Len(t, tr.GetAll(), 1)

	r, err := tr.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.Equal(t, filepath.Base(r.Path), r.Name)
	assert.Equal(t, "main", r.CurrentBranch)
	assert.Equal(t, []string{"main"}, r.Branches)
	assert.Equal(t, "git@github.com:example/demo.git", r.RemoteURL)

	assert.True(t, r.State.WorkingDirectoryClean)
	assert.Len(t, r.State.LastCommitHash, 40)
	require.NotNil(t, r.State.LastCommitTimestamp)
	assert.Positive(t, r.State.RepositorySizeBytes)
	assert.Zero(t, r.State.StashCount)

	assert.Equal(t, []string{"Test"}, r.Metadata.Contributors)
	assert.Equal(t, []string{"v0.1.0"}, r.Metadata.Tags)
	assert.Equal(t, map[string]float64{"Go": 0.5, "Markdown": 0.5}, r.Metadata.Languages)
	assert.Equal(t, "example", r.Metadata.Custom["github_owner"])
	assert.Equal(t, "demo", r.Metadata.Custom["github_repo"])
	require.NotNil(t, r.Metadata.CreatedAt)
	assert.Equal(t, *r.State.LastCommitTimestamp, *r.Metadata.CreatedAt)
	assert.Equal(t, *r.Metadata.CreatedAt, *r.Metadata.LastActivity)

	assert.Equal(t, 1, r.Statistics.TotalCommits)
	assert.Equal(t, 2, r.Statistics.TotalFiles)
	assert.Zero(t, r.Statistics.TotalLinesOfCode)
	assert.Zero(t, r.Statistics.AverageCommitSize)
	assert.Equal(t, 1, r.Statistics.ActiveContributors)
	assert.InDelta(t, 1.0, r.Statistics.CommitFrequency, 1e-9)
	assert.InDelta(t, 0.703, r.Statistics.ActivityScore, 1e-9)
	assert.False(t, r.LastScanned.IsZero())
}

func TestScan_DirtyAndStashed(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "one\n"})
	writeFile(t, dir, "a.txt", "two\n")
	runGit(t, dir, "stash")
	writeFile(t, dir, "a.txt", "three\n")
	writeFile(t, dir, "b.txt", "new\n")
	writeFile(t, dir, "c.txt", "staged\n")
	runGit(t, dir, "add", "c.txt")

	r, err := newTestTracker(t).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.False(t, r.State.WorkingDirectoryClean)
	assert.Equal(t, 1, r.State.StagedChanges)
	assert.Equal(t, 1, r.State.UnstagedChanges)
	assert.Equal(t, 1, r.State.UntrackedFiles)
	assert.Equal(t, 1, r.State.StashCount)
	assert.Empty(t, r.ID)
}

func TestScan_EmptyRepository(t *testing.T) {
	dir := initTestRepo(t, nil)

	r, err := newTestTracker(t).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "main", r.CurrentBranch)
	assert.Empty(t, r.Branches)
	assert.Empty(t, r.RemoteURL)
	assert.True(t, r.State.WorkingDirectoryClean)
	assert.Empty(t, r.State.LastCommitHash)
	assert.Nil(t, r.State.LastCommitTimestamp)
	assert.Nil(t, r.Metadata.CreatedAt)
	assert.Empty(t, r.Metadata.Contributors)
	assert.Empty(t, r.Metadata.License)
	assert.Zero(t, r.Statistics.TotalCommits)
	assert.Zero(t, r.Statistics.ActivityScore)
}

func TestScan_FailFast(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	tr := New(DefaultConfig(), failingTags{git.NewClient()}, nil)

	_, err := tr.GetOrCreateRepositoryID(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, git.ErrBackendOperation))
	assert.Empty(t, tr.GetAll())
}

func TestScan_GitHubEnrichment(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.go": "package a\n"})
	runGit(t, dir, "remote", "add", "origin", "https://github.com/example/demo.git")
	gh := fakeGitHub{info: &git.RepoInfo{Description: "A demo", License: "MIT License", Language: "Go", URL: "https://github.com/example/demo"}}

	r, err := newTestTracker(t, WithGitHub(gh)).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "A demo", r.Metadata.Description)
	assert.Equal(t, "MIT License", r.Metadata.License)
	assert.Equal(t, "Go", r.Metadata.Custom["github_language"])

	r, err = newTestTracker(t, WithGitHub(fakeGitHub{err: errors.New("gh not installed")})).Scan(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, r.Metadata.Description)
}

func TestGetOrCreateRepositoryID_NotARepository(t *testing.T) {
	tr := newTestTracker(t)
	_, err := tr.GetOrCreateRepositoryID(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.True(t, errors.Is(err, git.ErrRepositoryAccess))
	assert.Empty(t, tr.GetAll())
}

func TestGetOrCreateRepositoryID_Full(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxRepositories = 1
	tr := New(cfg, git.NewClient(), nil)
	ctx := context.Background()

	_, err := tr.GetOrCreateRepositoryID(ctx, initTestRepo(t, nil))
	require.NoError(t, err)
	_, err = tr.GetOrCreateRepositoryID(ctx, initTestRepo(t, nil))
	assert.True(t, errors.Is(err, ErrTrackerFull))
}

func TestRemove(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	_, err = tr.CheckHealth(ctx, id)
	require.NoError(t, err)
	_, ok := tr.GetRepositoryHealth(id)
	require.True(t, ok)

	require.NoError(t, tr.Remove(ctx, id))
	_, err = tr.Get(id)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, ok = tr.GetRepositoryHealth(id)
	assert.False(t, ok)
	assert.True(t, errors.Is(tr.Remove(ctx, id), ErrNotFound))

	newID, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)
}

func TestResolve(t *testing.T) {
	base := t.TempDir()
	mk := func(rel string) string {
		dir := filepath.Join(base, rel)
		require.NoError(t, os.MkdirAll(dir, 0755))
		runGit(t, dir, "init", "-b", "main")
		return dir
	}
	first := mk("a/repo")
	second := mk("b/repo")
	solo := mk("solo")

	tr := newTestTracker(t)
	ctx := context.Background()
	id1, err := tr.GetOrCreateRepositoryID(ctx, first)
	require.NoError(t, err)
	_, err = tr.GetOrCreateRepositoryID(ctx, second)
	require.NoError(t, err)
	id3, err := tr.GetOrCreateRepositoryID(ctx, solo)
	require.NoError(t, err)

	r, err := tr.Resolve(id1)
	require.NoError(t, err)
	assert.Equal(t, id1, r.ID)

	r, err = tr.Resolve(first)
	require.NoError(t, err)
	assert.Equal(t, id1, r.ID)

	r, err = tr.Resolve("solo")
	require.NoError(t, err)
	assert.Equal(t, id3, r.ID)

	_, err = tr.Resolve("repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = tr.Resolve("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGet_ReturnsCopies(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.go": "package a\n"})
	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)

	r, err := tr.Get(id)
	require.NoError(t, err)
	require.NotEmpty(t, r.Branches)
	require.NotEmpty(t, r.Metadata.Contributors)
	r.Branches[0] = "edited"
	r.Metadata.Contributors[0] = "edited"
	r.Metadata.Custom["edited"] = "yes"
	r.Metadata.Languages["Edited"] = 1

	for _, got := range []*models.TrackedRepository{mustGet(t, tr, id), tr.GetAll()[0]} {
		assert.Equal(t, "main", got.Branches[0])
		assert.NotEqual(t, "edited", got.Metadata.Contributors[0])
		assert.NotContains(t, got.Metadata.Custom, "edited")
		assert.NotContains(t, got.Metadata.Languages, "Edited")
	}

	all := tr.GetAll()
	all[0].Branches[0] = "edited"
	assert.Equal(t, "main", mustGet(t, tr, id).Branches[0])

	h, err := tr.CheckHealth(ctx, id)
	require.NoError(t, err)
	h.Recommendations = append(h.Recommendations, "edited")
	h.Checks[0].Name = "edited"
	cached, ok := tr.GetRepositoryHealth(id)
	require.True(t, ok)
	assert.NotContains(t, cached.Recommendations, "edited")
	assert.NotEqual(t, "edited", cached.Checks[0].Name)
}

func mustGet(t *testing.T, tr *Tracker, id string) *models.TrackedRepository {
	t.Helper()
	r, err := tr.Get(id)
	require.NoError(t, err)
	return r
}

func TestCheckHealth(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	_, ok := tr.GetRepositoryHealth(id)
	assert.False(t, ok)

	h, err := tr.CheckHealth(ctx, id)
	require.NoError(t, err)
	assert.NotEqual(t, models.HealthFailed, h.Status)
	assert.Len(t, h.Checks, 7)

	cached, ok := tr.GetRepositoryHealth(id)
	require.True(t, ok)
	assert.Equal(t, h, cached)

	_, err = tr.CheckHealth(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRescan(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)

	r, events, err := tr.Rescan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, r.ID)
	assert.Empty(t, events)

	runGit(t, dir, "checkout", "-b", "feature")
	runGit(t, dir, "commit", "--allow-empty", "-m", "next")
	runGit(t, dir, "tag", "v1")
	writeFile(t, dir, "new.txt", "x")

	r, events, err = tr.Rescan(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "feature", r.CurrentBranch)
	assert.Equal(t, 2, r.Statistics.TotalCommits)

	var kinds []models.StateChangeType
	for _, e := range events {
		assert.Equal(t, id, e.RepositoryID)
		kinds = append(kinds, e.Type)
	}
	assert.Equal(t, []models.StateChangeType{
		models.ChangeBranch,
		models.ChangeCommitAdded,
		models.ChangeStatus,
		models.ChangeFilesModified,
		models.ChangeTagCreated,
	}, kinds)
	assert.Equal(t, events, tr.Events(id))

	_, _, err = tr.Rescan(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRescan_EventsBounded(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	cfg := DefaultConfig()
	cfg.MaxEvents = 2
	tr := New(cfg, git.NewClient(), nil)
	ctx := context.Background()

	id, err := tr.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	for i := range 3 {
		runGit(t, dir, "commit", "--allow-empty", "-m", "c")
		runGit(t, dir, "tag", "t"+string(rune('a'+i)))
		_, _, err := tr.Rescan(ctx, id)
		require.NoError(t, err)
	}

	events := tr.Events(id)
	require.Len(t, events, 2)
	assert.Equal(t, models.ChangeCommitAdded, events[0].Type)
	assert.Equal(t, "tc", events[1].NewState)
}

func TestRescanAll(t *testing.T) {
	ok := initTestRepo(t, map[string]string{"a.txt": "x"})
	gone := initTestRepo(t, map[string]string{"a.txt": "x"})
	tr := newTestTracker(t)
	ctx := context.Background()

	_, err := tr.GetOrCreateRepositoryID(ctx, ok)
	require.NoError(t, err)
	_, err = tr.GetOrCreateRepositoryID(ctx, gone)
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(gone))
	writeFile(t, ok, "b.txt", "y")

	res := tr.RescanAll(ctx)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Changed)
	require.Len(t, res.Results, 2)
}

func TestWatch_StopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScanInterval = 10 * time.Millisecond
	tr := New(cfg, git.NewClient(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	runs := 0
	err := tr.Watch(ctx, func(*AllResult) {
		runs++
		if runs == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, runs)
}

func TestPersistence(t *testing.T) {
	dir := initTestRepo(t, map[string]string{"a.txt": "x"})
	st := newMemoryStore()
	ctx := context.Background()

	first := newTestTracker(t, WithStore(st))
	id, err := first.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	require.Contains(t, st.repos, id)

	second := newTestTracker(t, WithStore(st))
	require.NoError(t, second.Load(ctx))
	r, err := second.Get(id)
	require.NoError(t, err)
	assert.Equal(t, st.repos[id].Path, r.Path)

	again, err := second.GetOrCreateRepositoryID(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	require.NoError(t, second.Remove(ctx, id))
	assert.NotContains(t, st.repos, id)
}
