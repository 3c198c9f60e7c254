package tracker

import (
	"context"
	"math"
	"path/filepath"
	"time"

	"github.com/BalansCollective/weavemesh-git/internal/classify"
	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// Scan reads the full state of the repository at root. It does not register
// anything; the returned repository has no ID. Any backend failure aborts
// the scan, while a missing remote, HEAD or license just leaves the field empty.
func (t *Tracker) Scan(ctx context.Context, root string) (*models.TrackedRepository, error) {
	r := &models.TrackedRepository{
		Path:        root,
		Name:        filepath.Base(root),
		LastScanned: t.now(),
	}

	var err error
	if r.CurrentBranch, err = t.git.CurrentBranch(ctx, root); err != nil {
		return nil, err
	}
	if r.Branches, err = t.git.BranchList(ctx, root); err != nil {
		return nil, err
	}
	if r.Branches == nil {
		r.Branches = []string{}
	}
	if r.RemoteURL, err = t.git.RemoteURL(ctx, root); err != nil {
		return nil, err
	}
	if err := t.scanState(ctx, root, &r.State); err != nil {
		return nil, err
	}
	if err := t.scanMetadata(ctx, r); err != nil {
		return nil, err
	}
	if err := t.scanStatistics(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

func (t *Tracker) scanState(ctx context.Context, root string, s *models.RepositoryState) error {
	st, err := t.git.Status(ctx, root, true)
	if err != nil {
		return err
	}
	s.SetCounts(st.Counts())
	s.AheadCommits = st.Branch.Ahead
	s.BehindCommits = st.Branch.Behind

	head, err := t.git.HeadCommit(ctx, root)
	if err != nil {
		return err
	}
	if head != nil {
		s.LastCommitHash = head.Hash
		ts := head.Time
		s.LastCommitTimestamp = &ts
	}

	if s.StashCount, err = t.git.StashCount(ctx, root); err != nil {
		return err
	}

	dir, err := t.git.GitDir(ctx, root)
	if err != nil {
		return err
	}
	if s.RepositorySizeBytes, err = git.DirSize(dir); err != nil {
		return &git.OperationError{Op: "size " + dir, Err: err}
	}
	return nil
}

func (t *Tracker) scanMetadata(ctx context.Context, r *models.TrackedRepository) error {
	m := &r.Metadata
	m.Custom = map[string]string{}

	var err error
	if m.Contributors, err = t.git.Authors(ctx, r.Path, t.cfg.ContributorWalkLimit); err != nil {
		return err
	}
	if m.Contributors == nil {
		m.Contributors = []string{}
	}
	if m.Tags, err = t.git.Tags(ctx, r.Path); err != nil {
		return err
	}
	if m.Tags == nil {
		m.Tags = []string{}
	}
	files, err := t.git.TrackedFiles(ctx, r.Path)
	if err != nil {
		return err
	}
	m.Languages = classify.LanguageFractions(files)
	m.License = DetectLicense(r.Path)

	// HEAD's commit time stands in for the creation date; finding the
	// first commit would need a full history walk.
	if ts := r.State.LastCommitTimestamp; ts != nil {
		created, last := *ts, *ts
		m.CreatedAt = &created
		m.LastActivity = &last
	}

	if r.RemoteURL != "" {
		if owner, name, err := git.ExtractOwnerRepo(r.RemoteURL); err == nil {
			m.Custom["github_owner"] = owner
			m.Custom["github_repo"] = name
			t.enrich(ctx, m, owner, name)
		}
	}
	return nil
}

// enrich fills gaps from GitHub. Failures are logged and ignored.
func (t *Tracker) enrich(ctx context.Context, m *models.RepositoryMetadata, owner, name string) {
	if t.gh == nil {
		return
	}
	info, err := t.gh.RepoInfo(ctx, owner, name)
	if err != nil {
		t.logger.Warn("github enrichment failed", "repo", owner+"/"+name, "error", err)
		return
	}
	if m.Description == "" {
		m.Description = info.Description
	}
	if m.License == "" {
		m.License = info.License
	}
	if info.Language != "" {
		m.Custom["github_language"] = info.Language
	}
	if info.URL != "" {
		m.Custom["github_url"] = info.URL
	}
}

func (t *Tracker) scanStatistics(ctx context.Context, r *models.TrackedRepository) error {
	s := &r.Statistics

	var err error
	if s.TotalCommits, err = t.git.CommitCount(ctx, r.Path); err != nil {
		return err
	}
	if s.TotalFiles, err = t.git.TreeEntryCount(ctx, r.Path); err != nil {
		return err
	}

	s.ActiveContributors = len(r.Metadata.Contributors)
	s.CommitFrequency = CommitFrequency(s.TotalCommits, r.Metadata.CreatedAt, t.now())
	if s.TotalCommits > 0 {
		s.AverageCommitSize = float64(s.TotalLinesOfCode) / float64(s.TotalCommits)
	}
	s.ActivityScore = ActivityScore(s.CommitFrequency, s.ActiveContributors, s.TotalCommits)
	return nil
}

// CommitFrequency is commits per day since created, counting at least one day.
func CommitFrequency(commits int, created *time.Time, now time.Time) float64 {
	days := 0.0
	if created != nil {
		days = math.Floor(now.Sub(*created).Hours() / 24)
	}
	return float64(commits) / math.Max(1, days)
}

// ActivityScore blends frequency, contributors and commit volume into [0,1].
func ActivityScore(frequency float64, contributors, commits int) float64 {
	score := 0.4*frequency + 0.3*float64(contributors) + 0.3*(float64(commits)/100)
	return math.Max(0, math.Min(1, score))
}

