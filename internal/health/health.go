// Package health runs a fixed set of checks against a repository and rolls
// them up into a RepositoryHealth record.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/models"
)

// Check names.
const (
	CheckAccessible     = "repository_accessible"
	CheckObjectDatabase = "object_database"
	CheckHeadResolves   = "head_resolves"
	CheckWorkingTree    = "working_tree_clean"
	CheckRemote         = "remote_configured"
	CheckDiskSpace      = "disk_space"
	CheckRepositorySize = "repository_size"
)

// Config holds the checker thresholds.
type Config struct {
	// CheckTimeout bounds each check. Zero disables the bound.
	CheckTimeout           time.Duration
	MinFreeDiskBytes       uint64
	MaxRepositorySizeBytes int64
}

// DefaultConfig returns the defaults used when no config file is present.
func DefaultConfig() Config {
	return Config{
		CheckTimeout:           30 * time.Second,
		MinFreeDiskBytes:       1 << 30,
		MaxRepositorySizeBytes: 2 << 30,
	}
}

// Checker computes RepositoryHealth records.
type Checker struct {
	cfg      Config
	git      git.Client
	diskFree func(ctx context.Context, path string) (uint64, error)
	now      func() time.Time
}

// NewChecker returns a Checker backed by gc.
func NewChecker(cfg Config, gc git.Client) *Checker {
	return &Checker{cfg: cfg, git: gc, diskFree: freeBytes, now: time.Now}
}

func freeBytes(ctx context.Context, path string) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// outcome is what one check reports. A non-nil issue means the check failed.
type outcome struct {
	message string
	issue   *models.HealthIssue
}

type checkFunc func(ctx context.Context) (outcome, error)

// Check runs every check against the repository at path.
func (c *Checker) Check(ctx context.Context, path string) *models.RepositoryHealth {
	h := &models.RepositoryHealth{
		Checks:          []models.HealthCheck{},
		Issues:          []models.HealthIssue{},
		Recommendations: []string{},
		LastChecked:     c.now(),
	}

	var root string
	accessible := c.run(ctx, h, CheckAccessible, func(ctx context.Context) (outcome, error) {
		r, err := c.git.RepoRoot(ctx, path)
		if err != nil {
			return c.fail(err.Error(), models.IssueMissingFiles, models.IssueSeverityCritical,
				"Verify the path points at a git working copy"), nil
		}
		root = r
		return outcome{message: "repository opened"}, nil
	})

	checks := []struct {
		name string
		fn   checkFunc
	}{
		{CheckObjectDatabase, func(ctx context.Context) (outcome, error) { return c.objectDatabase(ctx, root) }},
		{CheckHeadResolves, func(ctx context.Context) (outcome, error) { return c.headResolves(ctx, root) }},
		{CheckWorkingTree, func(ctx context.Context) (outcome, error) { return c.workingTree(ctx, root) }},
		{CheckRemote, func(ctx context.Context) (outcome, error) { return c.remote(ctx, root) }},
		{CheckDiskSpace, func(ctx context.Context) (outcome, error) { return c.diskSpace(ctx, root) }},
		{CheckRepositorySize, func(ctx context.Context) (outcome, error) { return c.repositorySize(ctx, root) }},
	}
	for _, chk := range checks {
		if !accessible {
			h.Checks = append(h.Checks, models.HealthCheck{
				Name:      chk.name,
				Status:    models.CheckSkipped,
				Message:   "repository not accessible",
				Timestamp: c.now(),
			})
			continue
		}
		c.run(ctx, h, chk.name, chk.fn)
	}

	h.Score, h.Status = Summarize(h.Checks, h.Issues, accessible)
	h.Recommendations = Recommendations(h.Issues)
	return h
}

// run executes one check under the per-check timeout and appends its result.
// It reports whether the check passed.
func (c *Checker) run(ctx context.Context, h *models.RepositoryHealth, name string, fn checkFunc) bool {
	if c.cfg.CheckTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CheckTimeout)
		defer cancel()
	}

	start := time.Now()
	out, err := fn(ctx)
	check := models.HealthCheck{
		Name:       name,
		DurationMS: time.Since(start).Milliseconds(),
		Timestamp:  c.now(),
	}

	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		check.Status = models.CheckTimeout
		check.Message = fmt.Sprintf("timed out after %s", c.cfg.CheckTimeout)
	case err != nil:
		check.Status = models.CheckFailed
		check.Message = err.Error()
	case out.issue != nil:
		check.Status = models.CheckFailed
		check.Message = out.issue.Description
		h.Issues = append(h.Issues, *out.issue)
	default:
		check.Status = models.CheckPassed
		check.Message = out.message
	}
	h.Checks = append(h.Checks, check)
	return check.Status == models.CheckPassed
}

func (c *Checker) fail(desc string, kind models.HealthIssueType, sev models.IssueSeverity, fix string) outcome {
	return outcome{issue: &models.HealthIssue{
		ID:               models.NewID(),
		Type:             kind,
		Severity:         sev,
		Description:      desc,
		DetectedAt:       c.now(),
		SuggestedFix:     fix,
		ResolutionStatus: models.IssueOpen,
	}}
}

func (c *Checker) objectDatabase(ctx context.Context, root string) (outcome, error) {
	if err := c.git.Fsck(ctx, root); err != nil {
		if ctx.Err() != nil {
			return outcome{}, err
		}
		return c.fail("object database check failed: "+err.Error(), models.IssueCorruption, models.IssueSeverityCritical,
			"Run git fsck --full and restore missing objects from a remote"), nil
	}
	return outcome{message: "object graph is connected"}, nil
}

func (c *Checker) headResolves(ctx context.Context, root string) (outcome, error) {
	head, err := c.git.HeadCommit(ctx, root)
	if err != nil {
		return outcome{}, err
	}
	if head == nil {
		return c.fail("repository has no commits", models.IssueConfiguration, models.IssueSeverityLow,
			"Create an initial commit"), nil
	}
	return outcome{message: "HEAD is " + head.Hash}, nil
}

func (c *Checker) workingTree(ctx context.Context, root string) (outcome, error) {
	st, err := c.git.Status(ctx, root, true)
	if err != nil {
		return outcome{}, err
	}
	staged, unstaged, untracked := st.Counts()
	if staged+unstaged+untracked > 0 {
		return c.fail(fmt.Sprintf("working tree has %d staged, %d unstaged and %d untracked changes", staged, unstaged, untracked),
			models.IssueConfiguration, models.IssueSeverityLow, "Commit or stash local changes"), nil
	}
	return outcome{message: "working tree clean"}, nil
}

func (c *Checker) remote(ctx context.Context, root string) (outcome, error) {
	url, err := c.git.RemoteURL(ctx, root)
	if err != nil {
		return outcome{}, err
	}
	if url == "" {
		return c.fail("no origin remote configured", models.IssueNetwork, models.IssueSeverityLow,
			"Add a remote with git remote add origin <url>"), nil
	}
	return outcome{message: "origin is " + url}, nil
}

func (c *Checker) diskSpace(ctx context.Context, root string) (outcome, error) {
	free, err := c.diskFree(ctx, root)
	if err != nil {
		return outcome{}, err
	}
	if free < c.cfg.MinFreeDiskBytes {
		return c.fail(fmt.Sprintf("only %d bytes free on the repository's volume", free), models.IssueDiskSpace,
			models.IssueSeverityHigh, "Free up disk space on the repository's volume"), nil
	}
	return outcome{message: fmt.Sprintf("%d bytes free", free)}, nil
}

func (c *Checker) repositorySize(ctx context.Context, root string) (outcome, error) {
	dir, err := c.git.GitDir(ctx, root)
	if err != nil {
		return outcome{}, err
	}
	size, err := git.DirSize(dir)
	if err != nil {
		return outcome{}, err
	}
	if c.cfg.MaxRepositorySizeBytes > 0 && size > c.cfg.MaxRepositorySizeBytes {
		return c.fail(fmt.Sprintf("repository metadata uses %d bytes", size), models.IssuePerformance,
			models.IssueSeverityMedium, "Run git gc or move large binaries to Git LFS"), nil
	}
	return outcome{message: fmt.Sprintf("%d bytes", size)}, nil
}

// Summarize computes the score (passed over non-skipped checks) and the
// overall status.
func Summarize(checks []models.HealthCheck, issues []models.HealthIssue, accessible bool) (float64, models.HealthStatus) {
	ran, passed, timedOut := 0, 0, false
	for _, c := range checks {
		switch c.Status {
		case models.CheckSkipped:
			continue
		case models.CheckPassed:
			passed++
		case models.CheckTimeout:
			timedOut = true
		}
		ran++
	}

	var score float64
	if ran > 0 {
		score = float64(passed) / float64(ran)
	}

	if !accessible {
		return score, models.HealthFailed
	}
	severe := false
	for _, i := range issues {
		if i.Severity >= models.IssueSeverityHigh {
			severe = true
		}
	}
	switch {
	case severe || score < 0.5:
		return score, models.HealthCritical
	case len(issues) > 0 || timedOut || passed < ran:
		return score, models.HealthWarning
	default:
		return score, models.HealthHealthy
	}
}

// Recommendations lists the distinct suggested fixes in issue order.
func Recommendations(issues []models.HealthIssue) []string {
	seen := make(map[string]bool)
	recs := []string{}
	for _, i := range issues {
		if i.SuggestedFix == "" || seen[i.SuggestedFix] {
			continue
		}
		seen[i.SuggestedFix] = true
		recs = append(recs, i.SuggestedFix)
	}
	return recs
}
