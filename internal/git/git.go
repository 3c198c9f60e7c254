package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Commit is the subset of commit data the scanners need.
type Commit struct {
	Hash string
	Time time.Time
}

// Client defines the read-only git operations used by the detector, tracker
// and health checker. All methods take a path since repositories are tracked
// by path rather than bound to a single working copy.
type Client interface {
	RepoRoot(ctx context.Context, path string) (string, error)
	GitDir(ctx context.Context, path string) (string, error)
	MergeInProgress(ctx context.Context, path string) (bool, error)
	UnmergedPaths(ctx context.Context, path string) ([]string, error)
	Status(ctx context.Context, path string, includeUntracked bool) (*Status, error)
	CurrentBranch(ctx context.Context, path string) (string, error)
	BranchList(ctx context.Context, path string) ([]string, error)
	RemoteURL(ctx context.Context, path string) (string, error)
	HeadCommit(ctx context.Context, path string) (*Commit, error)
	Authors(ctx context.Context, path string, limit int) ([]string, error)
	Tags(ctx context.Context, path string) ([]string, error)
	CommitCount(ctx context.Context, path string) (int, error)
	TreeEntryCount(ctx context.Context, path string) (int, error)
	TrackedFiles(ctx context.Context, path string) ([]string, error)
	StashCount(ctx context.Context, path string) (int, error)
	Fsck(ctx context.Context, path string) error
}

// RealClient implements Client using real git commands.
type RealClient struct{}

// NewClient returns a new RealClient.
func NewClient() *RealClient {
	return &RealClient{}
}

func gitCmd(ctx context.Context, path string, args ...string) (string, error) {
	fullArgs := append([]string{"-C", path, "-c", "core.quotePath=false"}, args...)
	out, err := exec.CommandContext(ctx, "git", fullArgs...).Output()
	if err != nil {
		opErr := &OperationError{Op: strings.Join(args, " "), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			opErr.Stderr = strings.TrimSpace(string(exitErr.Stderr))
		}
		return "", opErr
	}
	return strings.TrimRight(string(out), "\n"), nil
}

// exitCode returns the process exit code carried by err, or -1.
func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func splitLines(out string) []string {
	if out == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (c *RealClient) RepoRoot(ctx context.Context, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", &AccessError{Path: path, Err: err}
	}
	out, err := gitCmd(ctx, path, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", &AccessError{Path: path, Err: err}
	}
	if out == "" {
		return "", &AccessError{Path: path, Err: fmt.Errorf("bare repository has no working tree")}
	}
	return out, nil
}

func (c *RealClient) GitDir(ctx context.Context, path string) (string, error) {
	return gitCmd(ctx, path, "rev-parse", "--absolute-git-dir")
}

func (c *RealClient) MergeInProgress(ctx context.Context, path string) (bool, error) {
	dir, err := c.GitDir(ctx, path)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(filepath.Join(dir, "MERGE_HEAD"))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, &OperationError{Op: "stat MERGE_HEAD", Err: err}
}

func (c *RealClient) UnmergedPaths(ctx context.Context, path string) ([]string, error) {
	out, err := gitCmd(ctx, path, "ls-files", "--unmerged")
	if err != nil {
		return nil, err
	}
	return ParseUnmergedEntries(out), nil
}

func (c *RealClient) Status(ctx context.Context, path string, includeUntracked bool) (*Status, error) {
	untracked := "--untracked-files=no"
	if includeUntracked {
		untracked = "--untracked-files=all"
	}
	out, err := gitCmd(ctx, path, "status", "--porcelain=v2", "--branch", untracked)
	if err != nil {
		return nil, err
	}
	return ParseStatusPorcelainV2(out), nil
}

// CurrentBranch returns the short branch name, or "HEAD" when detached.
// An unborn branch still reports its name.
func (c *RealClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	out, err := gitCmd(ctx, path, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		if exitCode(err) == 1 {
			return "HEAD", nil
		}
		return "", err
	}
	return out, nil
}

func (c *RealClient) BranchList(ctx context.Context, path string) ([]string, error) {
	out, err := gitCmd(ctx, path, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (c *RealClient) RemoteURL(ctx context.Context, path string) (string, error) {
	out, err := gitCmd(ctx, path, "remote", "get-url", "origin")
	if err != nil {
		return "", nil // no remote is not an error
	}
	return out, nil
}

// HeadCommit returns nil without error when the repository has no commits.
func (c *RealClient) HeadCommit(ctx context.Context, path string) (*Commit, error) {
	if _, err := gitCmd(ctx, path, "rev-parse", "-q", "--verify", "HEAD^{commit}"); err != nil {
		if exitCode(err) == 1 {
			return nil, nil
		}
		return nil, err
	}
	out, err := gitCmd(ctx, path, "log", "-1", "--format=%H %ct")
	if err != nil {
		return nil, err
	}
	return parseCommitLine(out)
}

func parseCommitLine(line string) (*Commit, error) {
	hash, secs, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return nil, fmt.Errorf("unexpected commit line: %q", line)
	}
	unix, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse commit time: %w", err)
	}
	return &Commit{Hash: hash, Time: time.Unix(unix, 0).UTC()}, nil
}

// Authors returns distinct author names from the most recent limit commits,
// in first-seen order.
func (c *RealClient) Authors(ctx context.Context, path string, limit int) ([]string, error) {
	if head, err := c.HeadCommit(ctx, path); err != nil || head == nil {
		return nil, err
	}
	out, err := gitCmd(ctx, path, "log", fmt.Sprintf("--max-count=%d", limit), "--format=%an")
	if err != nil {
		return nil, err
	}
	return distinct(splitLines(out)), nil
}

func distinct(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func (c *RealClient) Tags(ctx context.Context, path string) ([]string, error) {
	out, err := gitCmd(ctx, path, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (c *RealClient) CommitCount(ctx context.Context, path string) (int, error) {
	if head, err := c.HeadCommit(ctx, path); err != nil || head == nil {
		return 0, err
	}
	out, err := gitCmd(ctx, path, "rev-list", "--count", "HEAD")
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, fmt.Errorf("parse commit count: %w", err)
	}
	return n, nil
}

// TreeEntryCount counts the top-level entries of HEAD's tree.
func (c *RealClient) TreeEntryCount(ctx context.Context, path string) (int, error) {
	if head, err := c.HeadCommit(ctx, path); err != nil || head == nil {
		return 0, err
	}
	out, err := gitCmd(ctx, path, "ls-tree", "HEAD")
	if err != nil {
		return 0, err
	}
	return len(splitLines(out)), nil
}

func (c *RealClient) TrackedFiles(ctx context.Context, path string) ([]string, error) {
	out, err := gitCmd(ctx, path, "ls-files")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (c *RealClient) StashCount(ctx context.Context, path string) (int, error) {
	out, err := gitCmd(ctx, path, "stash", "list")
	if err != nil {
		return 0, err
	}
	return len(splitLines(out)), nil
}

func (c *RealClient) Fsck(ctx context.Context, path string) error {
	_, err := gitCmd(ctx, path, "fsck", "--connectivity-only", "--no-progress")
	return err
}

// ExtractOwnerRepo parses a GitHub remote URL and returns owner/repo.
func ExtractOwnerRepo(remoteURL string) (owner, repo string, err error) {
	// Handle SSH: git@github.com:owner/repo.git
	if strings.HasPrefix(remoteURL, "git@") {
		parts := strings.SplitN(remoteURL, ":", 2)
		if len(parts) != 2 {
			return "", "", fmt.Errorf("cannot parse SSH remote: %s", remoteURL)
		}
		path := strings.TrimSuffix(parts[1], ".git")
		segments := strings.SplitN(path, "/", 2)
		if len(segments) != 2 {
			return "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
		}
		return segments[0], segments[1], nil
	}

	// Handle HTTPS: https://github.com/owner/repo.git
	trimmed := strings.TrimSuffix(remoteURL, ".git")
	trimmed = strings.TrimPrefix(trimmed, "https://github.com/")
	trimmed = strings.TrimPrefix(trimmed, "http://github.com/")
	segments := strings.SplitN(trimmed, "/", 2)
	if len(segments) != 2 || segments[0] == "" || segments[1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from: %s", remoteURL)
	}
	return segments[0], segments[1], nil
}
