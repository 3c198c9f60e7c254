package git

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// RepoInfo represents basic GitHub repository information.
type RepoInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Language    string `json:"primaryLanguage"`
	License     string `json:"license"`
	IsPrivate   bool   `json:"isPrivate"`
	URL         string `json:"url"`
}

// GitHubClient wraps the gh CLI for optional repository metadata enrichment.
type GitHubClient interface {
	RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error)
}

// RealGitHubClient implements GitHubClient using the gh CLI.
type RealGitHubClient struct{}

// NewGitHubClient returns a new RealGitHubClient.
func NewGitHubClient() *RealGitHubClient {
	return &RealGitHubClient{}
}

func ghCmd(ctx context.Context, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, "gh", args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("gh %s: %s", strings.Join(args, " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("gh %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

type repoInfoRaw struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	PrimaryLanguage struct {
		Name string `json:"name"`
	} `json:"primaryLanguage"`
	LicenseInfo *struct {
		Name string `json:"name"`
	} `json:"licenseInfo"`
	IsPrivate bool   `json:"isPrivate"`
	URL       string `json:"url"`
}

func (c *RealGitHubClient) RepoInfo(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	out, err := ghCmd(ctx, "repo", "view",
		fmt.Sprintf("%s/%s", owner, repo),
		"--json", "name,description,primaryLanguage,licenseInfo,isPrivate,url",
	)
	if err != nil {
		return nil, err
	}
	return parseRepoInfo(out)
}

func parseRepoInfo(out string) (*RepoInfo, error) {
	var raw repoInfoRaw
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("parse repo info: %w", err)
	}
	info := &RepoInfo{
		Name:        raw.Name,
		Description: raw.Description,
		Language:    raw.PrimaryLanguage.Name,
		IsPrivate:   raw.IsPrivate,
		URL:         raw.URL,
	}
	if raw.LicenseInfo != nil {
		info.License = raw.LicenseInfo.Name
	}
	return info, nil
}
