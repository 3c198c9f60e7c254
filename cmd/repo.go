package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BalansCollective/weavemesh-git/internal/models"
	"github.com/BalansCollective/weavemesh-git/internal/output"
	"github.com/BalansCollective/weavemesh-git/internal/tracker"
)

var rescanAll bool

var repoCmd = &cobra.Command{
	Use:     "repo",
	Aliases: []string{"r"},
	Short:   "Manage tracked repositories",
	Long:    "Register, list, rescan, and check the health of git repositories.",
}

var repoAddCmd = &cobra.Command{
	Use:   "add <path>",
	Short: "Track a repository",
	Long:  "Scan and register the repository containing path. Use '.' for the current directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoAddRun(args[0])
	},
}

var repoListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked repositories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoListRun()
	},
}

var repoShowCmd = &cobra.Command{
	Use:   "show <id|path|name>",
	Short: "Show the latest scan of a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoShowRun(args[0])
	},
}

var repoRescanCmd = &cobra.Command{
	Use:   "rescan [id|path|name]",
	Short: "Rescan repositories and report what changed",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if rescanAll || len(args) == 0 {
			return repoRescanAllRun()
		}
		return repoRescanOneRun(args[0])
	},
}

var repoRemoveCmd = &cobra.Command{
	Use:     "remove <id|path|name>",
	Aliases: []string{"rm"},
	Short:   "Stop tracking a repository",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoRemoveRun(args[0])
	},
}

var repoHealthCmd = &cobra.Command{
	Use:   "health <id|path|name>",
	Short: "Run health checks against a repository",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoHealthRun(args[0])
	},
}

var repoWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rescan all repositories on the configured interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		return repoWatchRun()
	},
}

func init() {
	repoRescanCmd.Flags().BoolVar(&rescanAll, "all", false, "Rescan every tracked repository")

	repoCmd.AddCommand(repoAddCmd)
	repoCmd.AddCommand(repoListCmd)
	repoCmd.AddCommand(repoShowCmd)
	repoCmd.AddCommand(repoRescanCmd)
	repoCmd.AddCommand(repoRemoveCmd)
	repoCmd.AddCommand(repoHealthCmd)
	repoCmd.AddCommand(repoWatchCmd)
	rootCmd.AddCommand(repoCmd)
}

func openTracker(ctx context.Context) (*tracker.Tracker, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return newTracker(ctx, s)
}

func repoAddRun(path string) error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would track repository: %s", path)
		return nil
	}

	id, err := t.GetOrCreateRepositoryID(ctx, path)
	if err != nil {
		if id == "" {
			return err
		}
		ui.Warning("Tracked but not saved: %v", err)
	}
	r, err := t.Get(id)
	if err != nil {
		return err
	}
	if structured() {
		return render(r)
	}
	ui.Success("Tracking %s (%s)", output.Cyan(r.Name), r.ID)
	return nil
}

func repoListRun() error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}

	repos := t.GetAll()
	if structured() {
		return render(repos)
	}
	if len(repos) == 0 {
		ui.Info("No repositories tracked. Use 'weavegit repo add <path>' to get started.")
		return nil
	}

	table := ui.Table([]string{"ID", "Name", "Branch", "Status", "Activity", "Scanned"})
	for _, r := range repos {
		status := output.Green("clean")
		if !r.State.WorkingDirectoryClean {
			status = output.Red("dirty")
		}
		table.Append([]string{
			r.ID,
			output.Cyan(r.Name),
			r.CurrentBranch,
			status,
			output.HealthColor(r.Statistics.ActivityScore),
			timeAgo(r.LastScanned),
		})
	}
	table.Render()
	return nil
}

func repoShowRun(ref string) error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}
	r, err := t.Resolve(ref)
	if err != nil {
		return err
	}
	if structured() {
		return render(r)
	}
	printRepository(r)
	return nil
}

func printRepository(r *models.TrackedRepository) {
	fmt.Fprintf(ui.Out, "%s\n", output.Cyan(r.Name))
	fmt.Fprintf(ui.Out, "  ID:         %s\n", r.ID)
	fmt.Fprintf(ui.Out, "  Path:       %s\n", r.Path)
	if r.Metadata.Description != "" {
		fmt.Fprintf(ui.Out, "  Desc:       %s\n", r.Metadata.Description)
	}
	if r.RemoteURL != "" {
		fmt.Fprintf(ui.Out, "  Remote:     %s\n", r.RemoteURL)
	}
	if r.Metadata.License != "" {
		fmt.Fprintf(ui.Out, "  License:    %s\n", r.Metadata.License)
	}
	fmt.Fprintln(ui.Out)

	s := r.State
	fmt.Fprintf(ui.Out, "  Branch:     %s (%d branches)\n", r.CurrentBranch, len(r.Branches))
	status := output.Green("clean")
	if !s.WorkingDirectoryClean {
		status = output.Red(fmt.Sprintf("dirty (staged %d, unstaged %d, untracked %d)", s.StagedChanges, s.UnstagedChanges, s.UntrackedFiles))
	}
	fmt.Fprintf(ui.Out, "  Status:     %s\n", status)
	if s.AheadCommits > 0 || s.BehindCommits > 0 {
		fmt.Fprintf(ui.Out, "  Upstream:   %d ahead, %d behind\n", s.AheadCommits, s.BehindCommits)
	}
	if s.StashCount > 0 {
		fmt.Fprintf(ui.Out, "  Stashes:    %d\n", s.StashCount)
	}
	if s.LastCommitHash != "" {
		short := s.LastCommitHash
		if len(short) > 7 {
			short = short[:7]
		}
		fmt.Fprintf(ui.Out, "  Last commit: %s", short)
		if s.LastCommitTimestamp != nil {
			fmt.Fprintf(ui.Out, " (%s)", timeAgo(*s.LastCommitTimestamp))
		}
		fmt.Fprintln(ui.Out)
	}
	fmt.Fprintf(ui.Out, "  Size:       %s\n", formatBytes(s.RepositorySizeBytes))
	fmt.Fprintln(ui.Out)

	st := r.Statistics
	fmt.Fprintf(ui.Out, "  Commits:    %d (%.2f/day)\n", st.TotalCommits, st.CommitFrequency)
	fmt.Fprintf(ui.Out, "  Files:      %d\n", st.TotalFiles)
	fmt.Fprintf(ui.Out, "  Authors:    %s\n", strings.Join(r.Metadata.Contributors, ", "))
	if len(r.Metadata.Tags) > 0 {
		fmt.Fprintf(ui.Out, "  Tags:       %s\n", strings.Join(r.Metadata.Tags, ", "))
	}
	if len(r.Metadata.Languages) > 0 {
		langs := make([]string, 0, len(r.Metadata.Languages))
		for name := range r.Metadata.Languages {
			langs = append(langs, name)
		}
		sort.Slice(langs, func(i, j int) bool {
			return r.Metadata.Languages[langs[i]] > r.Metadata.Languages[langs[j]]
		})
		parts := make([]string, len(langs))
		for i, name := range langs {
			parts[i] = fmt.Sprintf("%s %.0f%%", name, r.Metadata.Languages[name]*100)
		}
		fmt.Fprintf(ui.Out, "  Languages:  %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintf(ui.Out, "  Activity:   %s\n", output.HealthColor(st.ActivityScore))
}

func repoRescanOneRun(ref string) error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}
	r, err := t.Resolve(ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would rescan %s", r.Name)
		return nil
	}

	_, events, err := t.Rescan(ctx, r.ID)
	if err != nil {
		return err
	}
	if structured() {
		if events == nil {
			events = []models.StateChangeEvent{}
		}
		return render(events)
	}
	if len(events) == 0 {
		ui.Info("%s: no changes", output.Cyan(r.Name))
		return nil
	}
	for _, e := range events {
		ui.Success("%s: %s", output.Cyan(r.Name), e.Description)
	}
	return nil
}

func repoRescanAllRun() error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would rescan %d repositories", len(t.GetAll()))
		return nil
	}

	result := t.RescanAll(ctx)
	if structured() {
		return render(result)
	}
	printRescanResult(result)
	return nil
}

func printRescanResult(result *tracker.AllResult) {
	for _, r := range result.Results {
		switch {
		case r.Error != "":
			ui.Warning("%s: %s", r.Name, r.Error)
		case r.Changes > 0:
			ui.VerboseLog("%s: %d change(s)", r.Name, r.Changes)
		}
	}
	ui.Info("Rescanned %d repositories: %d changed, %d failed", result.Total, result.Changed, result.Failed)
}

func repoRemoveRun(ref string) error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}
	r, err := t.Resolve(ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would stop tracking: %s", r.Name)
		return nil
	}

	if err := t.Remove(ctx, r.ID); err != nil {
		return fmt.Errorf("remove repository: %w", err)
	}
	ui.Success("Stopped tracking %s", output.Cyan(r.Name))
	return nil
}

func repoHealthRun(ref string) error {
	ctx := context.Background()
	t, err := openTracker(ctx)
	if err != nil {
		return err
	}
	r, err := t.Resolve(ref)
	if errors.Is(err, tracker.ErrNotFound) {
		// Health checks also work on untracked paths.
		id, regErr := t.GetOrCreateRepositoryID(ctx, ref)
		if regErr != nil && id == "" {
			return err
		}
		r, err = t.Get(id)
	}
	if err != nil {
		return err
	}

	h, err := t.CheckHealth(ctx, r.ID)
	if err != nil {
		return err
	}
	if structured() {
		return render(h)
	}

	fmt.Fprintf(ui.Out, "%s  %s  %s\n", output.Cyan(r.Name), output.HealthStatusColor(h.Status), output.HealthColor(h.Score))
	fmt.Fprintln(ui.Out)
	table := ui.Table([]string{"Check", "Status", "Message"})
	for _, c := range h.Checks {
		table.Append([]string{c.Name, output.StatusColor(string(c.Status)), c.Message})
	}
	table.Render()

	if len(h.Issues) > 0 {
		fmt.Fprintln(ui.Out)
		for _, i := range h.Issues {
			ui.Warning("[%s] %s", i.Severity, i.Description)
		}
	}
	for _, rec := range h.Recommendations {
		ui.Info("%s", rec)
	}
	return nil
}

func repoWatchRun() error {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals()...)
	defer stop()

	t, err := openTracker(ctx)
	if err != nil {
		return err
	}

	ui.Info("Watching %d repositories every %s (Ctrl-C to stop)", len(t.GetAll()), trackerConfig().ScanInterval)
	err = t.Watch(ctx, func(result *tracker.AllResult) {
		if structured() {
			_ = render(result)
			return
		}
		printRescanResult(result)
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
