package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BalansCollective/weavemesh-git/internal/conflict"
	"github.com/BalansCollective/weavemesh-git/internal/models"
	"github.com/BalansCollective/weavemesh-git/internal/output"
)

var (
	recordResolution   string
	recordFailed       bool
	recordMinutes      int
	recordQuality      float64
	recordDescription  string
	recordParticipants []string
	recordLessons      []string

	patternsLearn bool
	historyLimit  int
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Aliases: []string{"c"},
	Short:   "Detect conflicts and manage resolution history",
}

var conflictsDetectCmd = &cobra.Command{
	Use:   "detect [path]",
	Short: "Detect conflicts in a working copy",
	Long:  "Detect merge conflicts in the repository containing path (default: current directory) and list suggested resolutions.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "."
		if len(args) > 0 {
			path = args[0]
		}
		return conflictsDetectRun(path)
	},
}

var conflictsRecordCmd = &cobra.Command{
	Use:   "record <path> <file>",
	Short: "Record how a conflict was resolved",
	Long: `Record the outcome of resolving the conflict in <file> of the repository at <path>.

The conflict must still be detectable, so record before committing the merge.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictsRecordRun(args[0], args[1])
	},
}

var conflictsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show conflict and resolution statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictsStatsRun()
	},
}

var conflictsPatternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List learned conflict patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictsPatternsRun()
	},
}

var conflictsHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded resolutions",
	RunE: func(cmd *cobra.Command, args []string) error {
		return conflictsHistoryRun()
	},
}

func init() {
	conflictsRecordCmd.Flags().StringVarP(&recordResolution, "resolution", "r", string(models.ResolutionAcceptOurs), "Suggested resolution that was applied (accept_ours, accept_theirs, manual_merge)")
	conflictsRecordCmd.Flags().BoolVar(&recordFailed, "failed", false, "The resolution did not work")
	conflictsRecordCmd.Flags().IntVar(&recordMinutes, "minutes", 0, "Minutes spent resolving")
	conflictsRecordCmd.Flags().Float64Var(&recordQuality, "quality", 0, "Quality score between 0 and 1")
	conflictsRecordCmd.Flags().StringVarP(&recordDescription, "message", "m", "", "What happened")
	conflictsRecordCmd.Flags().StringSliceVar(&recordParticipants, "participant", nil, "Participant name (repeatable)")
	conflictsRecordCmd.Flags().StringSliceVar(&recordLessons, "lesson", nil, "Lesson learned (repeatable)")

	conflictsPatternsCmd.Flags().BoolVar(&patternsLearn, "learn", false, "Mine the resolution history before listing")
	conflictsHistoryCmd.Flags().IntVar(&historyLimit, "limit", 20, "Show at most this many records (0 for all)")

	conflictsCmd.AddCommand(conflictsDetectCmd)
	conflictsCmd.AddCommand(conflictsRecordCmd)
	conflictsCmd.AddCommand(conflictsStatsCmd)
	conflictsCmd.AddCommand(conflictsPatternsCmd)
	conflictsCmd.AddCommand(conflictsHistoryCmd)
	rootCmd.AddCommand(conflictsCmd)
}

func openDetector(ctx context.Context) (*conflict.Detector, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return newDetector(ctx, s)
}

func conflictsDetectRun(path string) error {
	ctx := context.Background()
	d, err := openDetector(ctx)
	if err != nil {
		return err
	}

	conflicts, err := d.DetectConflicts(ctx, path)
	if err != nil {
		return err
	}

	if structured() {
		return render(conflicts)
	}
	if len(conflicts) == 0 {
		ui.Success("No conflicts in %s", path)
		return nil
	}

	table := ui.Table([]string{"File", "Type", "Severity", "Lines", "Category", "Status"})
	for _, c := range conflicts {
		lines := "-"
		if c.Location.StartLine > 0 {
			lines = fmt.Sprintf("%d-%d", c.Location.StartLine, c.Location.EndLine)
		}
		table.Append([]string{
			output.Cyan(c.FilePath),
			string(c.Type),
			output.SeverityColor(c.Severity),
			lines,
			string(c.Content.Category),
			output.StatusColor(string(c.ResolutionStatus)),
		})
	}
	table.Render()

	if ui.Verbose {
		for _, c := range conflicts {
			printResolutions(d, c)
		}
	}

	ui.Info("%d conflict(s) found", len(conflicts))
	return nil
}

func printResolutions(d *conflict.Detector, c models.Conflict) {
	fmt.Fprintf(ui.Out, "\n%s\n", output.Cyan(c.FilePath))
	for _, r := range c.Resolutions {
		fmt.Fprintf(ui.Out, "  %-14s %.0f%%  effort=%s risk=%s\n", r.Type, r.Confidence*100, r.EstimatedEffort, r.RiskLevel)
		for _, step := range r.Steps {
			fmt.Fprintf(ui.Out, "    %d. %s\n", step.Order, step.Description)
		}
	}
	for _, p := range d.MatchingPatterns(c) {
		fmt.Fprintf(ui.Out, "  pattern: %s (%.0f%% confidence)\n", p.Name, p.Confidence*100)
	}
}

func findConflict(conflicts []models.Conflict, file string) (models.Conflict, error) {
	want := filepath.ToSlash(filepath.Clean(file))
	for _, c := range conflicts {
		if filepath.ToSlash(c.FilePath) == want {
			return c, nil
		}
	}
	return models.Conflict{}, fmt.Errorf("no conflict detected in %s", file)
}

func findResolution(c models.Conflict, kind string) (models.Resolution, error) {
	var offered []string
	for _, r := range c.Resolutions {
		if string(r.Type) == kind {
			return r, nil
		}
		offered = append(offered, string(r.Type))
	}
	return models.Resolution{}, fmt.Errorf("resolution %q is not suggested for %s (have: %s)", kind, c.FilePath, strings.Join(offered, ", "))
}

func conflictsRecordRun(path, file string) error {
	ctx := context.Background()
	d, err := openDetector(ctx)
	if err != nil {
		return err
	}

	conflicts, err := d.DetectConflicts(ctx, path)
	if err != nil {
		return err
	}
	c, err := findConflict(conflicts, file)
	if err != nil {
		return err
	}
	res, err := findResolution(c, recordResolution)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would record %s for %s (success=%t)", res.Type, c.FilePath, !recordFailed)
		return nil
	}

	outcome := models.ResolutionOutcome{
		Success:         !recordFailed,
		Description:     recordDescription,
		QualityScore:    recordQuality,
		SideEffects:     []string{},
		FollowUpActions: []string{},
	}
	rec, err := d.RecordResolution(ctx, c, res, outcome, recordMinutes, recordParticipants, recordLessons)
	if err != nil {
		return err
	}

	if structured() {
		return render(rec)
	}
	ui.Success("Recorded %s for %s as %s", res.Type, output.Cyan(c.FilePath), output.StatusColor(string(rec.Conflict.ResolutionStatus)))
	return nil
}

func conflictsStatsRun() error {
	ctx := context.Background()
	d, err := openDetector(ctx)
	if err != nil {
		return err
	}

	stats := d.Statistics()
	if structured() {
		return render(stats)
	}

	fmt.Fprintf(ui.Out, "  Conflicts:        %d\n", stats.TotalConflicts)
	fmt.Fprintf(ui.Out, "  Resolved:         %d\n", stats.ResolvedConflicts)
	fmt.Fprintf(ui.Out, "  Resolution rate:  %.0f%%\n", stats.ResolutionRate*100)
	fmt.Fprintf(ui.Out, "  Avg time:         %.1f min\n", stats.AverageResolutionMins)
	fmt.Fprintf(ui.Out, "  Patterns learned: %d\n", stats.PatternsLearned)
	return nil
}

func conflictsPatternsRun() error {
	ctx := context.Background()
	d, err := openDetector(ctx)
	if err != nil {
		return err
	}

	learned := d.Patterns()
	if patternsLearn {
		if dryRun {
			ui.DryRunMsg("Would mine %d resolution record(s)", len(d.History()))
		} else if learned, err = d.LearnPatterns(ctx); err != nil {
			return err
		}
	}

	if structured() {
		return render(learned)
	}
	if len(learned) == 0 {
		ui.Info("No patterns learned. Record resolutions, then run 'weavegit conflicts patterns --learn'.")
		return nil
	}

	table := ui.Table([]string{"Pattern", "Frequency", "Success", "Confidence", "Typical"})
	for _, p := range learned {
		typical := make([]string, len(p.TypicalResolutions))
		for i, r := range p.TypicalResolutions {
			typical[i] = string(r)
		}
		table.Append([]string{
			output.Cyan(p.Name),
			fmt.Sprintf("%d", p.Frequency),
			fmt.Sprintf("%.0f%%", p.SuccessRate*100),
			fmt.Sprintf("%.2f", p.Confidence),
			strings.Join(typical, ", "),
		})
	}
	table.Render()
	return nil
}

func conflictsHistoryRun() error {
	s, err := getStore()
	if err != nil {
		return err
	}

	records, err := s.ListResolutionRecords(context.Background(), historyLimit)
	if err != nil {
		return err
	}
	if structured() {
		return render(records)
	}
	if len(records) == 0 {
		ui.Info("No resolutions recorded.")
		return nil
	}

	table := ui.Table([]string{"When", "File", "Type", "Resolution", "Outcome", "Minutes"})
	for _, r := range records {
		outcome := output.Green("success")
		if !r.Outcome.Success {
			outcome = output.Red("failed")
		}
		table.Append([]string{
			timeAgo(r.RecordedAt),
			r.Conflict.FilePath,
			string(r.Conflict.Type),
			string(r.Resolution.Type),
			outcome,
			fmt.Sprintf("%d", r.ResolutionTimeMinutes),
		})
	}
	table.Render()
	return nil
}
