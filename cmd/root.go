package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BalansCollective/weavemesh-git/internal/conflict"
	"github.com/BalansCollective/weavemesh-git/internal/git"
	"github.com/BalansCollective/weavemesh-git/internal/health"
	"github.com/BalansCollective/weavemesh-git/internal/output"
	"github.com/BalansCollective/weavemesh-git/internal/store"
	"github.com/BalansCollective/weavemesh-git/internal/tracker"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose      bool
	dryRun       bool
	outputFormat string
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "weavegit",
	Short: "Detect merge conflicts and track git repositories",
	Long: `weavegit finds conflicts in git working copies, suggests ways to
resolve them, learns from how they were resolved, and keeps track of the
state and health of the repositories you register.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "Output format: table, json or yaml")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/weavegit/config.yaml)")
}

func setDefaults(stateDir string) {
	viper.SetDefault("state_dir", stateDir)
	viper.SetDefault("db_path", filepath.Join(stateDir, "weavegit.db"))
	viper.SetDefault("log_level", "warn")

	viper.SetDefault("conflicts.cache_size", 1000)
	viper.SetDefault("conflicts.detection_sensitivity", 0.7)
	viper.SetDefault("conflicts.enable_semantic_detection", true)
	viper.SetDefault("conflicts.enable_proactive_detection", true)
	viper.SetDefault("conflicts.analysis_timeout_seconds", 60)

	viper.SetDefault("repos.max_repositories", 100)
	viper.SetDefault("repos.scan_interval_seconds", 300)
	viper.SetDefault("repos.health_check_timeout_seconds", 30)
	viper.SetDefault("repos.contributor_walk_limit", 100)
	viper.SetDefault("repos.github_enrichment", true)

	viper.SetDefault("health.min_free_disk_bytes", uint64(1<<30))
	viper.SetDefault("health.max_repository_size_bytes", int64(2<<30))

	viper.SetDefault("serve.host", "127.0.0.1")
	viper.SetDefault("serve.port", 7878)
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(dir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("WEAVEGIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	dir, _ := configDirFunc()
	setDefaults(dir)

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	level := parseLogLevel(viper.GetString("log_level"))
	if verbose && level > slog.LevelDebug {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func seconds(key string) time.Duration {
	return time.Duration(viper.GetInt(key)) * time.Second
}

func detectorConfig() conflict.Config {
	return conflict.Config{
		CacheSize:                viper.GetInt("conflicts.cache_size"),
		DetectionSensitivity:     viper.GetFloat64("conflicts.detection_sensitivity"),
		EnableSemanticDetection:  viper.GetBool("conflicts.enable_semantic_detection"),
		EnableProactiveDetection: viper.GetBool("conflicts.enable_proactive_detection"),
		AnalysisTimeout:          seconds("conflicts.analysis_timeout_seconds"),
	}
}

func trackerConfig() tracker.Config {
	cfg := tracker.DefaultConfig()
	cfg.MaxRepositories = viper.GetInt("repos.max_repositories")
	cfg.ContributorWalkLimit = viper.GetInt("repos.contributor_walk_limit")
	cfg.ScanInterval = seconds("repos.scan_interval_seconds")
	return cfg
}

func healthConfig() health.Config {
	return health.Config{
		CheckTimeout:           seconds("repos.health_check_timeout_seconds"),
		MinFreeDiskBytes:       viper.GetUint64("health.min_free_disk_bytes"),
		MaxRepositorySizeBytes: viper.GetInt64("health.max_repository_size_bytes"),
	}
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(context.Background()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// newDetector builds a detector with its resolution history and learned
// patterns restored from the store.
func newDetector(ctx context.Context, s store.Store) (*conflict.Detector, error) {
	d := conflict.NewDetector(detectorConfig(), git.NewClient(), slog.Default(), conflict.WithHistorySink(s))

	history, err := s.ListResolutionRecords(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("load resolution history: %w", err)
	}
	learned, err := s.ListPatterns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	d.Restore(history, learned)
	return d, nil
}

// newTracker builds a tracker with its registrations restored from the store.
func newTracker(ctx context.Context, s store.Store) (*tracker.Tracker, error) {
	gc := git.NewClient()
	opts := []tracker.Option{
		tracker.WithStore(s),
		tracker.WithHealthChecker(health.NewChecker(healthConfig(), gc)),
	}
	if viper.GetBool("repos.github_enrichment") {
		opts = append(opts, tracker.WithGitHub(git.NewGitHubClient()))
	}
	t := tracker.New(trackerConfig(), gc, slog.Default(), opts...)
	if err := t.Load(ctx); err != nil {
		return nil, err
	}
	return t, nil
}

// structured reports whether the output flag asks for machine-readable output.
func structured() bool {
	return outputFormat == "json" || outputFormat == "yaml"
}

func render(v any) error {
	return output.Render(ui.Out, outputFormat, v)
}
