package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configForce bool

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "weavegit"), nil
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or manage configuration",
	Long: `Show or manage weavegit configuration.

Running bare 'weavegit config' is the same as 'weavegit config show'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config file with commented defaults",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configInitRun()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration with sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configShowRun()
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return configEditRun()
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	rootCmd.AddCommand(configCmd)
}

// configTemplate is the template for generating config.yaml with comments.
const configTemplate = `# weavegit configuration
# See: weavegit config show (for effective values and sources)

# State/data directory (default: ~/.config/weavegit)
# state_dir: {{ .StateDir }}

# SQLite database path (default: ~/.config/weavegit/weavegit.db)
# db_path: {{ .DBPath }}

# Log level for diagnostics on stderr: debug, info, warn, error
log_level: {{ .LogLevel }}

# Conflict detection
conflicts:
  # Number of repository paths whose results are cached
  cache_size: {{ .CacheSize }}

  # Passed to custom detection strategies
  detection_sensitivity: {{ .Sensitivity }}

  # Run the semantic and proactive detection strategies
  enable_semantic_detection: {{ .Semantic }}
  enable_proactive_detection: {{ .Proactive }}

  # Upper bound on one detection run
  analysis_timeout_seconds: {{ .AnalysisTimeout }}

# Repository tracking
repos:
  max_repositories: {{ .MaxRepositories }}

  # Interval for 'weavegit repo watch'
  scan_interval_seconds: {{ .ScanInterval }}

  # Per-check timeout for health checks
  health_check_timeout_seconds: {{ .HealthTimeout }}

  # Commits walked when collecting contributors
  contributor_walk_limit: {{ .ContributorLimit }}

  # Fetch description and license from GitHub with the gh CLI
  github_enrichment: {{ .GitHubEnrichment }}

# Health thresholds
health:
  min_free_disk_bytes: {{ .MinFreeDisk }}
  max_repository_size_bytes: {{ .MaxRepoSize }}
`

type configTemplateData struct {
	StateDir         string
	DBPath           string
	LogLevel         string
	CacheSize        int
	Sensitivity      float64
	Semantic         bool
	Proactive        bool
	AnalysisTimeout  int
	MaxRepositories  int
	ScanInterval     int
	HealthTimeout    int
	ContributorLimit int
	GitHubEnrichment bool
	MinFreeDisk      uint64
	MaxRepoSize      int64
}

func configFilePath() (string, error) {
	dir, err := configDirFunc()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

func configInitRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if file already exists
	if _, err := os.Stat(cfgPath); err == nil {
		if !configForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", cfgPath)
		}
		ui.Warning("Overwriting existing config file")
	}

	// Build template data from current viper values
	data := configTemplateData{
		StateDir:         viper.GetString("state_dir"),
		DBPath:           viper.GetString("db_path"),
		LogLevel:         viper.GetString("log_level"),
		CacheSize:        viper.GetInt("conflicts.cache_size"),
		Sensitivity:      viper.GetFloat64("conflicts.detection_sensitivity"),
		Semantic:         viper.GetBool("conflicts.enable_semantic_detection"),
		Proactive:        viper.GetBool("conflicts.enable_proactive_detection"),
		AnalysisTimeout:  viper.GetInt("conflicts.analysis_timeout_seconds"),
		MaxRepositories:  viper.GetInt("repos.max_repositories"),
		ScanInterval:     viper.GetInt("repos.scan_interval_seconds"),
		HealthTimeout:    viper.GetInt("repos.health_check_timeout_seconds"),
		ContributorLimit: viper.GetInt("repos.contributor_walk_limit"),
		GitHubEnrichment: viper.GetBool("repos.github_enrichment"),
		MinFreeDisk:      viper.GetUint64("health.min_free_disk_bytes"),
		MaxRepoSize:      viper.GetInt64("health.max_repository_size_bytes"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("template parse error: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("template execute error: %w", err)
	}

	if dryRun {
		ui.DryRunMsg("Would create config file: %s", cfgPath)
		fmt.Fprintln(ui.Out)
		fmt.Fprint(ui.Out, buf.String())
		return nil
	}

	// Create config directory
	dir := filepath.Dir(cfgPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(cfgPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	ui.Success("Config file created: %s", cfgPath)
	fmt.Fprintln(ui.Out)
	fmt.Fprint(ui.Out, buf.String())
	return nil
}

// configKeyInfo describes a config key for display purposes.
type configKeyInfo struct {
	Key    string
	EnvVar string
}

var configKeys = []configKeyInfo{
	{Key: "state_dir", EnvVar: "WEAVEGIT_STATE_DIR"},
	{Key: "db_path", EnvVar: "WEAVEGIT_DB_PATH"},
	{Key: "log_level", EnvVar: "WEAVEGIT_LOG_LEVEL"},
	{Key: "conflicts.cache_size", EnvVar: "WEAVEGIT_CONFLICTS_CACHE_SIZE"},
	{Key: "conflicts.detection_sensitivity", EnvVar: "WEAVEGIT_CONFLICTS_DETECTION_SENSITIVITY"},
	{Key: "conflicts.enable_semantic_detection", EnvVar: "WEAVEGIT_CONFLICTS_ENABLE_SEMANTIC_DETECTION"},
	{Key: "conflicts.enable_proactive_detection", EnvVar: "WEAVEGIT_CONFLICTS_ENABLE_PROACTIVE_DETECTION"},
	{Key: "conflicts.analysis_timeout_seconds", EnvVar: "WEAVEGIT_CONFLICTS_ANALYSIS_TIMEOUT_SECONDS"},
	{Key: "repos.max_repositories", EnvVar: "WEAVEGIT_REPOS_MAX_REPOSITORIES"},
	{Key: "repos.scan_interval_seconds", EnvVar: "WEAVEGIT_REPOS_SCAN_INTERVAL_SECONDS"},
	{Key: "repos.health_check_timeout_seconds", EnvVar: "WEAVEGIT_REPOS_HEALTH_CHECK_TIMEOUT_SECONDS"},
	{Key: "repos.contributor_walk_limit", EnvVar: "WEAVEGIT_REPOS_CONTRIBUTOR_WALK_LIMIT"},
	{Key: "repos.github_enrichment", EnvVar: "WEAVEGIT_REPOS_GITHUB_ENRICHMENT"},
	{Key: "health.min_free_disk_bytes", EnvVar: "WEAVEGIT_HEALTH_MIN_FREE_DISK_BYTES"},
	{Key: "health.max_repository_size_bytes", EnvVar: "WEAVEGIT_HEALTH_MAX_REPOSITORY_SIZE_BYTES"},
}

func configShowRun() error {
	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	// Check if config file exists
	if _, err := os.Stat(cfgPath); err == nil {
		ui.Info("Config file: %s", cfgPath)
	} else {
		ui.Info("Config file: (none)")
	}
	fmt.Fprintln(ui.Out)

	// Read config file values to determine file source
	fileValues := readConfigFileValues(cfgPath)

	for _, k := range configKeys {
		val := viper.Get(k.Key)
		source := detectSource(k.Key, k.EnvVar, fileValues)
		fmt.Fprintf(ui.Out, "  %-40s %v  %s\n", k.Key, val, source)
	}

	return nil
}

// readConfigFileValues reads the raw YAML file and returns a flat map of keys present in it.
func readConfigFileValues(path string) map[string]bool {
	result := make(map[string]bool)

	data, err := os.ReadFile(path)
	if err != nil {
		return result
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return result
	}

	// Flatten nested keys with dot notation
	flattenKeys("", parsed, result)
	return result
}

// flattenKeys recursively flattens a nested map to dot-notation keys.
func flattenKeys(prefix string, m map[string]any, result map[string]bool) {
	for key, val := range m {
		fullKey := key
		if prefix != "" {
			fullKey = prefix + "." + key
		}
		if nested, ok := val.(map[string]any); ok {
			flattenKeys(fullKey, nested, result)
		} else {
			result[fullKey] = true
		}
	}
}

// detectSource determines where a config value is coming from.
func detectSource(key, envVar string, fileValues map[string]bool) string {
	if _, ok := os.LookupEnv(envVar); ok {
		return fmt.Sprintf("(env: %s)", envVar)
	}
	if fileValues[key] {
		return "(file)"
	}
	return "(default)"
}

func configEditRun() error {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = os.Getenv("VISUAL")
	}
	if editor == "" {
		return fmt.Errorf("$EDITOR is not set; set it to your preferred editor (e.g. export EDITOR=vim)")
	}

	cfgPath, err := configFilePath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		return fmt.Errorf("config file not found: %s (run 'weavegit config init' first)", cfgPath)
	}

	if dryRun {
		ui.DryRunMsg("Would open %s in %s", cfgPath, editor)
		return nil
	}

	editCmd := exec.Command(editor, cfgPath)
	editCmd.Stdin = os.Stdin
	editCmd.Stdout = os.Stdout
	editCmd.Stderr = os.Stderr
	return editCmd.Run()
}
