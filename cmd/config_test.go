package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BalansCollective/weavemesh-git/internal/output"
)

// testEnv sets up isolated config dir, viper, and output for testing.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	// Override configDirFunc for tests
	origFunc := configDirFunc
	configDirFunc = func() (string, error) { return dir, nil }
	t.Cleanup(func() { configDirFunc = origFunc })

	viper.Reset()
	setDefaults(dir)

	ui = output.New()
	ui.Out = &bytes.Buffer{}
	ui.ErrOut = &bytes.Buffer{}
	outputFormat = "table"

	t.Cleanup(func() {
		if dataStore != nil {
			_ = dataStore.Close()
			dataStore = nil
		}
	})

	return dir
}

func outText() string {
	return ui.Out.(*bytes.Buffer).String()
}

func TestConfigInit_CreatesFile(t *testing.T) {
	dir := testEnv(t)

	err := configInitRun()
	require.NoError(t, err)

	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.NoError(t, err, "config file should exist")

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "weavegit configuration")
	assert.Contains(t, string(data), "analysis_timeout_seconds: 60")
}

func TestConfigInit_RefusesOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = false
	err := configInitRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigInit_ForceOverwrite(t *testing.T) {
	dir := testEnv(t)

	// Create existing file
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("existing"), 0644))

	configForce = true
	err := configInitRun()
	require.NoError(t, err)

	data, err := os.ReadFile(cfgPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "weavegit configuration")
}

func TestConfigShow_NoFile(t *testing.T) {
	testEnv(t)

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigShow_WithFile(t *testing.T) {
	testEnv(t)

	// Create config first
	require.NoError(t, configInitRun())

	err := configShowRun()
	assert.NoError(t, err)
}

func TestConfigEdit_NoEditor(t *testing.T) {
	testEnv(t)

	// Unset EDITOR and VISUAL
	origEditor := os.Getenv("EDITOR")
	origVisual := os.Getenv("VISUAL")
	_ = os.Unsetenv("EDITOR")
	_ = os.Unsetenv("VISUAL")
	t.Cleanup(func() {
		if origEditor != "" {
			_ = os.Setenv("EDITOR", origEditor)
		}
		if origVisual != "" {
			_ = os.Setenv("VISUAL", origVisual)
		}
	})

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "$EDITOR is not set")
}

func TestConfigEdit_NoConfigFile(t *testing.T) {
	testEnv(t)

	_ = os.Setenv("EDITOR", "echo") // harmless command
	t.Cleanup(func() { _ = os.Unsetenv("EDITOR") })

	err := configEditRun()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestDetectSource(t *testing.T) {
	fileValues := map[string]bool{"key_a": true}

	// From env
	os.Setenv("WEAVEGIT_TEST_KEY", "val")
	defer os.Unsetenv("WEAVEGIT_TEST_KEY")
	assert.Contains(t, detectSource("test_key", "WEAVEGIT_TEST_KEY", fileValues), "env")

	// From file
	assert.Contains(t, detectSource("key_a", "WEAVEGIT_KEY_A_NONEXISTENT", fileValues), "file")

	// Default
	assert.Contains(t, detectSource("key_b", "WEAVEGIT_KEY_B_NONEXISTENT", fileValues), "default")
}

func TestFlattenKeys(t *testing.T) {
	input := map[string]any{
		"top": "val",
		"nested": map[string]any{
			"a": "1",
			"b": "2",
		},
	}

	result := make(map[string]bool)
	flattenKeys("", input, result)

	assert.True(t, result["top"])
	assert.True(t, result["nested.a"])
	assert.True(t, result["nested.b"])
	assert.False(t, result["nested"])
}

func TestConfigInit_DryRun(t *testing.T) {
	dir := testEnv(t)
	dryRun = true
	ui.DryRun = true
	defer func() { dryRun = false }()

	err := configInitRun()
	require.NoError(t, err)

	// File should NOT have been created
	cfgPath := filepath.Join(dir, "config.yaml")
	_, err = os.Stat(cfgPath)
	assert.True(t, os.IsNotExist(err), "config file should not exist in dry-run mode")
}

func TestConfigInit_ReadableByViper(t *testing.T) {
	dir := testEnv(t)
	viper.Set("conflicts.cache_size", 42)
	require.NoError(t, configInitRun())

	viper.Reset()
	viper.SetConfigFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, viper.ReadInConfig())
	assert.Equal(t, 42, viper.GetInt("conflicts.cache_size"))
	assert.Equal(t, 100, viper.GetInt("repos.max_repositories"))
	assert.Equal(t, "warn", viper.GetString("log_level"))
}

func TestConfigShow_ListsKeys(t *testing.T) {
	testEnv(t)
	require.NoError(t, configShowRun())

	out := outText()
	assert.Contains(t, out, "Config file: (none)")
	assert.Contains(t, out, "conflicts.cache_size")
	assert.Contains(t, out, "(default)")
}

func TestConfigKeys_EnvNames(t *testing.T) {
	for _, k := range configKeys {
		assert.Equal(t, "WEAVEGIT_"+strings.ToUpper(strings.ReplaceAll(k.Key, ".", "_")), k.EnvVar)
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("INFO"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("nonsense"))
}

func TestComponentConfigs(t *testing.T) {
	testEnv(t)
	viper.Set("conflicts.analysis_timeout_seconds", 5)
	viper.Set("repos.scan_interval_seconds", 10)
	viper.Set("health.min_free_disk_bytes", 123)

	dc := detectorConfig()
	assert.Equal(t, 1000, dc.CacheSize)
	assert.InDelta(t, 0.7, dc.DetectionSensitivity, 0.0001)
	assert.True(t, dc.EnableSemanticDetection)
	assert.Equal(t, 5*time.Second, dc.AnalysisTimeout)

	tc := trackerConfig()
	assert.Equal(t, 100, tc.MaxRepositories)
	assert.Equal(t, 10*time.Second, tc.ScanInterval)

	hc := healthConfig()
	assert.Equal(t, 30*time.Second, hc.CheckTimeout)
	assert.Equal(t, uint64(123), hc.MinFreeDiskBytes)
	assert.Equal(t, int64(2<<30), hc.MaxRepositorySizeBytes)
}
