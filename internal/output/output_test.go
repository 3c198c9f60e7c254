package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BalansCollective/weavemesh-git/internal/models"
)

func newTestUI() (*UI, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	return &UI{Out: out, ErrOut: errOut}, out, errOut
}

func TestInfo(t *testing.T) {
	u, out, _ := newTestUI()
	u.Info("hello %s", "world")
	assert.Contains(t, out.String(), "hello world")
}

func TestSuccess(t *testing.T) {
	u, out, _ := newTestUI()
	u.Success("done %d", 42)
	assert.Contains(t, out.String(), "done 42")
}

func TestWarning(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Warning("careful %s", "now")
	assert.Contains(t, errOut.String(), "careful now")
}

func TestError(t *testing.T) {
	u, _, errOut := newTestUI()
	u.Error("failed %s", "badly")
	assert.Contains(t, errOut.String(), "failed badly")
}

func TestVerboseLog_Enabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = true
	u.VerboseLog("detail %d", 1)
	assert.Contains(t, out.String(), "detail 1")
}

func TestVerboseLog_Disabled(t *testing.T) {
	u, out, _ := newTestUI()
	u.Verbose = false
	u.VerboseLog("detail %d", 1)
	assert.Empty(t, out.String())
}

func TestDryRunMsg_Enabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = true
	u.DryRunMsg("would create %s", "file")
	assert.Contains(t, errOut.String(), "[DRY-RUN]")
	assert.Contains(t, errOut.String(), "would create file")
}

func TestDryRunMsg_Disabled(t *testing.T) {
	u, _, errOut := newTestUI()
	u.DryRun = false
	u.DryRunMsg("would create %s", "file")
	assert.Empty(t, errOut.String())
}

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor("detected"))
	assert.NotEmpty(t, StatusColor("in_progress"))
	assert.NotEmpty(t, StatusColor("resolved"))
	assert.NotEmpty(t, StatusColor("failed"))
	assert.Contains(t, StatusColor("passed"), "passed")
	assert.Contains(t, StatusColor("timeout"), "timeout")
	assert.Equal(t, "skipped", StatusColor("skipped"))
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestSeverityColor(t *testing.T) {
	assert.Equal(t, "minor", SeverityColor(models.SeverityMinor))
	assert.Contains(t, SeverityColor(models.SeverityMajor), "major")
	assert.Contains(t, SeverityColor(models.SeverityBlocking), "blocking")
}

func TestHealthColor(t *testing.T) {
	assert.Contains(t, HealthColor(0.9), "90%")
	assert.Contains(t, HealthColor(0.6), "60%")
	assert.Contains(t, HealthColor(0.3), "30%")
}

func TestHealthStatusColor(t *testing.T) {
	assert.Contains(t, HealthStatusColor(models.HealthHealthy), "healthy")
	assert.Contains(t, HealthStatusColor(models.HealthFailed), "failed")
	assert.Equal(t, "unknown", HealthStatusColor(models.HealthUnknown))
}

func TestRender(t *testing.T) {
	v := struct {
		Name     string                  `json:"name"`
		Severity models.ConflictSeverity `json:"severity"`
	}{"file.txt", models.SeverityMajor}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, "json", v))
	assert.Equal(t, "{\n  \"name\": \"file.txt\",\n  \"severity\": \"major\"\n}\n", buf.String())

	buf.Reset()
	require.NoError(t, Render(&buf, "yaml", v))
	assert.Equal(t, "name: file.txt\nseverity: major\n", buf.String())

	assert.Error(t, Render(&buf, "xml", v))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Name", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"weavemesh", "healthy"})
	table.Append([]string{"dotfiles", "warning"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "weavemesh"), "table output should contain repository names")
	assert.True(t, strings.Contains(result, "dotfiles"), "table output should contain repository names")
}
