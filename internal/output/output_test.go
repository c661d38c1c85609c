package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestColorHelpers(t *testing.T) {
	// Color helpers should return non-empty strings
	assert.NotEmpty(t, Cyan("test"))
	assert.NotEmpty(t, Green("test"))
	assert.NotEmpty(t, Yellow("test"))
	assert.NotEmpty(t, Red("test"))
}

func TestStatusColor(t *testing.T) {
	assert.NotEmpty(t, StatusColor("TODO"))
	assert.NotEmpty(t, StatusColor("IN_PROGRESS"))
	assert.NotEmpty(t, StatusColor("IN_REVIEW"))
	assert.NotEmpty(t, StatusColor("DONE"))
	assert.Equal(t, "unknown", StatusColor("unknown"))
}

func TestPriorityColor(t *testing.T) {
	assert.NotEmpty(t, PriorityColor("URGENT"))
	assert.NotEmpty(t, PriorityColor("HIGH"))
	assert.NotEmpty(t, PriorityColor("MEDIUM"))
	assert.NotEmpty(t, PriorityColor("LOW"))
	assert.Equal(t, "whatever", PriorityColor("whatever"))
}

func TestSprintColor(t *testing.T) {
	assert.NotEmpty(t, SprintColor("PLANNED"))
	assert.NotEmpty(t, SprintColor("ACTIVE"))
	assert.NotEmpty(t, SprintColor("COMPLETED"))
	assert.Equal(t, "other", SprintColor("other"))
}

func TestTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.Table([]string{"Key", "Status"})
	require.NotNil(t, table)

	table.Append([]string{"ZIRA-1", "TODO"})
	table.Append([]string{"ZIRA-2", "DONE"})
	err := table.Render()
	require.NoError(t, err)

	result := out.String()
	assert.True(t, strings.Contains(result, "ZIRA-1"),
		"table output should contain issue keys")
	assert.True(t, strings.Contains(result, "ZIRA-2"),
		"table output should contain issue keys")
}

func TestBoardTable(t *testing.T) {
	u, out, _ := newTestUI()
	table := u.BoardTable([]string{"TODO", "IN_PROGRESS", "IN_REVIEW", "DONE"})
	require.NotNil(t, table)

	table.Append([]string{"Fix login", "Add search", "", "Ship v1"})
	err := table.Render()
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Fix login")
}
