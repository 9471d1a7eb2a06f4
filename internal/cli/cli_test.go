package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mkfoss/nwrfc"
)

// run executes rfcread with args and returns its standard output.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var out, errOut bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestReadRaw(t *testing.T) {
	out, err := run(t, "read", "t000", "--simulate", "--raw")
	require.NoError(t, err)
	require.Contains(t, out, "MANDT|MTEXT|ORT01|MWAER|CCCATEGORY")
	require.Contains(t, out, "EarlyWatch")
}

func TestReadSelection(t *testing.T) {
	out, err := run(t, "read", "USR02", "--simulate", "--raw",
		"--fields", "bname", "--where", "BNAME LIKE 'D%'")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Equal(t, "BNAME", lines[0])
	require.Len(t, lines, 3)
	require.Equal(t, "DDIC", strings.TrimSpace(lines[1]))
	require.Equal(t, "DEVELOPER", strings.TrimSpace(lines[2]))
}

func TestReadTableOutput(t *testing.T) {
	out, err := run(t, "read", "T000", "--simulate", "--max", "2")
	require.NoError(t, err)
	require.Contains(t, out, "MTEXT")
	require.Contains(t, out, "SAP AG Konzern")
	require.NotContains(t, out, "EarlyWatch")
	require.Contains(t, out, "2 rows")
}

func TestReadUnknownTable(t *testing.T) {
	_, err := run(t, "read", "ZNOPE", "--simulate")
	require.ErrorIs(t, err, nwrfc.ErrRpcFailed)
	require.Contains(t, err.Error(), "TABLE_NOT_AVAILABLE")
}

func TestDescribe(t *testing.T) {
	out, err := run(t, "describe", "rfc_read_table", "--simulate", "--fields")
	require.NoError(t, err)
	for _, want := range []string{"RFC_READ_TABLE", "QUERY_TABLE", "DELIMITER", "TAB512", "FIELDNAME"} {
		require.Contains(t, out, want)
	}
}

func TestDescribeUnknownFunction(t *testing.T) {
	_, err := run(t, "describe", "Z_MISSING", "--simulate")
	require.ErrorIs(t, err, nwrfc.ErrFunctionNotFound)
}

func TestPing(t *testing.T) {
	out, err := run(t, "ping", "--simulate")
	require.NoError(t, err)
	require.Contains(t, out, "pong")
	require.Contains(t, out, "Simulated")
}

func TestNoDestination(t *testing.T) {
	_, err := run(t, "ping")
	require.ErrorIs(t, err, errNoDestination)
}

func TestDestinationFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nwrfc.yaml")
	cfg := "destinations:\n  sim:\n    ashost: sim\n    client: \"001\"\n    user: U\n    passwd: p\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, err := run(t, "ping", "--simulate", "--config", path, "--dest", "sim")
	require.NoError(t, err)
	require.Contains(t, out, "pong")

	_, err = run(t, "ping", "--simulate", "--config", path, "--dest", "sim", "--param", "passwd=wrong")
	require.ErrorIs(t, err, nwrfc.ErrConnectFailed)
}

func TestOptionLines(t *testing.T) {
	where := strings.Repeat("BNAME LIKE 'DEV%' OR ", 10) + "BNAME = 'U'"
	lines := optionLines(where)
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		require.LessOrEqual(t, len(l), optionWidth)
	}
	require.Equal(t, strings.Join(strings.Fields(where), " "), strings.Join(lines, " "))
	require.Empty(t, optionLines("   "))
}
