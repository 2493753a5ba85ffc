package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, _, err := execute(t, "init", root)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "rules.kdl"),
		[]byte(`pattern "fmt" { regex "Println\\((\\w+)\\)"; replace "Print($1)"; }`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"),
		[]byte("package main\n\nfunc main() { fmt.Println(x) }\n"), 0o644))
	return root
}

func TestInitRefusesToOverwrite(t *testing.T) {
	root := newProject(t)
	_, _, err := execute(t, "init", root)
	require.Error(t, err)
}

func TestCheckCommand(t *testing.T) {
	root := newProject(t)
	cfg := filepath.Join(root, "recast.toml")

	out, _, err := execute(t, "check", "--config", cfg, "--print")
	require.NoError(t, err)
	assert.Contains(t, out, "rules.kdl: 1 patterns")
	assert.Contains(t, out, `pattern "fmt"`)

	bad := filepath.Join(root, "bad.kdl")
	require.NoError(t, os.WriteFile(bad, []byte(`pattern "x" { remove; }`), 0o644))
	_, _, err = execute(t, "check", "--config", cfg, bad)
	require.Error(t, err)
}

func TestPlanCommandWritesJSON(t *testing.T) {
	root := newProject(t)
	cfg := filepath.Join(root, "recast.toml")

	out, stderr, err := execute(t, "plan", "--config", cfg, "-o", "-", "--format", "json", "--preview")
	require.NoError(t, err)

	var decoded struct {
		Issues []struct {
			Pattern string `json:"pattern"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded.Issues, 1)
	assert.Equal(t, "fmt", decoded.Issues[0].Pattern)
	assert.Contains(t, stderr, "+func main() { fmt.Print(x) }")
	assert.Contains(t, stderr, "issues: 1")
}

func TestPlanCommandRejectsBadFormat(t *testing.T) {
	root := newProject(t)
	_, _, err := execute(t, "plan", "--config", filepath.Join(root, "recast.toml"), "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan.format")
}
