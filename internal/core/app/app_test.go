package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"recast/internal/core/config"
	"recast/internal/core/errors"
	"recast/internal/engine/plan"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
pattern "todo" { text "TODO"; log "todo at ${range}"; }
pattern "rename-helper" { symbol "Helper"; replace "Assist"; }
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, config.DefaultFile, "")
	writeFile(t, root, "rules.kdl", testRules)
	writeFile(t, root, "main.go", "package main\n\n// TODO: tidy\nfunc main() { lib.Helper() }\n")
	writeFile(t, root, "lib/lib.go", "package lib\n\nfunc Helper() {}\n")
	writeFile(t, root, "notes.txt", "TODO outside scope\n")
	writeFile(t, root, "vendor/dep/dep.go", "package dep // TODO\n")

	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	cfg.Index.Enabled = true
	cfg.History.Enabled = true
	if mutate != nil {
		mutate(cfg)
	}
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)

	a, err := New(cfg, paths, nil)
	require.NoError(t, err)
	return a, root
}

func issuesFor(p *plan.Plan, pattern string) []*plan.Issue {
	var out []*plan.Issue
	for _, issue := range p.Issues {
		if issue.Pattern == pattern {
			out = append(out, issue)
		}
	}
	return out
}

func TestApp_PlanRunsRulesOverScannedFiles(t *testing.T) {
	a, root := newTestApp(t, nil)
	require.Len(t, a.Patterns(), 2)

	res, err := a.Plan(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(root, "lib", "lib.go"), filepath.Join(root, "main.go")}, res.Files)
	assert.Equal(t, 0, res.Failures)
	assert.Equal(t, uint64(1), res.IndexVersion)
	assert.True(t, a.Snapshot().Defines("Helper"))

	todos := issuesFor(res.Plan, "todo")
	require.Len(t, todos, 1)
	assert.Equal(t, "todo at 3:4-3:8", todos[0].Steps[0].Message)

	renames := issuesFor(res.Plan, "rename-helper")
	require.Len(t, renames, 2)
	for _, issue := range renames {
		assert.Equal(t, "Helper", issue.Source)
	}
	assert.Len(t, res.Plan.Patterns, 2)
}

func TestApp_ScanHonoursIncludeExcludeAndSize(t *testing.T) {
	a, root := newTestApp(t, func(cfg *config.Config) {
		cfg.Scan.Include = []string{"*.txt", "**/*.go"}
		cfg.Scan.MaxFileSize = 40
	})
	writeFile(t, root, "big.txt", strings.Repeat("x", 100))

	files, err := a.ScanFiles(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "lib.go"),
		filepath.Join(root, "notes.txt"),
	}, files, "main.go is over the size limit and vendor is excluded")

	sub, err := a.ScanFiles([]string{"lib", filepath.Join(root, "lib")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "lib", "lib.go")}, sub)
}

func TestApp_WritePlanAndPreview(t *testing.T) {
	a, root := newTestApp(t, func(cfg *config.Config) {
		cfg.Plan.Output = "out/plan.msgpack"
		cfg.Plan.Format = "msgpack"
	})
	res, err := a.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, a.WritePlan(res.Plan, nil))
	f, err := os.Open(filepath.Join(root, "out", "plan.msgpack"))
	require.NoError(t, err)
	defer f.Close()
	decoded, err := plan.Decode(f, plan.FormatMsgpack)
	require.NoError(t, err)
	assert.Equal(t, res.Plan.Fingerprint(), decoded.Fingerprint())

	previews, err := a.Preview(res.Plan)
	require.NoError(t, err)
	require.Len(t, previews, 2)
	var diffs strings.Builder
	for _, pv := range previews {
		assert.Empty(t, pv.Conflicts)
		diffs.WriteString(pv.Diff)
	}
	assert.Contains(t, diffs.String(), "+func Assist() {}")
	assert.Contains(t, diffs.String(), "+func main() { lib.Assist() }")
}

func TestApp_WritePlanToStdout(t *testing.T) {
	a, _ := newTestApp(t, nil)
	res, err := a.Plan(context.Background(), nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, a.WritePlan(res.Plan, &buf))
	assert.Contains(t, buf.String(), `"rename-helper"`)
}

func TestApp_RecordRunAndHistory(t *testing.T) {
	a, root := newTestApp(t, nil)
	for i := 0; i < 2; i++ {
		res, err := a.Plan(context.Background(), nil)
		require.NoError(t, err)
		require.NoError(t, a.RecordRun("plan", res))
	}
	_, err := os.Stat(filepath.Join(root, ".recast", "history.db"))
	require.NoError(t, err)

	report, err := a.History(0)
	require.NoError(t, err)
	require.Equal(t, 2, report.RunCount)
	second := report.Points[1]
	assert.False(t, second.Changed, "identical runs share a fingerprint")
	assert.Equal(t, 0, second.DeltaIssues)
	assert.Equal(t, 3, second.Run.IssueCount)
	assert.Equal(t, 2, second.Run.Patterns["rename-helper"])
}

func TestApp_RecordRunDisabled(t *testing.T) {
	a, root := newTestApp(t, func(cfg *config.Config) { cfg.History.Enabled = false })
	res, err := a.Plan(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, a.RecordRun("plan", res))
	_, err = os.Stat(filepath.Join(root, ".recast", "history.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestApp_HandleChangesReplansBatch(t *testing.T) {
	a, root := newTestApp(t, nil)
	_, err := a.Plan(context.Background(), nil)
	require.NoError(t, err)

	main := writeFile(t, root, "main.go", "package main\n\nfunc main() { lib.Helper(); lib.Helper() }\n")
	gone := filepath.Join(root, "lib", "lib.go")
	require.NoError(t, os.Remove(gone))

	res, err := a.HandleChanges(context.Background(), nil, []string{main, gone})
	require.NoError(t, err)
	assert.Equal(t, []string{main}, res.Files)
	assert.Equal(t, uint64(2), res.IndexVersion)
	assert.False(t, a.Snapshot().Defines("Helper"), "removed file drops its symbols")
	assert.Empty(t, res.Plan.Issues, "no definition left to rename")
}

func TestApp_HandleChangesReloadsRules(t *testing.T) {
	a, root := newTestApp(t, nil)
	rules := writeFile(t, root, "rules.kdl", `pattern "tidy" { text "tidy"; replace "clean"; }`)

	res, err := a.HandleChanges(context.Background(), nil, []string{rules})
	require.NoError(t, err)
	require.Len(t, a.Patterns(), 1)
	require.Len(t, res.Plan.Issues, 1)
	assert.Equal(t, "tidy", res.Plan.Issues[0].Pattern)

	writeFile(t, root, "rules.kdl", `pattern "broken" { text "x"; }`)
	_, err = a.HandleChanges(context.Background(), nil, []string{rules})
	require.Error(t, err)
	assert.Equal(t, "tidy", a.Patterns()[0].Name, "previous rules stay active")
}

func TestApp_CheckRules(t *testing.T) {
	_, root := newTestApp(t, nil)
	good := writeFile(t, root, "good.kdl", `pattern "a" { regex "a+"; remove; }`)
	bad := writeFile(t, root, "bad.kdl", `pattern "b" { regex "("; remove; }`)

	loaded, err := CheckRules([]string{good}, nil)
	require.NoError(t, err)
	require.Len(t, loaded[good], 1)

	_, err = CheckRules([]string{good, bad}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeMalformedRule), "got %v", err)
}

func TestApp_NewFailsOnMissingRules(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ProjectRoot = root
	paths, err := config.ResolvePaths(cfg, root)
	require.NoError(t, err)

	_, err = New(cfg, paths, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound), "got %v", err)
}

func TestApp_Watch(t *testing.T) {
	a, root := newTestApp(t, func(cfg *config.Config) {
		cfg.Watch.Debounce = 50 * time.Millisecond
		cfg.Watch.RatePerSecond = 100
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results := make(chan *Result, 8)
	done := make(chan error, 1)
	go func() {
		done <- a.Watch(ctx, nil, func(res *Result, err error) {
			if err == nil {
				results <- res
			}
		})
	}()

	select {
	case res := <-results:
		assert.Len(t, res.Files, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for initial plan")
	}

	// Give the watcher time to register before touching files.
	time.Sleep(200 * time.Millisecond)
	changed := writeFile(t, root, "lib/extra.go", "package lib\n\n// TODO: more\n")

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-results:
			if len(res.Files) == 1 && res.Files[0] == changed {
				require.Len(t, res.Plan.Issues, 1)
				cancel()
				require.NoError(t, <-done)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for watch re-plan")
		}
	}
}

func TestRecorder_DrainsOnClose(t *testing.T) {
	a, _ := newTestApp(t, nil)
	rec, err := a.StartRecorder()
	require.NoError(t, err)
	require.NotNil(t, rec)

	for i := 0; i < 3; i++ {
		res, err := a.Plan(context.Background(), nil)
		require.NoError(t, err)
		assert.True(t, rec.Record(a.runRecord("watch", res)))
	}
	require.NoError(t, rec.Close())

	report, err := a.History(0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.RunCount)
	for _, p := range report.Points {
		assert.Equal(t, "watch", p.Run.Command)
	}
}

func TestRecorder_DisabledIsNil(t *testing.T) {
	a, _ := newTestApp(t, func(cfg *config.Config) { cfg.History.Enabled = false })
	rec, err := a.StartRecorder()
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.False(t, rec.Record(a.runRecord("watch", &Result{Plan: plan.New()})))
	assert.NoError(t, rec.Close())
}
