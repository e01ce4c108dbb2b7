package purge

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/reaper/internal/logging"
	"github.com/panbanda/reaper/pkg/deadcode"
)

const sampleReport = `{
    "summary": {"scanned_files": 3, "symbols_total": 6, "dead_symbols": 5, "high_confidence": 3},
    "items": [
        {"symbol": "X\\C", "kind": "class", "file": "src/X/C.php", "confidence": 5, "reasons": ["no inbound calls", "non-function symbol"], "lines": "3-9"},
        {"symbol": "X\\C.dead1", "kind": "method", "file": "src/X/C.php", "confidence": 5, "reasons": ["no inbound calls", "non-function symbol"], "lines": "4-5"},
        {"symbol": "Y\\helper", "kind": "function", "file": "src/Y/helpers.php", "confidence": 4, "reasons": ["no inbound calls"], "lines": "3-3"},
        {"symbol": "Y\\U.dead", "kind": "method", "file": "src/Y/helpers.php", "confidence": 5, "reasons": ["no inbound calls", "non-function symbol"], "lines": "6-6"},
        {"symbol": "Legacy\\Old", "kind": "class", "file": "legacy/Old.php", "confidence": 2, "reasons": ["no inbound calls", "non-function symbol", "matches keep pattern"], "lines": "1-2"}
    ]
}`

func mustParse(t *testing.T) *deadcode.Report {
	t.Helper()
	r, err := ParseReport([]byte(sampleReport))
	require.NoError(t, err)
	return r
}

func TestParseReport(t *testing.T) {
	r := mustParse(t)
	assert.Equal(t, 3, r.Summary.ScannedFiles)
	require.Len(t, r.Items, 5)
	assert.Equal(t, `X\C.dead1`, r.Items[1].Symbol)
	assert.Equal(t, "4-5", r.Items[1].Lines)
}

func TestParseReportRejectsInvalidDocuments(t *testing.T) {
	tests := map[string]string{
		"not json":           `{items: [`,
		"missing items":      `{"summary": {}}`,
		"items not array":    `{"items": {}}`,
		"missing file":       `{"items": [{"confidence": 5}]}`,
		"missing confidence": `{"items": [{"file": "a.php"}]}`,
		"float confidence":   `{"items": [{"file": "a.php", "confidence": 4.5}]}`,
		"unknown kind":       `{"items": [{"file": "a.php", "confidence": 4, "kind": "trait"}]}`,
		"bad lines":          `{"items": [{"file": "a.php", "confidence": 4, "lines": "x"}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseReport([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestParseReportMinimal(t *testing.T) {
	r, err := ParseReport([]byte(`{"items": [{"file": "a.php", "confidence": 7}]}`))
	require.NoError(t, err)
	require.Len(t, r.Items, 1)
	assert.Equal(t, 7, r.Items[0].Confidence)
}

func TestLoadReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead_code.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleReport), 0644))

	r, err := LoadReport(path)
	require.NoError(t, err)
	assert.Len(t, r.Items, 5)

	_, err = LoadReport(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("ANY")
	require.NoError(t, err)
	assert.Equal(t, ModeAny, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAll, m)

	_, err = ParseMode("some")
	assert.Error(t, err)
}

func TestSelectModes(t *testing.T) {
	r := mustParse(t)

	all, err := Select(r, Options{Mode: ModeAll, Threshold: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php"}, all)

	anyFiles, err := Select(r, Options{Mode: ModeAny, Threshold: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php", "src/Y/helpers.php"}, anyFiles)

	low, err := Select(r, Options{Mode: ModeAll, Threshold: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"legacy/Old.php", "src/X/C.php", "src/Y/helpers.php"}, low)
}

func TestSelectGlobs(t *testing.T) {
	r := mustParse(t)

	files, err := Select(r, Options{Mode: ModeAll, Threshold: 0, IncludeGlobs: []string{"src/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php", "src/Y/helpers.php"}, files)

	files, err = Select(r, Options{Mode: ModeAll, Threshold: 0, ExcludeGlobs: []string{"src/Y/*.php", "legacy/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php"}, files)

	files, err = Select(r, Options{Mode: ModeAll, Threshold: 0, IncludeGlobs: []string{"**/C.php"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php"}, files)

	_, err = Select(r, Options{Mode: ModeAll, Threshold: 0, ExcludeGlobs: []string{"src/[x"}})
	assert.Error(t, err)
}

func TestSelectNormalizesBackslashes(t *testing.T) {
	r := &deadcode.Report{Items: []deadcode.Item{
		{File: `src\Win\A.php`, Confidence: 5},
		{File: "", Confidence: 9},
	}}
	files, err := Select(r, Options{Mode: ModeAll, Threshold: 5, IncludeGlobs: []string{`src\**`}})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/Win/A.php"}, files)
}

func writeProject(t *testing.T, root string, files ...string) {
	t.Helper()
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte("<?php\n"), 0644))
	}
}

func TestNewPlanSkipsMissing(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "src/X/C.php")

	p, err := NewPlan(mustParse(t), Options{Mode: ModeAny, Threshold: 5, Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/X/C.php"}, p.Files)
	assert.Equal(t, []string{"src/Y/helpers.php"}, p.Missing)
	assert.False(t, p.Empty())
}

func TestNewPlanRejectsPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	writeProject(t, parent, "outside.php")
	writeProject(t, root, "src/In.php", "nested.php")

	report := &deadcode.Report{Items: []deadcode.Item{
		{Symbol: "outside", File: "../outside.php", Confidence: 5},
		{Symbol: "sneaky", File: "src/../../outside.php", Confidence: 5},
		{Symbol: "in", File: "src/In.php", Confidence: 5},
		{Symbol: "rooted", File: "/nested.php", Confidence: 5},
	}}
	p, err := NewPlan(report, Options{Mode: ModeAny, Threshold: 5, Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"/nested.php", "src/In.php"}, p.Files)
	assert.Equal(t, []string{"../outside.php", "src/../../outside.php"}, p.Missing)

	res, err := Apply(p, ApplyOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.FileExists(t, filepath.Join(parent, "outside.php"))
	assert.NoFileExists(t, filepath.Join(root, "src", "In.php"))
}

func TestApplyFilesystemRefusesPathsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "project")
	writeProject(t, parent, "outside.php")
	require.NoError(t, os.MkdirAll(root, 0755))

	p := &Plan{Root: root, Files: []string{"../outside.php"}}
	res, err := Apply(p, ApplyOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	assert.False(t, res.OK())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "../outside.php", res.Failed[0].Path)
	assert.FileExists(t, filepath.Join(parent, "outside.php"))
}

func TestWritePlanTruncates(t *testing.T) {
	p := &Plan{}
	for i := 0; i < DryRunLimit+5; i++ {
		p.Files = append(p.Files, fmt.Sprintf("src/F%03d.php", i))
	}
	var buf bytes.Buffer
	WritePlan(&buf, p)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	assert.Equal(t, "Dry-run plan: delete 55 files", lines[0])
	assert.Len(t, lines, DryRunLimit+2)
	assert.Equal(t, " ...", lines[len(lines)-1])
}

func TestApplyFilesystem(t *testing.T) {
	root := t.TempDir()
	writeProject(t, root, "src/X/C.php", "src/Y/helpers.php", "src/Keep.php")

	p, err := NewPlan(mustParse(t), Options{Mode: ModeAny, Threshold: 5, Root: root})
	require.NoError(t, err)

	res, err := Apply(p, ApplyOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	assert.False(t, res.UsedGit)
	assert.True(t, res.OK())
	assert.Equal(t, []string{"src/X/C.php", "src/Y/helpers.php"}, res.Deleted)

	assert.NoFileExists(t, filepath.Join(root, "src", "X", "C.php"))
	assert.FileExists(t, filepath.Join(root, "src", "Keep.php"))
}

func initRepo(t *testing.T, root string, files ...string) *git.Repository {
	t.Helper()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)
	writeProject(t, root, files...)
	wt, err := repo.Worktree()
	require.NoError(t, err)
	for _, f := range files {
		_, err := wt.Add(f)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{Author: testAuthor()})
	require.NoError(t, err)
	return repo
}

func testAuthor() *object.Signature {
	return &object.Signature{Name: "Test", Email: "test@example.com", When: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestApplyGitWithBranchAndCommit(t *testing.T) {
	root := t.TempDir()
	repo := initRepo(t, root, "src/X/C.php", "src/Y/helpers.php", "src/Keep.php")

	p, err := NewPlan(mustParse(t), Options{Mode: ModeAll, Threshold: 5, Root: root})
	require.NoError(t, err)
	require.Equal(t, []string{"src/X/C.php"}, p.Files)

	res, err := Apply(p, ApplyOptions{
		Branch:        "reaper/purge",
		CommitMessage: "chore: remove dead code",
		Author:        testAuthor(),
		Logger:        logging.Discard(),
	})
	require.NoError(t, err)
	assert.True(t, res.UsedGit)
	assert.True(t, res.OK())
	assert.NoError(t, res.CommitErr)
	assert.NotEmpty(t, res.Commit)

	head, err := repo.Head()
	require.NoError(t, err)
	assert.Equal(t, "reaper/purge", head.Name().Short())

	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Equal(t, "chore: remove dead code", commit.Message)
	tree, err := commit.Tree()
	require.NoError(t, err)
	_, err = tree.File("src/X/C.php")
	assert.Error(t, err)
	_, err = tree.File("src/Keep.php")
	assert.NoError(t, err)
}

func TestApplyGitSubdirectoryRoot(t *testing.T) {
	repoRoot := t.TempDir()
	initRepo(t, repoRoot, "app/src/X/C.php", "app/src/Keep.php")

	p, err := NewPlan(mustParse(t), Options{Mode: ModeAll, Threshold: 5, Root: filepath.Join(repoRoot, "app")})
	require.NoError(t, err)

	res, err := Apply(p, ApplyOptions{Logger: logging.Discard()})
	require.NoError(t, err)
	assert.True(t, res.UsedGit)
	assert.Equal(t, []string{"src/X/C.php"}, res.Deleted)
	assert.Empty(t, res.Commit)
	assert.NoFileExists(t, filepath.Join(repoRoot, "app", "src", "X", "C.php"))
}

func TestApplyGitUntrackedFails(t *testing.T) {
	root := t.TempDir()
	initRepo(t, root, "src/Keep.php")
	writeProject(t, root, "src/X/C.php")

	p, err := NewPlan(mustParse(t), Options{Mode: ModeAll, Threshold: 5, Root: root})
	require.NoError(t, err)

	res, err := Apply(p, ApplyOptions{CommitMessage: "never", Author: testAuthor(), Logger: logging.Discard()})
	require.NoError(t, err)
	assert.False(t, res.OK())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "src/X/C.php", res.Failed[0].Path)
	assert.Empty(t, res.Commit, "no commit when a removal failed")
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{" yes \n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		got := Confirm(strings.NewReader(tt.input), &out)
		assert.Equal(t, tt.want, got, "input %q", tt.input)
		assert.Equal(t, "Proceed with deletion? (y/N)\n", out.String())
	}
}
