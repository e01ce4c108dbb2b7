package extractor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/reaper/internal/cache"
	"github.com/panbanda/reaper/pkg/graph"
)

func writePHP(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func fragmentsOf(t *testing.T, e *Extractor, sources map[string]string, order ...string) []*Fragment {
	t.Helper()
	frags := make([]*Fragment, 0, len(order))
	for _, path := range order {
		f, err := e.ExtractSource(path, []byte(sources[path]))
		require.NoError(t, err, path)
		frags = append(frags, f)
	}
	return frags
}

const serviceSrc = `<?php
namespace App;

class Service
{
    public function run()
    {
        $this->helper();
    }

    public function helper() {}

    public function unused() {}
}
`

const mainSrc = `<?php
namespace App;

function main()
{
    $s = new Service();
    $s->run();
}

function other() {}
`

func TestBuildFileScoped(t *testing.T) {
	e := New()
	sources := map[string]string{"src/Service.php": serviceSrc, "src/main.php": mainSrc}
	g := e.Build(fragmentsOf(t, e, sources, "src/Service.php", "src/main.php"))

	assert.Equal(t, 6, g.Len())

	// Every symbol declared in main.php is a caller of everything it references.
	assert.Equal(t, []string{`App\Service`, `App\Service.run`}, g.Successors(`App\main`))
	assert.Equal(t, []string{`App\Service`, `App\Service.run`}, g.Successors(`App\other`))

	// Every declaration in Service.php calls helper.
	for _, from := range []string{`App\Service`, `App\Service.run`, `App\Service.helper`, `App\Service.unused`} {
		assert.Equal(t, []string{`App\Service.helper`}, g.Successors(from), from)
	}
}

func TestBuildScopeAccurate(t *testing.T) {
	e := New(WithAttribution(ScopeAccurate))
	sources := map[string]string{"src/Service.php": serviceSrc, "src/main.php": mainSrc}
	g := e.Build(fragmentsOf(t, e, sources, "src/Service.php", "src/main.php"))

	assert.Equal(t, []string{`App\Service`, `App\Service.run`}, g.Successors(`App\main`))
	assert.Empty(t, g.Successors(`App\other`))
	assert.Equal(t, []string{`App\Service.helper`}, g.Successors(`App\Service.run`))
	assert.Empty(t, g.Successors(`App\Service.unused`))
	assert.Empty(t, g.Successors(`App\Service`))
}

func TestScopeAccurateDropsTopLevelReferences(t *testing.T) {
	e := New(WithAttribution(ScopeAccurate))
	f, err := e.ExtractSource("boot.php", []byte("<?php\nfunction boot() {}\nboot();\n"))
	require.NoError(t, err)

	g := e.Build([]*Fragment{f})
	assert.Zero(t, g.EdgeCount())

	g = New().Build([]*Fragment{f})
	assert.Equal(t, []string{"boot"}, g.Successors("boot"))
}

const ambiguousSrc = `<?php
class A { public function save() {} }
class B { public function save() {} }
class C { public function close() {} }

function caller($x) {
    $x->save();
    $x->close();
    $x->missing();
}
`

func TestResolutionModes(t *testing.T) {
	sources := map[string]string{"x.php": ambiguousSrc}

	permissive := New(WithAttribution(ScopeAccurate))
	g := permissive.Build(fragmentsOf(t, permissive, sources, "x.php"))
	assert.Equal(t, []string{"A.save", "B.save", "C.close"}, g.Successors("caller"))

	strict := New(WithAttribution(ScopeAccurate), WithResolution(Strict))
	g = strict.Build(fragmentsOf(t, strict, sources, "x.php"))
	assert.Equal(t, []string{"C.close"}, g.Successors("caller"))
}

func TestResolveVariants(t *testing.T) {
	ix := newSymbolIndex([]*Fragment{{
		Symbols: []graph.Symbol{
			{ID: "B.save", Kind: graph.KindMethod},
			{ID: "A.save", Kind: graph.KindMethod},
			{ID: "fn", Kind: graph.KindFunction},
		},
	}})

	assert.Equal(t, ResolvedReference{TargetID: "fn"}, ix.resolve(RawReference{Kind: RefCall, Name: "fn"}))
	assert.Equal(t,
		AmbiguousMethodReference{MethodName: "save", CandidateIDs: []string{"A.save", "B.save"}},
		ix.resolve(RawReference{Kind: RefMethod, Name: "save"}))
	assert.Nil(t, ix.resolve(RawReference{Kind: RefCall, Name: "nope"}))
	assert.Nil(t, ix.resolve(RawReference{Kind: RefMethod, Name: "fn"}))
	assert.Nil(t, ix.resolve(RawReference{Kind: RefStatic, Name: "A.load"}))
}

func TestResolutionIsOrderIndependent(t *testing.T) {
	e := New()
	sources := map[string]string{
		"a.php": "<?php\nfunction a() { b(); }\n",
		"b.php": "<?php\nfunction b() {}\n",
	}
	forward := e.Build(fragmentsOf(t, e, sources, "a.php", "b.php"))
	backward := e.Build(fragmentsOf(t, e, sources, "b.php", "a.php"))

	assert.Equal(t, []string{"b"}, forward.Successors("a"))
	assert.Equal(t, forward.Edges(), backward.Edges())
}

func TestLastFragmentWins(t *testing.T) {
	e := New()
	sources := map[string]string{
		"old.php": "<?php\nfunction dup() {}\n",
		"new.php": "<?php\n\n\nfunction dup() {\n}\n",
	}
	g := e.Build(fragmentsOf(t, e, sources, "old.php", "new.php"))

	sym, ok := g.Node("dup")
	require.True(t, ok)
	assert.Equal(t, "new.php", sym.File)
	assert.Equal(t, graph.LineRange{Start: 4, End: 5}, sym.Lines)
}

func TestParseAttributionAndResolution(t *testing.T) {
	a, err := ParseAttribution("scope")
	require.NoError(t, err)
	assert.Equal(t, ScopeAccurate, a)
	a, err = ParseAttribution("")
	require.NoError(t, err)
	assert.Equal(t, FileScoped, a)
	_, err = ParseAttribution("nearest")
	assert.Error(t, err)

	r, err := ParseResolution("STRICT")
	require.NoError(t, err)
	assert.Equal(t, Strict, r)
	_, err = ParseResolution("fuzzy")
	assert.Error(t, err)

	assert.Equal(t, "scope", ScopeAccurate.String())
	assert.Equal(t, "permissive", Permissive.String())
}

func TestExtractFromDisk(t *testing.T) {
	root := t.TempDir()
	writePHP(t, root, "src/Service.php", serviceSrc)
	writePHP(t, root, "src/main.php", mainSrc)
	writePHP(t, root, "src/broken.php", "<?php\nfunction ( {\n")
	writePHP(t, root, "src/big.php", "<?php\n"+strings.Repeat("// padding\n", 200)+"function big() {}\n")

	files := []string{"src/Service.php", "src/missing.php", "src/broken.php", "src/big.php", "src/main.php"}
	e := New(WithRoot(root), WithMaxFileSize(1024), WithWorkers(2))

	g, diags, err := e.Extract(context.Background(), files)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/Service.php", "src/main.php"}, g.Files())
	require.Equal(t, 3, diags.Len())
	assert.Equal(t, []string{"src/missing.php", "src/broken.php", "src/big.php"}, diags.Paths())
	assert.Equal(t, StageRead, diags.Skipped[0].Stage)
	assert.Equal(t, StageParse, diags.Skipped[1].Stage)
	assert.Equal(t, StageSize, diags.Skipped[2].Stage)
	assert.ErrorIs(t, diags.Skipped[2], ErrTooLarge)
	assert.Equal(t, map[Stage]int{StageRead: 1, StageParse: 1, StageSize: 1}, diags.ByStage())
}

func TestExtractCancelled(t *testing.T) {
	root := t.TempDir()
	writePHP(t, root, "a.php", "<?php function a() {}")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g, diags, err := New(WithRoot(root)).Extract(ctx, []string{"a.php"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, g.Len())
	require.Equal(t, 1, diags.Len())
	assert.Equal(t, StageCancel, diags.Skipped[0].Stage)
}

func TestExtractEmpty(t *testing.T) {
	g, diags, err := New().Extract(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, g.Len())
	assert.Zero(t, diags.Len())
}

func TestExtractUsesCache(t *testing.T) {
	root := t.TempDir()
	path := writePHP(t, root, "a.php", "<?php\nfunction a() {}\n")

	c, err := cache.New(filepath.Join(root, ".cache"), 0, true)
	require.NoError(t, err)
	e := New(WithRoot(root), WithCache(c))

	g, _, err := e.Extract(context.Background(), []string{"a.php"})
	require.NoError(t, err)
	_, ok := g.Node("a")
	require.True(t, ok)

	stats, err := c.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries)

	// A cached fragment is only reused while the content hash matches.
	var cached Fragment
	hash := cache.HashBytes([]byte("<?php\nfunction a() {}\n"))
	require.True(t, c.GetWithHash(path, hash, &cached))
	assert.Equal(t, "a", cached.Symbols[0].ID)

	require.NoError(t, os.WriteFile(path, []byte("<?php\nfunction b() {}\n"), 0o644))
	g, _, err = e.Extract(context.Background(), []string{"a.php"})
	require.NoError(t, err)
	_, ok = g.Node("b")
	assert.True(t, ok)
	_, ok = g.Node("a")
	assert.False(t, ok)
}

func TestExtractDropsCacheEntriesOfSkippedFiles(t *testing.T) {
	root := t.TempDir()
	path := writePHP(t, root, "a.php", "<?php\nfunction a() {}\n")

	c, err := cache.New(filepath.Join(root, ".cache"), 0, true)
	require.NoError(t, err)
	e := New(WithRoot(root), WithCache(c))

	_, _, err = e.Extract(context.Background(), []string{"a.php"})
	require.NoError(t, err)
	stats, err := c.GetStats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)

	require.NoError(t, os.WriteFile(path, []byte("<?php\nfunction a( {\n"), 0o644))
	_, diags, err := e.Extract(context.Background(), []string{"a.php"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.php"}, diags.Paths())

	stats, err = c.GetStats()
	require.NoError(t, err)
	assert.Zero(t, stats.Entries)
}
