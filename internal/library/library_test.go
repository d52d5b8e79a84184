package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dlshell/internal/datalog"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestLibrary_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "edge.dl")
	writeFile(t, src, ".decl edge(x:number,y:number)\nedge(1,2) :- true.\n")

	include := filepath.Join(dir, "out", "graph_include.dl")
	lib := New("graph", include, Options{Override: true})
	require.NoError(t, lib.AddDir(context.Background(), dir))

	n, err := lib.RewriteFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, lib.GenerateInclude())

	assert.Equal(t, ".decl edge(x:number,y:number)\n.output edge\nedge(1,2) :- true.\n", readFile(t, src))
	assert.Equal(t, ".decl edge(x:number,y:number)\n.input edge\n", readFile(t, include))
}

func TestLibrary_RenderOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.dl"), strings.Join([]string{
		".type Node <: number",
		".decl edge(x:Node, y:Node)",
		".input edge",
		".comp G {",
		"  .decl g1(x:Node)",
		"  g1(x) :- edge(x, _).",
		"}",
		".decl top_a(x:Node)",
		"top_a(x) :- edge(x, _).",
	}, "\n")+"\n")
	writeFile(t, filepath.Join(dir, "b.dl"), strings.Join([]string{
		".init g = G",
		".comp H {",
		"  .decl h1(x:number)",
		"}",
		".comp G {",
		"  .decl g2(x:number,",
		"           y:number)",
		"}",
		".decl top_b(x:number)",
		".decl helper(x:number) inline",
	}, "\n")+"\n")

	lib := New("demo", filepath.Join(dir, "demo_include.dl"), Options{Override: true})
	require.NoError(t, lib.AddDir(context.Background(), dir))

	want := strings.Join([]string{
		".type Node <: number",
		".init g = G",
		".comp G {",
		"  .decl g1(x:Node)",
		".input g1",
		"  .decl g2(x:number,",
		"           y:number)",
		".input g2",
		"}",
		".comp H {",
		"  .decl h1(x:number)",
		".input h1",
		"}",
		".decl edge(x:Node, y:Node)",
		".input edge",
		".decl top_a(x:Node)",
		".input top_a",
		".decl top_b(x:number)",
		".input top_b",
	}, "\n") + "\n"
	if diff := cmp.Diff(want, lib.Render()); diff != "" {
		t.Errorf("include mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []string{"g1", "g2", "h1", "edge", "top_a", "top_b"}, lib.RelationNames())
	for _, d := range lib.TopLevel() {
		assert.NotContains(t, []string{"g1", "g2", "h1"}, d.Name, "group members must not appear at top level")
	}
}

func TestLibrary_Deterministic(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("f%02d.dl", i)),
			fmt.Sprintf(".decl r%d(x:number)\nr%d(1) :- true.\n.comp C%d {\n.decl c%d(x:number)\n}\n", i, i, i%3, i))
	}

	render := func(parallelism int) string {
		lib := New("p", "", Options{Override: true, Parallelism: parallelism})
		require.NoError(t, lib.AddDir(context.Background(), dir))
		return lib.Render()
	}

	sequential := render(1)
	for i := 0; i < 5; i++ {
		assert.Equal(t, sequential, render(8))
	}
}

func TestLibrary_NoDeduplication(t *testing.T) {
	lib := New("dup", "", Options{Override: true})
	for _, path := range []string{"one.dl", "two.dl"} {
		res, err := datalog.ScanLines(path, []string{".decl edge(x:number)"})
		require.NoError(t, err)
		lib.Merge(res)
	}
	assert.Equal(t, []string{"edge", "edge"}, lib.RelationNames())
	assert.Equal(t, 2, strings.Count(lib.Render(), ".input edge"))
}

func TestLibrary_AddDirSelection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "top.dl"), ".decl top(x:number)\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), ".decl ignored(x:number)\n")
	writeFile(t, filepath.Join(dir, "sub", "deep.dl"), ".decl deep(x:number)\n")
	writeFile(t, filepath.Join(dir, "lib_include.dl"), ".decl stale(x:number)\n.input stale\n")

	flat := New("lib", filepath.Join(dir, "lib_include.dl"), Options{Override: true})
	require.NoError(t, flat.AddDir(context.Background(), dir))
	assert.Equal(t, []string{"top"}, flat.RelationNames())

	deep := New("lib", filepath.Join(dir, "lib_include.dl"), Options{Override: true, Recursive: true})
	require.NoError(t, deep.AddDir(context.Background(), dir))
	assert.Equal(t, []string{"deep", "top"}, deep.RelationNames())
	assert.Len(t, deep.Files(), 2)
}

func TestLibrary_MalformedAborts(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "good.dl"), ".decl good(x:number)\n")
	writeFile(t, filepath.Join(dir, "bad.dl"), "\n.decl broken\n")

	lib := New("lib", "", Options{Override: true, Parallelism: 4})
	err := lib.AddDir(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, datalog.ErrMalformedDecl))

	var perr *datalog.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, filepath.Join(dir, "bad.dl"), perr.File)
	assert.Equal(t, 2, perr.Line)
	assert.Empty(t, lib.Files(), "nothing is merged when a file fails")
}

func TestLibrary_AddDirMissing(t *testing.T) {
	lib := New("lib", "", Options{Override: true})
	assert.Error(t, lib.AddDir(context.Background(), filepath.Join(t.TempDir(), "absent")))
}

func TestLibrary_AddDirCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.dl"), ".decl a(x:number)\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	lib := New("lib", "", Options{Override: true})
	assert.ErrorIs(t, lib.AddDir(ctx, dir), context.Canceled)
}

func TestRewriteFiles_Override(t *testing.T) {
	dir := t.TempDir()
	changed := filepath.Join(dir, "changed.dl")
	same := filepath.Join(dir, "same.dl")
	writeFile(t, changed, ".decl a(x:number)\na(1) :- true.\n")
	writeFile(t, same, ".decl b(x:number)\n.output b\n")

	lib := New("lib", "", Options{Override: true})
	require.NoError(t, lib.AddDir(context.Background(), dir))
	n, err := lib.RewriteFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, ".decl a(x:number)\n.output a\na(1) :- true.\n", readFile(t, changed))
	assert.Equal(t, ".decl b(x:number)\n.output b\n", readFile(t, same))

	// A second run over rewritten files inserts nothing.
	again := New("lib", "", Options{Override: true})
	require.NoError(t, again.AddDir(context.Background(), dir))
	n, err = again.RewriteFiles()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRewriteFiles_OutDir(t *testing.T) {
	dir := t.TempDir()
	out := t.TempDir()
	src := filepath.Join(dir, "nested", "a.dl")
	writeFile(t, src, ".decl a(x:number)\n")

	lib := New("lib", "", Options{Recursive: true, OutDir: out})
	require.NoError(t, lib.AddDir(context.Background(), dir))
	n, err := lib.RewriteFiles()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, ".decl a(x:number)\n", readFile(t, src), "source must stay untouched")
	assert.Equal(t, ".decl a(x:number)\n.output a\n", readFile(t, filepath.Join(out, "nested", "a.dl")))
}

func TestRewriteFiles_NoTarget(t *testing.T) {
	lib := New("lib", "", Options{})
	_, err := lib.RewriteFiles()
	assert.Error(t, err)
}

func TestGenerateInclude_NoPath(t *testing.T) {
	lib := New("lib", "", Options{Override: true})
	assert.Error(t, lib.GenerateInclude())
}
