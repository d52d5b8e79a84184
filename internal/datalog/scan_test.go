package datalog

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scan(t *testing.T, lines ...string) *FileResult {
	t.Helper()
	res, err := ScanLines("test.dl", lines)
	require.NoError(t, err)
	return res
}

func TestScan_InsertsOutputBeforeRule(t *testing.T) {
	res := scan(t,
		".decl edge(x:number,y:number)",
		"edge(1,2) :- true.",
	)

	want := []string{
		".decl edge(x:number,y:number)",
		".output edge",
		"edge(1,2) :- true.",
	}
	if diff := cmp.Diff(want, res.Rewritten); diff != "" {
		t.Errorf("rewritten mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.TopLevel, 1)
	assert.Equal(t, "edge", res.TopLevel[0].Name)
	assert.Equal(t, ".decl edge(x:number,y:number)", res.TopLevel[0].HeaderText())
	assert.Equal(t, 1, res.Synthesized)
	assert.True(t, res.Changed())
}

func TestScan_MultiLineHeader(t *testing.T) {
	res := scan(t,
		".decl path(from:number,",
		"           to:number,",
		"           cost:float)",
		"",
		"path(x, y, 1.0) :- edge(x, y).",
	)

	want := []string{
		".decl path(from:number,",
		"           to:number,",
		"           cost:float)",
		".output path",
		"",
		"path(x, y, 1.0) :- edge(x, y).",
	}
	if diff := cmp.Diff(want, res.Rewritten); diff != "" {
		t.Errorf("rewritten mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.TopLevel, 1)
	assert.Len(t, res.TopLevel[0].Header, 3)
	assert.Equal(t, 1, res.TopLevel[0].Line)
}

func TestScan_ExistingDirective(t *testing.T) {
	for _, directive := range []string{".output edge", ".input edge", "  .input edge(IO=file, delimiter=\",\")"} {
		t.Run(directive, func(t *testing.T) {
			res := scan(t, ".decl edge(x:number, y:number)", directive)

			assert.Equal(t, []string{".decl edge(x:number, y:number)", directive}, res.Rewritten)
			assert.Equal(t, 0, res.Synthesized)
			require.Len(t, res.TopLevel, 1)
			assert.True(t, res.TopLevel[0].Visible)
		})
	}
}

func TestScan_Idempotent(t *testing.T) {
	src := []string{
		".type Node <: number",
		".decl edge(x:Node, y:Node)",
		".decl path(x:Node,",
		"  y:Node)",
		"path(x, y) :- edge(x, y).",
		".comp Reach {",
		"  .decl seen(x:Node)",
		"  seen(x) :- edge(x, _).",
		"}",
		".decl last(x:Node)",
	}
	first := scan(t, src...)
	require.Equal(t, 4, first.Synthesized)

	second := scan(t, first.Rewritten...)
	assert.Equal(t, 0, second.Synthesized)
	if diff := cmp.Diff(first.Rewritten, second.Rewritten); diff != "" {
		t.Errorf("second rewrite changed output (-first +second):\n%s", diff)
	}
	assert.Len(t, second.TopLevel, 3)
	require.Len(t, second.Groups, 1)
	assert.Len(t, second.Groups[0].Members, 1)
}

func TestScan_InlineExcluded(t *testing.T) {
	res := scan(t,
		".decl helper(x:number) inline",
		"helper(x) :- x = 1.",
	)
	assert.Equal(t, []string{".decl helper(x:number) inline", "helper(x) :- x = 1."}, res.Rewritten)
	assert.Empty(t, res.TopLevel)
	assert.Equal(t, 0, res.Synthesized)
}

func TestScan_ConsecutiveDeclarations(t *testing.T) {
	res := scan(t,
		".decl a(x:number)",
		".decl b(x:number)",
		".decl c(x:number) inline",
	)
	want := []string{
		".decl a(x:number)",
		".output a",
		".decl b(x:number)",
		".output b",
		".decl c(x:number) inline",
	}
	if diff := cmp.Diff(want, res.Rewritten); diff != "" {
		t.Errorf("rewritten mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.TopLevel, 2)
	assert.Equal(t, "a", res.TopLevel[0].Name)
	assert.Equal(t, "b", res.TopLevel[1].Name)
}

func TestScan_GroupMembers(t *testing.T) {
	res := scan(t,
		".decl edge(x:number, y:number)",
		".comp Graph {",
		"  .decl reach(x:number, y:number)",
		"  reach(x, y) :- edge(x, y).",
		"}",
		".init g = Graph",
	)

	want := []string{
		".decl edge(x:number, y:number)",
		".output edge",
		".comp Graph {",
		"  .decl reach(x:number, y:number)",
		".output reach",
		"  reach(x, y) :- edge(x, y).",
		"}",
		".init g = Graph",
	}
	if diff := cmp.Diff(want, res.Rewritten); diff != "" {
		t.Errorf("rewritten mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.TopLevel, 1)
	assert.Equal(t, "edge", res.TopLevel[0].Name)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Graph", res.Groups[0].Name)
	require.Len(t, res.Groups[0].Members, 1)
	assert.Equal(t, "reach", res.Groups[0].Members[0].Name)
	assert.Equal(t, "Graph", res.Groups[0].Members[0].Group)
	assert.Equal(t, []string{".init g = Graph"}, res.Inits)
}

// A header still pending when its group closes files under that group: the
// closing brace ends the header before the scope changes.
func TestScan_HeaderClosedByGroupEnd(t *testing.T) {
	res := scan(t,
		".comp G {",
		"  .decl r(x:number)",
		"}",
		"after(x) :- r(x).",
	)
	assert.Equal(t, []string{".comp G {", "  .decl r(x:number)", ".output r", "}", "after(x) :- r(x)."}, res.Rewritten)
	assert.Empty(t, res.TopLevel)
	require.Len(t, res.Groups, 1)
	require.Len(t, res.Groups[0].Members, 1)
	assert.Equal(t, "r", res.Groups[0].Members[0].Name)
}

// A header pending when a group opens files under the top level, even when the
// group line carries a colon.
func TestScan_HeaderClosedByGroupStart(t *testing.T) {
	res := scan(t,
		".decl top(x:number)",
		".comp Derived : Base {",
		"}",
	)
	assert.Equal(t, []string{".decl top(x:number)", ".output top", ".comp Derived : Base {", "}"}, res.Rewritten)
	require.Len(t, res.TopLevel, 1)
	assert.Equal(t, "top", res.TopLevel[0].Name)
	require.Len(t, res.Groups, 1)
	assert.Equal(t, "Derived : Base", res.Groups[0].Name)
	assert.Empty(t, res.Groups[0].Members)
}

func TestScan_SingleLineGroup(t *testing.T) {
	res := scan(t,
		".comp Empty { }",
		".decl free(x:number)",
		"free(1) :- true.",
	)
	require.Len(t, res.Groups, 1)
	assert.Empty(t, res.Groups[0].Members)
	require.Len(t, res.TopLevel, 1)
	assert.Equal(t, "free", res.TopLevel[0].Name)
}

func TestScan_PendingAtEOF(t *testing.T) {
	res := scan(t, ".decl tail(x:number)")
	assert.Equal(t, []string{".decl tail(x:number)", ".output tail"}, res.Rewritten)
	require.Len(t, res.TopLevel, 1)
}

func TestScan_UnclosedGroupStillRecorded(t *testing.T) {
	res := scan(t,
		".comp Open {",
		"  .decl inner(x:number)",
		"  inner(1) :- true.",
	)
	require.Len(t, res.Groups, 1)
	assert.Len(t, res.Groups[0].Members, 1)
	assert.Empty(t, res.TopLevel)
}

func TestScan_TypesAndInits(t *testing.T) {
	res := scan(t,
		".type Node <: number",
		".type Pair = [a:Node, b:Node]",
		".init g = Graph",
		"plain(1) :- true.",
	)
	assert.Equal(t, []string{".type Node <: number", ".type Pair = [a:Node, b:Node]"}, res.Types)
	assert.Equal(t, []string{".init g = Graph"}, res.Inits)
	assert.Equal(t, 0, res.Synthesized)
	assert.False(t, res.Changed())
}

func TestScan_MalformedDeclaration(t *testing.T) {
	_, err := ScanLines("bad.dl", []string{"// header", ".decl broken"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedDecl))

	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "bad.dl", perr.File)
	assert.Equal(t, 2, perr.Line)
	assert.Contains(t, err.Error(), "bad.dl:2")
}

func TestScan_PreservesOriginalLines(t *testing.T) {
	src := []string{
		".decl edge(x:number,y:number)",
		"edge(1,2) :- true.",
		".decl path(x:number,",
		"  y:number)",
		"path(x,y) :- edge(x,y).",
	}
	res := scan(t, src...)

	// Removing the synthesized lines must give back the original byte for byte.
	var kept []string
	for _, line := range res.Rewritten {
		if strings.HasPrefix(line, ".output ") {
			continue
		}
		kept = append(kept, line)
	}
	assert.Equal(t, src, kept)
	assert.Equal(t, src, res.Original)
}

func TestScanFile_LineEndings(t *testing.T) {
	t.Run("crlf", func(t *testing.T) {
		res, err := ScanFile("win.dl", strings.NewReader(".decl a(x:number)\r\na(1) :- true.\r\n"))
		require.NoError(t, err)
		assert.Equal(t, ".decl a(x:number)\r\n.output a\r\na(1) :- true.\r\n", res.Text())
	})

	t.Run("no trailing newline", func(t *testing.T) {
		res, err := ScanFile("a.dl", strings.NewReader(".decl a(x:number)"))
		require.NoError(t, err)
		assert.Equal(t, ".decl a(x:number)\n.output a", res.Text())
	})

	t.Run("empty", func(t *testing.T) {
		res, err := ScanFile("empty.dl", strings.NewReader(""))
		require.NoError(t, err)
		assert.Equal(t, "", res.Text())
		assert.Empty(t, res.Declarations())
	})
}

func TestFileResult_Declarations(t *testing.T) {
	res := scan(t,
		".comp G {",
		".decl in_group(x:number)",
		"}",
		".decl top(x:number)",
	)
	decls := res.Declarations()
	require.Len(t, decls, 2)
	assert.Equal(t, "top", decls[0].Name)
	assert.True(t, decls[0].TopLevel())
	assert.Equal(t, "in_group", decls[1].Name)
	assert.False(t, decls[1].TopLevel())
}
