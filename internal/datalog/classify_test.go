package datalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		groupOpen bool
		want      Line
	}{
		{"type", ".type Node <: number", false, Line{Kind: KindTypeDecl}},
		{"indented type", "   .type Pair = [a:number, b:number]", false, Line{Kind: KindTypeDecl}},
		{"init", ".init g = Graph", false, Line{Kind: KindInit}},
		{"group start", ".comp Graph {", false, Line{Kind: KindGroupStart, Name: "Graph"}},
		{"group start with base", ".comp Derived : Base {", false, Line{Kind: KindGroupStart, Name: "Derived : Base"}},
		{"single line group", ".comp Empty { }", false, Line{Kind: KindGroupStart, Name: "Empty", Closed: true}},
		{"comp without opener", ".comp Pending", false, Line{Kind: KindPlain}},
		{"group end", "}", true, Line{Kind: KindGroupEnd}},
		{"brace outside group", "}", false, Line{Kind: KindPlain}},
		{"decl", ".decl edge(x:number, y:number)", false, Line{Kind: KindDeclStart, Name: "edge"}},
		{"decl name trimmed", ".decl   spaced  (x:number)", false, Line{Kind: KindDeclStart, Name: "spaced"}},
		{"decl inline", ".decl helper(x:number) inline", false, Line{Kind: KindDeclStart, Name: "helper", Inline: true}},
		{"decl inline-like name", ".decl inline_edges(x:number)", false, Line{Kind: KindDeclStart, Name: "inline_edges"}},
		{"decl malformed", ".decl broken", false, Line{Kind: KindDeclStart}},
		{"output", ".output edge", false, Line{Kind: KindDirective}},
		{"input indented", "  .input edge(IO=file)", false, Line{Kind: KindDirective}},
		{"rule", "path(x,y) :- edge(x,y).", false, Line{Kind: KindPlain}},
		{"blank", "", false, Line{Kind: KindPlain}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text, tt.groupOpen))
		})
	}
}

func TestClassify_Precedence(t *testing.T) {
	// A group start that ends in a brace is still a group start, even inside a group.
	got := Classify(".comp Inner { }", true)
	assert.Equal(t, KindGroupStart, got.Kind)

	// A declaration ending in a closing brace closes the open group instead.
	got = Classify(".decl odd(x:number) }", true)
	assert.Equal(t, KindGroupEnd, got.Kind)
}

func TestDeclName(t *testing.T) {
	name, ok := DeclName("  .decl reach (x:number)")
	assert.True(t, ok)
	assert.Equal(t, "reach", name)

	_, ok = DeclName(".decl (x:number)")
	assert.False(t, ok)

	_, ok = DeclName("reach(x) :- edge(x, _).")
	assert.False(t, ok)
}

func TestIsContinuation(t *testing.T) {
	assert.True(t, isContinuation("   y:number)", Line{Kind: KindPlain}))
	assert.False(t, isContinuation("p(x) :- q(x).", Line{Kind: KindPlain}))
	assert.False(t, isContinuation("", Line{Kind: KindPlain}))
	assert.False(t, isContinuation(".type T = [a:number]", Line{Kind: KindTypeDecl}))
	assert.False(t, isContinuation(".comp A : B {", Line{Kind: KindGroupStart, Name: "A : B"}))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "decl", KindDeclStart.String())
	assert.Equal(t, "plain", KindPlain.String())
	assert.Equal(t, "group-end", KindGroupEnd.String())
}
