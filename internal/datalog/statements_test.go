package datalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidStatement(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{".decl edge(x:number, y:number)", true},
		{".decl helper(x:number) inline", true},
		{".decl wrapped(x:number,", false},
		{".output edge", true},
		{"  .input edge", true},
		{".type Node <: number", true},
		{"path(x, y) :- edge(x, y).", true},
		{"path(x, y) :- edge(x, y)", false},
		{"edge(1, 2).", false},
		{"hello world", false},
		{"", false},
		{".comp G {", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidStatement(tt.line))
		})
	}
}

func TestDeclaredNames(t *testing.T) {
	text := `#include "./include.dl"

.decl edge(x:number, y:number)
.decl  spaced (x:number)
.decl helper(x:number) inline
path(x, y) :- edge(x, y).
  .decl nested(x:number)
.decl edge(x:number, y:number)
`
	assert.Equal(t, []string{"edge", "spaced", "nested", "edge"}, DeclaredNames(text))
	assert.Empty(t, DeclaredNames(""))
}

func TestDirectiveTarget(t *testing.T) {
	marker, name, ok := DirectiveTarget(".output edge")
	assert.True(t, ok)
	assert.Equal(t, MarkerOutput, marker)
	assert.Equal(t, "edge", name)

	marker, name, ok = DirectiveTarget("  .input edge(IO=file, filename=\"e.csv\")")
	assert.True(t, ok)
	assert.Equal(t, MarkerInput, marker)
	assert.Equal(t, "edge", name)

	_, _, ok = DirectiveTarget(".output   ")
	assert.False(t, ok)

	_, _, ok = DirectiveTarget("edge(1,2).")
	assert.False(t, ok)
}

func TestDirectives(t *testing.T) {
	assert.Equal(t, ".output edge", OutputDirective("edge"))
	assert.Equal(t, ".input edge", InputDirective("edge"))
}
