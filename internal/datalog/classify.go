// Package datalog scans Soufflé source text line by line.
//
// Classification is pattern based: every test is a prefix, suffix or substring
// check on a single trimmed line. No parse tree is built.
package datalog

import "strings"

// Directive vocabulary. All markers are line anchored and case sensitive.
const (
	MarkerDecl   = ".decl"
	MarkerType   = ".type"
	MarkerInput  = ".input"
	MarkerOutput = ".output"
	MarkerInit   = ".init"
	MarkerGroup  = ".comp"

	GroupOpener   = "{"
	GroupCloser   = "}"
	InlineKeyword = "inline"
	DerivesFrom   = ":-"
	Terminator    = "."
)

// Kind is the category of a single source line.
type Kind int

const (
	KindPlain Kind = iota
	KindTypeDecl
	KindInit
	KindGroupStart
	KindGroupEnd
	KindDeclStart
	KindDirective
)

func (k Kind) String() string {
	switch k {
	case KindTypeDecl:
		return "type"
	case KindInit:
		return "init"
	case KindGroupStart:
		return "group-start"
	case KindGroupEnd:
		return "group-end"
	case KindDeclStart:
		return "decl"
	case KindDirective:
		return "directive"
	default:
		return "plain"
	}
}

// Line is the classification of one line of source.
type Line struct {
	Kind Kind

	// Name is the group name for KindGroupStart and the relation name for
	// KindDeclStart. An empty name on a declaration means the header is malformed.
	Name string

	// Inline marks a declaration carrying the inline qualifier.
	Inline bool

	// Closed marks a group start whose body also closes on the same line.
	Closed bool
}

// Classify maps one line of text to exactly one category. groupOpen reports
// whether a group block is currently open; a closing brace only ends a group
// when one is open. Rules are checked in order and the first match wins.
func Classify(text string, groupOpen bool) Line {
	trimmed := strings.TrimSpace(text)

	switch {
	case strings.HasPrefix(trimmed, MarkerType):
		return Line{Kind: KindTypeDecl}

	case strings.HasPrefix(trimmed, MarkerInit):
		return Line{Kind: KindInit}

	case strings.HasPrefix(trimmed, MarkerGroup) && strings.Contains(trimmed[len(MarkerGroup):], GroupOpener):
		rest := trimmed[len(MarkerGroup):]
		open := strings.Index(rest, GroupOpener)
		body := strings.TrimSpace(rest[open+len(GroupOpener):])
		return Line{
			Kind:   KindGroupStart,
			Name:   strings.TrimSpace(rest[:open]),
			Closed: strings.HasSuffix(body, GroupCloser),
		}

	case groupOpen && strings.HasSuffix(trimmed, GroupCloser):
		return Line{Kind: KindGroupEnd}

	case strings.HasPrefix(trimmed, MarkerDecl):
		name, _ := DeclName(trimmed)
		return Line{
			Kind:   KindDeclStart,
			Name:   name,
			Inline: hasInlineQualifier(trimmed),
		}

	case strings.HasPrefix(trimmed, MarkerInput), strings.HasPrefix(trimmed, MarkerOutput):
		return Line{Kind: KindDirective}
	}

	return Line{Kind: KindPlain}
}

// DeclName extracts the relation name from a declaration line: the trimmed
// text between the marker and the first opening parenthesis.
func DeclName(text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, MarkerDecl) {
		return "", false
	}
	rest := trimmed[len(MarkerDecl):]
	paren := strings.Index(rest, "(")
	if paren < 0 {
		return "", false
	}
	name := strings.TrimSpace(rest[:paren])
	if name == "" {
		return "", false
	}
	return name, true
}

// hasInlineQualifier reports whether the inline keyword appears as a word in
// the qualifier part of a declaration, after its parameter list when the list
// closes on this line.
func hasInlineQualifier(trimmed string) bool {
	qualifiers := trimmed[len(MarkerDecl):]
	if i := strings.LastIndex(qualifiers, ")"); i >= 0 {
		qualifiers = qualifiers[i+1:]
	} else if i := strings.Index(qualifiers, "("); i >= 0 {
		qualifiers = qualifiers[i+1:]
	}
	for _, f := range strings.FieldsFunc(qualifiers, isQualifierSeparator) {
		if f == InlineKeyword {
			return true
		}
	}
	return false
}

func isQualifierSeparator(r rune) bool {
	switch r {
	case ' ', '\t', ',', '(', ')':
		return true
	}
	return false
}

// isContinuation reports whether a plain line continues a wrapped declaration
// header: it holds a type-separator colon and no derives-from token.
func isContinuation(text string, cl Line) bool {
	if cl.Kind != KindPlain {
		return false
	}
	return strings.Contains(text, ":") && !strings.Contains(text, DerivesFrom)
}
