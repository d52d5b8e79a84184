package datalog

import "strings"

// DeclaredNames returns the names of every non-inline declaration in text, in
// order of appearance. Duplicates are kept.
func DeclaredNames(text string) []string {
	var names []string
	lines, _, _ := SplitLines(text)
	for _, line := range lines {
		cl := Classify(line, false)
		if cl.Kind != KindDeclStart || cl.Inline || cl.Name == "" {
			continue
		}
		names = append(names, cl.Name)
	}
	return names
}

// DirectiveTarget splits a visibility directive into its marker and relation
// name. ".output edge(IO=file)" yields (".output", "edge", true).
func DirectiveTarget(line string) (marker, name string, ok bool) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, MarkerOutput):
		marker = MarkerOutput
	case strings.HasPrefix(trimmed, MarkerInput):
		marker = MarkerInput
	default:
		return "", "", false
	}
	rest := trimmed[len(marker):]
	if i := strings.Index(rest, "("); i >= 0 {
		rest = rest[:i]
	}
	name = strings.TrimSpace(rest)
	return marker, name, name != ""
}

// ValidStatement is the lightweight check applied to interactively entered
// lines. It accepts a declaration whose header closes on the same line, a
// visibility directive, a type declaration, or a terminated rule.
func ValidStatement(line string) bool {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, MarkerDecl):
		open := strings.Count(trimmed, "(")
		return open > 0 && open == strings.Count(trimmed, ")")
	case strings.HasPrefix(trimmed, MarkerInput), strings.HasPrefix(trimmed, MarkerOutput):
		return true
	case strings.HasPrefix(trimmed, MarkerType):
		return true
	case strings.HasSuffix(trimmed, Terminator) && strings.Contains(trimmed, DerivesFrom):
		return true
	}
	return false
}
