package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dlshell/internal/datalog"
	"dlshell/internal/logging"
)

// Render produces the include file text. Sections come in a fixed order:
// type declarations, init directives, group blocks in first-open order, then
// top-level declarations in first-declared order. Every declaration header is
// followed by an input directive for its relation.
func (l *Library) Render() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for _, line := range l.types {
		writeLine(&b, line)
	}
	for _, line := range l.inits {
		writeLine(&b, line)
	}
	for _, g := range l.groups {
		writeLine(&b, datalog.MarkerGroup+" "+g.Name+" "+datalog.GroupOpener)
		for _, d := range g.Members {
			writeDecl(&b, d)
		}
		writeLine(&b, datalog.GroupCloser)
	}
	for _, d := range l.topLevel {
		writeDecl(&b, d)
	}
	return b.String()
}

func writeDecl(b *strings.Builder, d datalog.Declaration) {
	writeLine(b, d.HeaderText())
	writeLine(b, datalog.InputDirective(d.Name))
}

func writeLine(b *strings.Builder, line string) {
	b.WriteString(line)
	b.WriteByte('\n')
}

// GenerateInclude writes the rendered include file to IncludePath.
func (l *Library) GenerateInclude() error {
	if l.IncludePath == "" {
		return fmt.Errorf("library %s has no include path", l.Name)
	}
	if dir := filepath.Dir(l.IncludePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create include directory: %w", err)
		}
	}
	text := l.Render()
	if err := os.WriteFile(l.IncludePath, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write include file %s: %w", l.IncludePath, err)
	}
	logging.Library("library %s: wrote include %s (%d groups, %d top-level relations)",
		l.Name, l.IncludePath, len(l.groups), len(l.topLevel))
	return nil
}
