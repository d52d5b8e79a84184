package datalog

import (
	"fmt"
	"io"
	"strings"

	"dlshell/internal/logging"
)

// Declaration is a relation declaration discovered while scanning.
type Declaration struct {
	Name string

	// Group is the enclosing group block, empty at top level.
	Group string

	// Header holds the header lines exactly as read; a header may wrap.
	Header []string

	File string
	Line int

	// Visible is set when the source already carried a visibility directive
	// right after the header, so nothing was synthesized for it.
	Visible bool
}

// HeaderText returns the header lines joined by newlines.
func (d Declaration) HeaderText() string {
	return strings.Join(d.Header, "\n")
}

// TopLevel reports whether the declaration sits outside every group block.
func (d Declaration) TopLevel() bool {
	return d.Group == ""
}

// GroupBlock is a named scope and the declarations filed under it.
type GroupBlock struct {
	Name    string
	Line    int
	Members []Declaration
}

// FileResult is everything one file contributes: its rewritten text and the
// declarations, type lines and init lines it holds, in encounter order.
type FileResult struct {
	Path string

	Original  []string
	Rewritten []string

	TrailingNewline bool
	CRLF            bool

	Types    []string
	Inits    []string
	TopLevel []Declaration
	Groups   []GroupBlock

	// Synthesized counts output directives inserted by the rewrite.
	Synthesized int
}

// Text renders the rewritten lines with the file's original line endings.
func (r *FileResult) Text() string {
	return joinLines(r.Rewritten, r.TrailingNewline, r.CRLF)
}

// Changed reports whether rewriting inserted anything.
func (r *FileResult) Changed() bool {
	return r.Synthesized > 0
}

// Declarations returns top-level declarations followed by group members.
func (r *FileResult) Declarations() []Declaration {
	out := append([]Declaration(nil), r.TopLevel...)
	for _, g := range r.Groups {
		out = append(out, g.Members...)
	}
	return out
}

// OutputDirective renders an output visibility directive for name.
func OutputDirective(name string) string {
	return MarkerOutput + " " + name
}

// InputDirective renders an input visibility directive for name.
func InputDirective(name string) string {
	return MarkerInput + " " + name
}

// ScanFile reads src completely and scans it. path is used for error context.
func ScanFile(path string, src io.Reader) (*FileResult, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	lines, trailing, crlf := SplitLines(string(data))
	res, err := ScanLines(path, lines)
	if err != nil {
		return nil, err
	}
	res.TrailingNewline = trailing
	res.CRLF = crlf
	return res, nil
}

// ScanLines runs the declaration accumulator and scope tracker over lines.
//
// A non-inline declaration header stays pending until a line arrives that
// does not continue it. If that line is a visibility directive the relation is
// already visible; otherwise an output directive is inserted just before it.
// Structural lines never continue a header, so a header is always closed
// before a group block opens or closes and is filed under the scope it began in.
func ScanLines(path string, lines []string) (*FileResult, error) {
	s := &fileScanner{
		res: &FileResult{
			Path:      path,
			Original:  lines,
			Rewritten: make([]string, 0, len(lines)+8),
		},
		group: -1,
	}
	for i, text := range lines {
		if err := s.step(i+1, text); err != nil {
			return nil, err
		}
	}
	s.finish()

	logging.RewriteDebug("scanned %s: %d lines, %d top-level decls, %d groups, %d directives inserted",
		path, len(lines), len(s.res.TopLevel), len(s.res.Groups), s.res.Synthesized)
	return s.res, nil
}

type fileScanner struct {
	res *FileResult

	// accumulator state: nil when idle
	pending *Declaration

	// scope tracker state: index into res.Groups, -1 at top level
	group int
}

func (s *fileScanner) step(lineNo int, text string) error {
	cl := Classify(text, s.group >= 0)

	if s.pending != nil {
		switch {
		case isContinuation(text, cl):
			s.pending.Header = append(s.pending.Header, text)
			s.res.Rewritten = append(s.res.Rewritten, text)
			return nil
		case cl.Kind == KindDirective:
			s.pending.Visible = true
			s.closePending()
		default:
			s.res.Rewritten = append(s.res.Rewritten, OutputDirective(s.pending.Name))
			s.res.Synthesized++
			s.closePending()
		}
	}

	switch cl.Kind {
	case KindTypeDecl:
		s.res.Types = append(s.res.Types, text)

	case KindInit:
		s.res.Inits = append(s.res.Inits, text)

	case KindGroupStart:
		if s.group >= 0 {
			logging.RewriteWarn("%s:%d: group %q opened while %q is still open; closing it",
				s.res.Path, lineNo, cl.Name, s.res.Groups[s.group].Name)
		}
		s.res.Groups = append(s.res.Groups, GroupBlock{Name: cl.Name, Line: lineNo})
		s.group = len(s.res.Groups) - 1
		if cl.Closed {
			s.group = -1
		}

	case KindGroupEnd:
		s.group = -1

	case KindDeclStart:
		if cl.Name == "" {
			return &ParseError{File: s.res.Path, Line: lineNo, Text: text, Err: ErrMalformedDecl}
		}
		if !cl.Inline {
			s.pending = &Declaration{
				Name:   cl.Name,
				Header: []string{text},
				File:   s.res.Path,
				Line:   lineNo,
			}
		}
	}

	s.res.Rewritten = append(s.res.Rewritten, text)
	return nil
}

// closePending files the pending declaration under the current scope.
func (s *fileScanner) closePending() {
	d := *s.pending
	s.pending = nil
	if s.group >= 0 {
		g := &s.res.Groups[s.group]
		d.Group = g.Name
		g.Members = append(g.Members, d)
		return
	}
	s.res.TopLevel = append(s.res.TopLevel, d)
}

func (s *fileScanner) finish() {
	if s.pending != nil {
		s.res.Rewritten = append(s.res.Rewritten, OutputDirective(s.pending.Name))
		s.res.Synthesized++
		s.closePending()
	}
	if s.group >= 0 {
		logging.RewriteWarn("%s: group %q never closed", s.res.Path, s.res.Groups[s.group].Name)
		s.group = -1
	}
}

// SplitLines splits text into lines without terminators. It reports whether
// the text ended with a newline and whether lines were CRLF terminated.
func SplitLines(text string) (lines []string, trailingNewline bool, crlf bool) {
	if text == "" {
		return nil, false, false
	}
	crlf = strings.Contains(text, "\r\n")
	if crlf {
		text = strings.ReplaceAll(text, "\r\n", "\n")
	}
	trailingNewline = strings.HasSuffix(text, "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n"), trailingNewline, crlf
}

func joinLines(lines []string, trailingNewline, crlf bool) string {
	eol := "\n"
	if crlf {
		eol = "\r\n"
	}
	out := strings.Join(lines, eol)
	if trailingNewline && len(lines) > 0 {
		out += eol
	}
	return out
}
