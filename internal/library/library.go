// Package library aggregates scanned Soufflé files into a library: it rewrites
// every file so each declared relation is written out, and renders one include
// file that re-declares every relation as an input.
package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"dlshell/internal/datalog"
	"dlshell/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Options controls how a library collects and writes back files.
type Options struct {
	Extension   string // source file extension, ".dl" when empty
	Recursive   bool   // descend into subdirectories in AddDir
	Override    bool   // rewrite source files in place
	OutDir      string // mirror rewritten files here instead of overriding
	Parallelism int    // concurrent file scans in AddDir
}

// Library holds everything collected across the files of one rewriting run.
type Library struct {
	Name        string
	IncludePath string
	opts        Options

	mu       sync.Mutex
	files    []sourceFile
	types    []string
	inits    []string
	topLevel []datalog.Declaration
	groups   []*datalog.GroupBlock
	groupIdx map[string]int
}

type sourceFile struct {
	result *datalog.FileResult
	rel    string // path relative to the scanned root, used when mirroring
}

// New creates an empty library writing its include file to includePath.
func New(name, includePath string, opts Options) *Library {
	if opts.Extension == "" {
		opts.Extension = ".dl"
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}
	return &Library{
		Name:        name,
		IncludePath: includePath,
		opts:        opts,
		groupIdx:    make(map[string]int),
	}
}

// AddFile scans a single file and merges its contributions.
func (l *Library) AddFile(path string) error {
	res, err := scanPath(path)
	if err != nil {
		return err
	}
	l.merge(res, filepath.Base(path))
	return nil
}

// AddDir scans every source file in dir, in lexical order, descending into
// subdirectories when the library is recursive. Files are scanned
// concurrently and merged in visiting order, so the result matches a
// sequential scan. The first malformed file aborts the run.
func (l *Library) AddDir(ctx context.Context, dir string) error {
	timer := logging.StartTimer(logging.CategoryLibrary, "scan "+dir)
	defer timer.Stop()

	paths, err := l.collect(dir)
	if err != nil {
		return err
	}
	logging.Library("library %s: scanning %d files under %s", l.Name, len(paths), dir)

	results := make([]*datalog.FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Parallelism)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := scanPath(path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, res := range results {
		rel, err := filepath.Rel(dir, paths[i])
		if err != nil {
			rel = filepath.Base(paths[i])
		}
		l.merge(res, rel)
	}
	return nil
}

// collect lists the source files under dir in visiting order.
func (l *Library) collect(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		path := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if !l.opts.Recursive {
				continue
			}
			sub, err := l.collect(path)
			if err != nil {
				return nil, err
			}
			paths = append(paths, sub...)
			continue
		}
		if filepath.Ext(e.Name()) != l.opts.Extension || l.isIncludeFile(path) {
			continue
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// isIncludeFile keeps a previously generated include file out of the scan.
func (l *Library) isIncludeFile(path string) bool {
	if l.IncludePath == "" {
		return false
	}
	a, err1 := filepath.Abs(path)
	b, err2 := filepath.Abs(l.IncludePath)
	return err1 == nil && err2 == nil && a == b
}

func scanPath(path string) (*datalog.FileResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return datalog.ScanFile(path, f)
}

// Merge adds one file's contributions in encounter order. Nothing is
// deduplicated: a relation declared twice at the same scope appears twice.
// Group blocks sharing a name merge into the block opened first.
func (l *Library) Merge(res *datalog.FileResult) {
	l.merge(res, filepath.Base(res.Path))
}

func (l *Library) merge(res *datalog.FileResult, rel string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.files = append(l.files, sourceFile{result: res, rel: rel})
	l.types = append(l.types, res.Types...)
	l.inits = append(l.inits, res.Inits...)
	l.topLevel = append(l.topLevel, res.TopLevel...)

	for _, g := range res.Groups {
		idx, ok := l.groupIdx[g.Name]
		if !ok {
			block := &datalog.GroupBlock{Name: g.Name, Line: g.Line}
			l.groups = append(l.groups, block)
			idx = len(l.groups) - 1
			l.groupIdx[g.Name] = idx
		}
		l.groups[idx].Members = append(l.groups[idx].Members, g.Members...)
	}

	logging.LibraryDebug("merged %s: +%d types, +%d inits, +%d top-level, +%d groups",
		res.Path, len(res.Types), len(res.Inits), len(res.TopLevel), len(res.Groups))
}

// Files returns the scanned files in merge order.
func (l *Library) Files() []*datalog.FileResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*datalog.FileResult, len(l.files))
	for i, f := range l.files {
		out[i] = f.result
	}
	return out
}

// Types returns the collected type declaration lines.
func (l *Library) Types() []string { return l.types }

// Inits returns the collected init directive lines.
func (l *Library) Inits() []string { return l.inits }

// TopLevel returns top-level declarations in first-declared order.
func (l *Library) TopLevel() []datalog.Declaration { return l.topLevel }

// Groups returns group blocks in first-open order.
func (l *Library) Groups() []*datalog.GroupBlock { return l.groups }

// RelationNames returns every collected relation name, group members first.
func (l *Library) RelationNames() []string {
	var names []string
	for _, g := range l.groups {
		for _, d := range g.Members {
			names = append(names, d.Name)
		}
	}
	for _, d := range l.topLevel {
		names = append(names, d.Name)
	}
	return names
}
