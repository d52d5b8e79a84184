// Package workspace provisions the session working area: a base directory
// holding included sources, fact inputs, computed outputs, copied library
// sources, and per-session cache files.
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"dlshell/internal/config"
	"dlshell/internal/engine"
	"dlshell/internal/logging"
)

// CacheIncludeFile is the cache-area file that includes every library include.
const CacheIncludeFile = "include.dl"

// Layout holds the absolute-or-relative paths of the working areas.
type Layout struct {
	Base    string
	Include string
	Facts   string
	Outs    string
	Source  string
	Cache   string
}

// NewLayout resolves the areas of cfg under its base directory.
func NewLayout(cfg config.WorkspaceConfig) Layout {
	return Layout{
		Base:    cfg.BaseDir,
		Include: filepath.Join(cfg.BaseDir, cfg.IncludeDir),
		Facts:   filepath.Join(cfg.BaseDir, cfg.FactsDir),
		Outs:    filepath.Join(cfg.BaseDir, cfg.OutDir),
		Source:  filepath.Join(cfg.BaseDir, cfg.SourceDir),
		Cache:   filepath.Join(cfg.BaseDir, cfg.CacheDir),
	}
}

func (l Layout) areas() []string {
	return []string{l.Include, l.Facts, l.Outs, l.Source, l.Cache}
}

// Prepare wipes the base directory and recreates every area.
func (l Layout) Prepare() error {
	if l.Base == "" {
		return fmt.Errorf("workspace base directory required")
	}
	if err := os.RemoveAll(l.Base); err != nil {
		return fmt.Errorf("failed to clear %s: %w", l.Base, err)
	}
	return l.Ensure()
}

// Ensure creates any missing area without touching existing content.
func (l Layout) Ensure() error {
	for _, dir := range append([]string{l.Base}, l.areas()...) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	logging.Boot("workspace ready at %s", l.Base)
	return nil
}

// Missing returns the areas that do not exist as directories.
func (l Layout) Missing() []string {
	var missing []string
	for _, dir := range l.areas() {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			missing = append(missing, dir)
		}
	}
	return missing
}

// CacheIncludePath is the include file every session cache starts from.
func (l Layout) CacheIncludePath() string {
	return filepath.Join(l.Cache, CacheIncludeFile)
}

// SessionFile is the cache file of the session identified by token.
func (l Layout) SessionFile(token string) string {
	return filepath.Join(l.Cache, token+".dl")
}

// LibrarySourceDir is where a library's sources are copied to.
func (l Layout) LibrarySourceDir(name string) string {
	return filepath.Join(l.Source, name)
}

// LibraryIncludePath is the generated include file of a library.
func (l Layout) LibraryIncludePath(name string) string {
	return filepath.Join(l.Include, name+"_include.dl")
}

// ClearOutputs removes every entry of the outputs area, keeping the area.
func (l Layout) ClearOutputs() error {
	entries, err := os.ReadDir(l.Outs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(l.Outs, e.Name())); err != nil {
			return fmt.Errorf("failed to clear outputs: %w", err)
		}
	}
	return nil
}

// CopyFile copies src to dst, replacing dst.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyTree copies the directory tree at src into dst, creating dst.
func CopyTree(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0755)
		}
		return CopyFile(path, target)
	})
}

// CopyMatching copies the files of src carrying ext into dst, returning how
// many were copied.
func CopyMatching(src, dst, ext string) (int, error) {
	entries, err := os.ReadDir(src)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		if err := CopyFile(filepath.Join(src, e.Name()), filepath.Join(dst, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// RenameOutputsToFacts turns every computed output in dir into a fact input:
// X.csv becomes X.facts, replacing an existing X.facts. It returns the
// renamed relation names.
func RenameOutputsToFacts(dir string) ([]string, error) {
	outs, err := engine.ListRelations(dir, engine.OutputExt)
	if err != nil {
		return nil, err
	}
	for _, name := range outs {
		facts := filepath.Join(dir, name+engine.FactsExt)
		if err := os.Remove(facts); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to replace %s: %w", facts, err)
		}
		if err := os.Rename(filepath.Join(dir, name+engine.OutputExt), facts); err != nil {
			return nil, fmt.Errorf("failed to rename output %s: %w", name, err)
		}
	}
	logging.BootDebug("renamed %d outputs to facts in %s", len(outs), dir)
	return outs, nil
}
