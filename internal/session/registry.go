package session

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"dlshell/internal/datalog"
	"dlshell/internal/logging"

	lru "github.com/hashicorp/golang-lru/v2"
)

// fileNames is the cached scan of one include file.
type fileNames struct {
	modTime time.Time
	size    int64
	names   []string
}

// Registry answers which relation names are declared, by scanning the
// session buffer and every file of the include tree at request time. Scans of
// include files are cached by path and reused while the file's modification
// time and size are unchanged.
type Registry struct {
	includeDir string
	ext        string
	cache      *lru.Cache[string, fileNames]
}

// NewRegistry creates a registry over includeDir holding at most size cached
// file scans.
func NewRegistry(includeDir, ext string, size int) (*Registry, error) {
	if size <= 0 {
		size = 256
	}
	if ext == "" {
		ext = ".dl"
	}
	cache, err := lru.New[string, fileNames](size)
	if err != nil {
		return nil, err
	}
	return &Registry{includeDir: includeDir, ext: ext, cache: cache}, nil
}

// Names returns the declared names of the include tree followed by those of
// buffer. Inline declarations are excluded.
func (r *Registry) Names(buffer string) ([]string, error) {
	info, err := os.Stat(r.includeDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingArea, r.includeDir)
	}

	var names []string
	err = filepath.WalkDir(r.includeDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != r.ext {
			return nil
		}
		fileNames, err := r.scan(path)
		if err != nil {
			return err
		}
		names = append(names, fileNames...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan include tree: %w", err)
	}
	return append(names, datalog.DeclaredNames(buffer)...), nil
}

// Declared reports whether name is declared in the include tree or buffer.
func (r *Registry) Declared(buffer, name string) (bool, error) {
	names, err := r.Names(buffer)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *Registry) scan(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if cached, ok := r.cache.Get(path); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.names, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	names := datalog.DeclaredNames(string(data))
	r.cache.Add(path, fileNames{modTime: info.ModTime(), size: info.Size(), names: names})
	logging.SessionDebug("registry scanned %s: %d names", path, len(names))
	return names, nil
}

// Invalidate drops the cached scan of path.
func (r *Registry) Invalidate(path string) {
	r.cache.Remove(path)
}

// Purge drops every cached scan.
func (r *Registry) Purge() {
	r.cache.Purge()
}

// Cached reports how many file scans are held.
func (r *Registry) Cached() int {
	return r.cache.Len()
}
