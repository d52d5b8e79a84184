package session

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dlshell/internal/logging"
	"dlshell/internal/workspace"

	"github.com/google/uuid"
)

// SessionHeader is the first line of every session cache file.
const SessionHeader = `#include "./include.dl"`

// includeMu serializes edits of the cache include file between the session
// and the include watcher.
var includeMu sync.Mutex

// NewToken returns a fresh 8-character upper-case session token.
func NewToken() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(id[:8])
}

// IncludeLine is the cache include file's reference to a file of the
// include area, relative to the cache area.
func IncludeLine(layout workspace.Layout, file string) string {
	target := filepath.Join(layout.Include, file)
	if rel, err := filepath.Rel(layout.Cache, target); err == nil {
		target = rel
	}
	return fmt.Sprintf("#include \"%s\"", filepath.ToSlash(target))
}

// SeedInclude (re)writes the cache include file with one reference per file
// of the include area, in lexical order.
func SeedInclude(layout workspace.Layout) ([]string, error) {
	entries, err := os.ReadDir(layout.Include)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingArea, layout.Include)
		}
		return nil, err
	}
	if _, err := os.Stat(layout.Cache); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArea, layout.Cache)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)

	var b strings.Builder
	for _, f := range files {
		b.WriteString(IncludeLine(layout, f))
		b.WriteByte('\n')
	}

	includeMu.Lock()
	defer includeMu.Unlock()
	if err := os.WriteFile(layout.CacheIncludePath(), []byte(b.String()), 0644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", layout.CacheIncludePath(), err)
	}
	logging.Session("seeded %s with %d includes", layout.CacheIncludePath(), len(files))
	return files, nil
}

// AddInclude appends a reference to file to the cache include file unless it
// is already there. It reports whether a line was added.
func AddInclude(layout workspace.Layout, file string) (bool, error) {
	includeMu.Lock()
	defer includeMu.Unlock()

	path := layout.CacheIncludePath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("%w: %s", ErrMissingArea, path)
		}
		return false, err
	}

	line := IncludeLine(layout, file)
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == line {
			return false, nil
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	prefix := ""
	if len(data) > 0 && data[len(data)-1] != '\n' {
		prefix = "\n"
	}
	if _, err := f.WriteString(prefix + line + "\n"); err != nil {
		return false, err
	}
	logging.SessionDebug("added %s to %s", filepath.Base(file), path)
	return true, nil
}
