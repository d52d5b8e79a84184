package library

import (
	"fmt"
	"os"
	"path/filepath"

	"dlshell/internal/logging"
)

// RewriteFiles writes every scanned file's rewritten text back. With Override
// the source files are replaced, skipping files nothing was inserted into.
// Otherwise every file is mirrored under OutDir at its scanned relative path.
// It returns the number of files written.
func (l *Library) RewriteFiles() (int, error) {
	l.mu.Lock()
	files := append([]sourceFile(nil), l.files...)
	l.mu.Unlock()

	if !l.opts.Override && l.opts.OutDir == "" {
		return 0, fmt.Errorf("library %s: neither override nor an output directory is set", l.Name)
	}

	written := 0
	for _, f := range files {
		res := f.result
		target := res.Path
		if !l.opts.Override {
			target = filepath.Join(l.opts.OutDir, f.rel)
		} else if !res.Changed() {
			continue
		}

		if err := writePreservingMode(target, res.Path, []byte(res.Text())); err != nil {
			return written, err
		}
		written++
		logging.RewriteDebug("wrote %s (+%d directives)", target, res.Synthesized)
	}
	logging.Rewrite("library %s: rewrote %d of %d files", l.Name, written, len(files))
	return written, nil
}

func writePreservingMode(target, source string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(source); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", target, err)
	}
	if err := os.WriteFile(target, data, mode); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return nil
}
