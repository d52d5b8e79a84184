// Package session implements the interactive session cache: an append-only
// statement buffer persisted to a per-session cache file, a declared-name
// registry guarding output requests, and the synchronous engine runs that
// recompile the buffer.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"dlshell/internal/datalog"
	"dlshell/internal/engine"
	"dlshell/internal/logging"
	"dlshell/internal/workspace"
)

// Options configures a Cache.
type Options struct {
	Layout   workspace.Layout
	Runner   engine.Runner
	Registry *Registry

	// Token identifies the session; a fresh one is generated when empty.
	Token string
}

// Cache is one session's statement buffer and its backing file. It is owned
// by a single session loop; the mutex only guards against the include
// watcher observing a half-updated state.
type Cache struct {
	mu         sync.Mutex
	layout     workspace.Layout
	runner     engine.Runner
	registry   *Registry
	token      string
	path       string
	statements []string
}

// Open creates the session cache file holding only the seed header. The
// cache area must already exist.
func Open(opts Options) (*Cache, error) {
	if opts.Runner == nil {
		return nil, fmt.Errorf("session requires an engine runner")
	}
	token := opts.Token
	if token == "" {
		token = NewToken()
	}
	registry := opts.Registry
	if registry == nil {
		r, err := NewRegistry(opts.Layout.Include, "", 0)
		if err != nil {
			return nil, err
		}
		registry = r
	}

	if info, err := os.Stat(opts.Layout.Cache); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingArea, opts.Layout.Cache)
	}

	c := &Cache{
		layout:   opts.Layout,
		runner:   opts.Runner,
		registry: registry,
		token:    token,
		path:     opts.Layout.SessionFile(token),
	}
	if err := c.writeSeed(); err != nil {
		return nil, err
	}
	logging.Session("session %s opened at %s", token, c.path)
	return c, nil
}

// Token returns the session token.
func (c *Cache) Token() string { return c.token }

// Path returns the session cache file.
func (c *Cache) Path() string { return c.path }

// Layout returns the working layout the session reads and writes.
func (c *Cache) Layout() workspace.Layout { return c.layout }

// Registry returns the declared-name registry.
func (c *Cache) Registry() *Registry { return c.registry }

// Statements returns a copy of the statements appended since the last reset.
func (c *Cache) Statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.statements...)
}

// Text returns the buffer as written to the cache file.
func (c *Cache) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textLocked()
}

func (c *Cache) textLocked() string {
	var b strings.Builder
	b.WriteString(seedText())
	for _, st := range c.statements {
		b.WriteString(st)
		b.WriteByte('\n')
	}
	return b.String()
}

func seedText() string {
	return SessionHeader + "\n\n"
}

func (c *Cache) writeSeed() error {
	if err := os.WriteFile(c.path, []byte(seedText()), 0644); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArea, c.layout.Cache)
		}
		return fmt.Errorf("failed to write %s: %w", c.path, err)
	}
	return nil
}

// Append adds a raw statement line to the buffer and its file. No validation
// is performed here.
func (c *Cache) Append(statement string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.appendLocked(statement)
}

func (c *Cache) appendLocked(statement string) error {
	statement = strings.TrimRight(statement, "\r\n")
	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArea, c.path)
		}
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(statement + "\n"); err != nil {
		return fmt.Errorf("failed to append to %s: %w", c.path, err)
	}
	c.statements = append(c.statements, statement)
	logging.SessionDebug("appended to %s: %s", c.token, statement)
	return nil
}

// Reset truncates the buffer back to the seed header.
func (c *Cache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resetLocked()
}

func (c *Cache) resetLocked() error {
	dropped := len(c.statements)
	c.statements = nil
	if err := c.writeSeed(); err != nil {
		return err
	}
	logging.Session("session %s reset (%d statements dropped)", c.token, dropped)
	return nil
}

// Clean resets the buffer and empties the outputs area.
func (c *Cache) Clean() error {
	if err := c.Reset(); err != nil {
		return err
	}
	return c.layout.ClearOutputs()
}

// Compile runs the engine on the cache file. When the engine reports failure
// the buffer is reset and the returned error wraps engine.ErrEngineFailed.
func (c *Cache) Compile(ctx context.Context) (*engine.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compileLocked(ctx)
}

func (c *Cache) compileLocked(ctx context.Context) (*engine.Result, error) {
	for _, dir := range []string{c.layout.Facts, c.layout.Outs} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("%w: %s", ErrMissingArea, dir)
		}
	}
	if _, err := os.Stat(c.path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingArea, c.path)
	}

	timer := logging.StartTimer(logging.CategorySession, "Compile")
	defer timer.Stop()

	res, err := c.runner.Run(ctx, engine.Invocation{
		Program:   c.path,
		FactsDir:  c.layout.Facts,
		OutputDir: c.layout.Outs,
	})
	if err != nil {
		logging.SessionWarn("engine could not run for %s: %v", c.token, err)
		if rerr := c.resetLocked(); rerr != nil {
			logging.SessionError("reset after engine error failed: %v", rerr)
		}
		return nil, fmt.Errorf("%w: %v", engine.ErrEngineFailed, err)
	}
	if res.Failed {
		logging.SessionWarn("engine failed for %s: %s", c.token, res.Reason)
		if rerr := c.resetLocked(); rerr != nil {
			logging.SessionError("reset after engine failure failed: %v", rerr)
		}
		return res, res.Err()
	}
	logging.Session("compiled %s: %d outputs", c.token, len(res.Outputs))
	return res, nil
}

// OutputResult is the answer to an output request.
type OutputResult struct {
	Name string
	Path string
	Data []byte

	// Existing is true when the relation was already materialized and no
	// engine run was needed.
	Existing bool

	// Produced is false when the engine run finished without writing the
	// relation.
	Produced bool
	Engine   *engine.Result
}

// RequestOutput makes name visible as an output. It succeeds only if name is
// declared in the buffer or the include tree; otherwise ErrUndeclared is
// returned and neither the buffer nor the engine is touched. A relation that
// already exists as a computed output or fact input is returned as is.
func (c *Cache) RequestOutput(ctx context.Context, name string) (*OutputResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	name = strings.TrimSpace(name)
	declared, err := c.registry.Declared(c.textLocked(), name)
	if err != nil {
		return nil, err
	}
	if !declared {
		logging.SessionDebug("output request for undeclared %q", name)
		return nil, fmt.Errorf("%w: %s", ErrUndeclared, name)
	}

	out := &OutputResult{Name: name}
	for _, candidate := range []string{
		filepath.Join(c.layout.Outs, name+engine.OutputExt),
		filepath.Join(c.layout.Facts, name+engine.FactsExt),
	} {
		if data, err := os.ReadFile(candidate); err == nil {
			out.Path, out.Data, out.Existing, out.Produced = candidate, data, true, true
			return out, nil
		}
	}

	if err := c.appendLocked(datalog.OutputDirective(name)); err != nil {
		return nil, err
	}
	res, err := c.compileLocked(ctx)
	out.Engine = res
	if err != nil {
		return out, err
	}

	out.Path = filepath.Join(c.layout.Outs, name+engine.OutputExt)
	data, err := os.ReadFile(out.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return out, err
	}
	out.Data, out.Produced = data, true
	return out, nil
}

// Submit applies the statement check to a user line and routes it: an output
// directive becomes an output request, anything else is appended.
func (c *Cache) Submit(ctx context.Context, line string) (*OutputResult, error) {
	trimmed := strings.TrimSpace(line)
	if !datalog.ValidStatement(trimmed) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatement, trimmed)
	}
	if marker, name, ok := datalog.DirectiveTarget(trimmed); ok && marker == datalog.MarkerOutput {
		return c.RequestOutput(ctx, name)
	}
	return nil, c.Append(trimmed)
}

// Reload replaces the buffer with the cache file's content, after the file
// was edited outside the session. Lines before and including the seed header
// are not part of the buffer.
func (c *Cache) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingArea, c.path)
		}
		return err
	}
	lines, _, _ := datalog.SplitLines(string(data))

	start := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == SessionHeader {
			start = i + 1
			break
		}
	}
	var statements []string
	for _, line := range lines[start:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		statements = append(statements, line)
	}
	c.statements = statements

	// Normalize the file back to the seed plus statements.
	if err := os.WriteFile(c.path, []byte(c.textLocked()), 0644); err != nil {
		return err
	}
	logging.Session("session %s reloaded %d statements", c.token, len(statements))
	return nil
}

// LoadResult reports what Load did.
type LoadResult struct {
	Loaded  []string
	Missing []string
	Engine  *engine.Result
}

// Load copies each existing file into the include area, references it from
// the cache include file, and recompiles once if anything was loaded.
// Missing files are reported, not fatal.
func (c *Cache) Load(ctx context.Context, files ...string) (*LoadResult, error) {
	if info, err := os.Stat(c.layout.Include); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrMissingArea, c.layout.Include)
	}

	res := &LoadResult{}
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			res.Missing = append(res.Missing, f)
			continue
		}
		base := filepath.Base(f)
		dst := filepath.Join(c.layout.Include, base)
		if err := workspace.CopyFile(f, dst); err != nil {
			return res, fmt.Errorf("failed to load %s: %w", f, err)
		}
		c.registry.Invalidate(dst)
		if _, err := AddInclude(c.layout, base); err != nil {
			return res, err
		}
		res.Loaded = append(res.Loaded, base)
	}
	if len(res.Loaded) == 0 {
		return res, nil
	}

	logging.Session("loaded %d files into %s", len(res.Loaded), c.layout.Include)
	er, err := c.Compile(ctx)
	res.Engine = er
	return res, err
}

// ImportFacts copies every fact file of dir into the facts area.
func (c *Cache) ImportFacts(dir string) (int, error) {
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrMissingArea, dir)
	}
	if info, err := os.Stat(c.layout.Facts); err != nil || !info.IsDir() {
		return 0, fmt.Errorf("%w: %s", ErrMissingArea, c.layout.Facts)
	}
	n, err := workspace.CopyMatching(dir, c.layout.Facts, engine.FactsExt)
	if err != nil {
		return n, err
	}
	logging.Session("imported %d fact files from %s", n, dir)
	return n, nil
}

// Rules lists the relations available as fact inputs or computed outputs.
func (c *Cache) Rules() ([]string, error) {
	facts, err := engine.ListRelations(c.layout.Facts, engine.FactsExt)
	if err != nil {
		return nil, err
	}
	outs, err := engine.ListRelations(c.layout.Outs, engine.OutputExt)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(facts)+len(outs))
	var names []string
	for _, n := range append(facts, outs...) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Export copies the session cache file to path.
func (c *Cache) Export(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := os.Stat(c.path); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingArea, c.path)
	}
	return workspace.CopyFile(c.path, path)
}

// SaveOutputs copies the outputs area to dir.
func (c *Cache) SaveOutputs(dir string) error {
	if _, err := os.Stat(c.layout.Outs); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingArea, c.layout.Outs)
	}
	return workspace.CopyTree(c.layout.Outs, dir)
}
