// Package engine is the boundary to the external reasoning engine. The engine
// is opaque: it is handed a compilation unit plus fact and output locations,
// runs to completion, and reports success or failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrEngineFailed is wrapped by Result.Err when the engine signalled failure.
var ErrEngineFailed = errors.New("engine run failed")

// Invocation names the three inputs of one engine run.
type Invocation struct {
	Program   string // compilation unit
	FactsDir  string // fact inputs (-F)
	OutputDir string // computed outputs (-D)
}

// Result is what the engine reported about one run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration

	// Failed is derived from the engine's own signals: exit status, timeout,
	// or the failure marker on its error stream.
	Failed bool
	Reason string

	// Outputs lists the relations present in OutputDir after the run.
	Outputs []string
}

// Err returns nil for a successful run and an ErrEngineFailed wrap otherwise.
func (r *Result) Err() error {
	if r == nil || !r.Failed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrEngineFailed, r.Reason)
}

// Runner runs the engine synchronously.
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, inv Invocation) (*Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}

// OutputExt is the extension the engine gives computed relations.
const OutputExt = ".csv"

// FactsExt is the extension of fact input files.
const FactsExt = ".facts"

// ListRelations returns the sorted relation names of files in dir carrying ext.
// A missing directory yields no names.
func ListRelations(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	sort.Strings(names)
	return names, nil
}
