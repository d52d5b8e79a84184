package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"dlshell/internal/config"
	"dlshell/internal/engine"
	"dlshell/internal/library"
	"dlshell/internal/logging"
	"dlshell/internal/workspace"
)

// prepareOptions names the program a session is prepared for.
type prepareOptions struct {
	Name       string
	DatalogDir string
	Entry      string // relative to DatalogDir, optional
	FactsDir   string // optional
}

// prepareReport summarizes a workspace preparation.
type prepareReport struct {
	Files        int
	Rewritten    int
	Relations    int
	Include      string
	Materialized []string
}

// prepareWorkspace rebuilds the working area for o: fresh areas, a copy of
// the program and facts, a rewritten library with its include file, and,
// when an entry is given, every relation of the entry materialized as facts.
func prepareWorkspace(ctx context.Context, layout workspace.Layout, libCfg config.LibraryConfig, runner engine.Runner, o prepareOptions) (*prepareReport, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "prepareWorkspace")
	defer timer.StopWithInfo()

	if info, err := os.Stat(o.DatalogDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("datalog dir %s is not a directory", o.DatalogDir)
	}
	if o.FactsDir != "" {
		if info, err := os.Stat(o.FactsDir); err != nil || !info.IsDir() {
			return nil, fmt.Errorf("facts dir %s is not a directory", o.FactsDir)
		}
	}

	// 1. Fresh areas
	if err := layout.Prepare(); err != nil {
		return nil, err
	}

	// 2. Program and facts
	srcDir := layout.LibrarySourceDir(o.Name)
	if err := workspace.CopyTree(o.DatalogDir, srcDir); err != nil {
		return nil, fmt.Errorf("failed to copy %s: %w", o.DatalogDir, err)
	}
	if o.FactsDir != "" {
		if err := workspace.CopyTree(o.FactsDir, layout.Facts); err != nil {
			return nil, fmt.Errorf("failed to copy %s: %w", o.FactsDir, err)
		}
	}

	// 3. Library
	lib := library.New(o.Name, layout.LibraryIncludePath(o.Name), library.Options{
		Extension:   libCfg.Extension,
		Recursive:   true,
		Override:    true,
		Parallelism: libCfg.Parallelism,
	})
	if err := lib.AddDir(ctx, srcDir); err != nil {
		return nil, err
	}
	written, err := lib.RewriteFiles()
	if err != nil {
		return nil, err
	}
	if err := lib.GenerateInclude(); err != nil {
		return nil, err
	}
	report := &prepareReport{
		Files:     len(lib.Files()),
		Rewritten: written,
		Relations: len(lib.RelationNames()),
		Include:   lib.IncludePath,
	}

	// 4. Materialize the entry's relations as facts
	if o.Entry != "" {
		entry := filepath.Join(srcDir, o.Entry)
		if _, err := os.Stat(entry); err != nil {
			return report, fmt.Errorf("entry %s not found in %s", o.Entry, o.DatalogDir)
		}
		res, err := runner.Run(ctx, engine.Invocation{
			Program:   entry,
			FactsDir:  layout.Facts,
			OutputDir: layout.Facts,
		})
		if err != nil {
			return report, fmt.Errorf("failed to run entry: %w", err)
		}
		if err := res.Err(); err != nil {
			return report, err
		}
		report.Materialized, err = workspace.RenameOutputsToFacts(layout.Facts)
		if err != nil {
			return report, err
		}
	}

	logging.Boot("prepared %s: %d files, %d relations, %d materialized",
		layout.Base, report.Files, report.Relations, len(report.Materialized))
	return report, nil
}
