package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"dlshell/internal/engine"
	"dlshell/internal/session"
	"dlshell/internal/shell"
	"dlshell/internal/store"
	"dlshell/internal/workspace"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	sessionOpts prepareOptions
	skipPrepare bool
	plainMode   bool
)

func registerSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&sessionOpts.Name, "name", "N", "", "Program name")
	cmd.Flags().StringVarP(&sessionOpts.DatalogDir, "datalog-dir", "D", "", "Directory holding the program")
	cmd.Flags().StringVarP(&sessionOpts.Entry, "entry", "E", "", "Entry file, relative to the datalog dir")
	cmd.Flags().StringVarP(&sessionOpts.FactsDir, "facts-dir", "F", "", "Facts to preload")
	cmd.Flags().BoolVar(&skipPrepare, "skip-prepare", false, "Reuse the existing working area")
	cmd.Flags().BoolVar(&plainMode, "plain", false, "Line-oriented prompt instead of the full-screen UI")
}

func runSession(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	layout := workspace.NewLayout(cfg.Workspace)
	runner := engine.NewSouffleRunner(cfg.Engine.Binary, cfg.Engine.ExtraArgs, cfg.GetEngineTimeout(), cfg.Engine.FailureMarker)
	out := cmd.OutOrStdout()

	if !skipPrepare {
		if sessionOpts.Name == "" || sessionOpts.DatalogDir == "" {
			return fmt.Errorf("--name and --datalog-dir are required (or pass --skip-prepare)")
		}
		report, err := prepareWorkspace(ctx, layout, cfg.Library, runner, sessionOpts)
		if err != nil {
			return err
		}
		logger.Info("Workspace prepared",
			zap.String("base", layout.Base),
			zap.Int("files", report.Files),
			zap.Int("relations", report.Relations),
			zap.Int("materialized", len(report.Materialized)))
		fmt.Fprintf(out, "%d files, %d relations, include %s\n", report.Files, report.Relations, report.Include)
		fmt.Fprintln(out, "check the .init lines in the generated file: optional parts of included components may have been copied too")
	} else if missing := layout.Missing(); len(missing) > 0 {
		return fmt.Errorf("workspace %s is not prepared (missing %s)", layout.Base, strings.Join(missing, ", "))
	}

	if err := initLogging(); err != nil {
		return err
	}

	sh, cleanup, err := openShell(ctx, layout, runner)
	if err != nil {
		return err
	}
	defer cleanup()

	if plainMode || !isatty.IsTerminal(os.Stdin.Fd()) {
		return runPlain(ctx, sh, cmd.InOrStdin(), out)
	}
	return runREPL(ctx, sh)
}

// openShell seeds the session, opens its history, and starts the include
// watcher. The returned cleanup stops everything openShell started.
func openShell(ctx context.Context, layout workspace.Layout, runner engine.Runner) (*shell.Shell, func(), error) {
	if _, err := session.SeedInclude(layout); err != nil {
		return nil, nil, err
	}
	registry, err := session.NewRegistry(layout.Include, cfg.Library.Extension, cfg.Session.ScanCacheSize)
	if err != nil {
		return nil, nil, err
	}
	cache, err := session.Open(session.Options{Layout: layout, Runner: runner, Registry: registry})
	if err != nil {
		return nil, nil, err
	}

	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	history, err := store.Open(cfg.HistoryDBPath())
	if err != nil {
		logger.Warn("History disabled", zap.Error(err))
		history = nil
	} else {
		cleanups = append(cleanups, func() { history.Close() })
		if err := history.StartSession(cache.Token(), layout.Base); err != nil {
			logger.Warn("Failed to record session", zap.Error(err))
		}
	}

	if cfg.Session.WatchInclude {
		w, err := session.NewIncludeWatcher(layout, registry, cfg.Library.Extension)
		if err != nil {
			logger.Warn("Include watcher disabled", zap.Error(err))
		} else if err := w.Start(ctx); err != nil {
			logger.Warn("Include watcher disabled", zap.Error(err))
			w.Stop()
		} else {
			cleanups = append(cleanups, w.Stop)
		}
	}

	logger.Info("Session started", zap.String("token", cache.Token()), zap.String("cache", cache.Path()))
	return shell.New(cache, history, cfg.Session.Editor), cleanup, nil
}
