package main

import (
	"fmt"

	"dlshell/internal/library"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	libName        string
	libInclude     string
	libDirs        []string
	libRecursive   bool
	libOutDir      string
	libParallelism int
)

// libCmd builds a library from source directories.
var libCmd = &cobra.Command{
	Use:   "lib",
	Short: "Rewrite Soufflé sources and generate their include file",
	Long: `Scans every .dl file of the given directories, adds ".output NAME" after
each declaration that has no visibility directive, and writes an include file
re-declaring every relation with ".input NAME".

Example:
  dlshell lib -N graph -D ./rules --recursive`,
	RunE: runLib,
}

func init() {
	libCmd.Flags().StringVarP(&libName, "name", "N", "", "Library name (required)")
	libCmd.Flags().StringVarP(&libInclude, "include", "I", "", "Include file to generate (default NAME.dl)")
	libCmd.Flags().StringArrayVarP(&libDirs, "dir", "D", nil, "Source directory (repeatable)")
	libCmd.Flags().BoolVar(&libRecursive, "recursive", false, "Descend into subdirectories")
	libCmd.Flags().StringVar(&libOutDir, "out-dir", "", "Write rewritten files here instead of in place")
	libCmd.Flags().IntVar(&libParallelism, "parallelism", 0, "Concurrent file scans (default from config)")
	libCmd.MarkFlagRequired("name")
	libCmd.MarkFlagRequired("dir")
}

func runLib(cmd *cobra.Command, args []string) error {
	if err := initLogging(); err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()

	include := libInclude
	if include == "" {
		include = libName + ".dl"
	}
	opts := library.Options{
		Extension:   cfg.Library.Extension,
		Recursive:   libRecursive || cfg.Library.Recursive,
		Override:    libOutDir == "" && cfg.Library.Override,
		OutDir:      libOutDir,
		Parallelism: cfg.Library.Parallelism,
	}
	if opts.OutDir == "" {
		opts.OutDir = cfg.Library.OutDir
	}
	if libParallelism > 0 {
		opts.Parallelism = libParallelism
	}

	lib := library.New(libName, include, opts)
	for _, dir := range libDirs {
		if err := lib.AddDir(ctx, dir); err != nil {
			return err
		}
	}
	written, err := lib.RewriteFiles()
	if err != nil {
		return err
	}
	if err := lib.GenerateInclude(); err != nil {
		return err
	}

	logger.Info("Library built",
		zap.String("name", libName),
		zap.Int("files", len(lib.Files())),
		zap.Int("rewritten", written),
		zap.Int("relations", len(lib.RelationNames())),
		zap.String("include", include))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%d files scanned, %d written, %d relations\n", len(lib.Files()), written, len(lib.RelationNames()))
	fmt.Fprintf(out, "include file: %s\n", include)
	fmt.Fprintln(out, "check the .init lines in the generated file: optional parts of included components may have been copied too")
	return nil
}
