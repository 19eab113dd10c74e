package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"polyty/internal/config"
	"polyty/internal/diagfmt"
	"polyty/internal/driver"
)

var collectCmd = &cobra.Command{
	Use:   "collect [crate.yaml]",
	Short: "Collect and print the type scheme of every item",
	Long: `Collect loads the crate description, resolves it against extern crate metadata
and prints the type scheme of every local item. Without an argument the crate
named by the nearest polyty.toml is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().IntP("jobs", "j", 0, "number of items converted in parallel (0 = sequential)")
	collectCmd.Flags().StringArray("extern", nil, "extern crate metadata as name=path (repeatable)")
	collectCmd.Flags().String("emit-metadata", "", "write crate metadata to this file")
	collectCmd.Flags().String("format", "pretty", "diagnostics format (pretty|json)")
	collectCmd.Flags().BoolP("quiet", "q", false, "do not print schemes")
	collectCmd.Flags().Bool("watch", false, "re-run when the crate or its externs change")
	collectCmd.Flags().Bool("notes", false, "show notes of every diagnostic")
}

// runSettings is the merged view of flags and manifest for one command.
type runSettings struct {
	path     string
	opts     driver.Options
	format   string
	quiet    bool
	notes    bool
	color    bool
	timings  bool
	manifest *config.Manifest
}

func runCollect(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	if s.opts.EmitMetadata, err = cmd.Flags().GetString("emit-metadata"); err != nil {
		return fmt.Errorf("failed to get emit-metadata flag: %w", err)
	}
	s.quiet, err = cmd.Flags().GetBool("quiet")
	if err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	watch, err := cmd.Flags().GetBool("watch")
	if err != nil {
		return fmt.Errorf("failed to get watch flag: %w", err)
	}

	cleanup, err := setupTracing(cmd, s.manifest)
	if err != nil {
		return err
	}
	defer cleanup()

	if watch {
		return watchCrate(cmd, s)
	}
	r := driver.Collect(cmd.Context(), s.path, s.opts)
	return report(cmd, s, r)
}

// loadSettings merges the manifest (if any) with flags; flags win.
func loadSettings(cmd *cobra.Command, args []string) (*runSettings, error) {
	s := &runSettings{}
	cfg := config.Default()

	if len(args) == 1 {
		s.path = args[0]
		// манифест рядом с крейтом тоже подхватываем, но он не обязателен
		m, ok, err := config.Discover(filepath.Dir(args[0]))
		if err != nil {
			return nil, err
		}
		if ok {
			s.manifest = m
			cfg = m.Config
			s.opts.Externs = m.Externs()
		}
	} else {
		m, ok, err := config.Discover(".")
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("no crate given and no %s found", config.FileName)
		}
		s.manifest = m
		cfg = m.Config
		s.path = m.CratePath()
		s.opts.Externs = m.Externs()
	}
	s.opts.Jobs = cfg.Collect.Jobs
	s.opts.MaxDiagnostics = cfg.Collect.MaxDiagnostics

	flags := cmd.Flags()
	root := cmd.Root().PersistentFlags()
	if flags.Changed("jobs") {
		jobs, err := flags.GetInt("jobs")
		if err != nil {
			return nil, fmt.Errorf("failed to get jobs flag: %w", err)
		}
		if jobs < 0 {
			return nil, fmt.Errorf("--jobs must not be negative")
		}
		s.opts.Jobs = jobs
	}
	if root.Changed("max-diagnostics") {
		maxDiag, err := root.GetInt("max-diagnostics")
		if err != nil {
			return nil, fmt.Errorf("failed to get max-diagnostics flag: %w", err)
		}
		s.opts.MaxDiagnostics = maxDiag
	}
	if flags.Lookup("extern") != nil {
		externs, err := flags.GetStringArray("extern")
		if err != nil {
			return nil, fmt.Errorf("failed to get extern flag: %w", err)
		}
		parsed, err := parseExterns(externs)
		if err != nil {
			return nil, err
		}
		s.opts.Externs = mergeExterns(s.opts.Externs, parsed)
	}

	var err error
	if s.timings, err = root.GetBool("timings"); err != nil {
		return nil, fmt.Errorf("failed to get timings flag: %w", err)
	}
	s.opts.Timings = s.timings
	colorMode, err := root.GetString("color")
	if err != nil {
		return nil, fmt.Errorf("failed to get color flag: %w", err)
	}
	s.color = diagfmt.ColorEnabled(colorMode, os.Stderr)
	// схемы идут в stdout, раскраска для него решается отдельно
	color.NoColor = !diagfmt.ColorEnabled(colorMode, os.Stdout)

	if flags.Lookup("format") != nil {
		if s.format, err = flags.GetString("format"); err != nil {
			return nil, fmt.Errorf("failed to get format flag: %w", err)
		}
	}
	switch s.format {
	case "", "pretty", "json":
	default:
		return nil, fmt.Errorf("unknown format %q (expected: pretty|json)", s.format)
	}
	if flags.Lookup("notes") != nil {
		if s.notes, err = flags.GetBool("notes"); err != nil {
			return nil, fmt.Errorf("failed to get notes flag: %w", err)
		}
	}
	return s, nil
}

// parseExterns parses name=path pairs; the path may carry a version
// constraint after '@', e.g. core=core.meta@^1.0.
func parseExterns(values []string) ([]config.ExternCrate, error) {
	out := make([]config.ExternCrate, 0, len(values))
	for _, v := range values {
		name, rest, ok := strings.Cut(v, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || strings.TrimSpace(rest) == "" {
			return nil, fmt.Errorf("invalid --extern %q (expected name=path)", v)
		}
		e := config.ExternCrate{Name: name, Path: strings.TrimSpace(rest)}
		if path, constraint, ok := strings.Cut(e.Path, "@"); ok {
			e.Path, e.Version = path, constraint
		}
		out = append(out, e)
	}
	return out, nil
}

// mergeExterns replaces manifest entries of the same name and appends the rest.
func mergeExterns(base, extra []config.ExternCrate) []config.ExternCrate {
	out := append([]config.ExternCrate(nil), base...)
	for _, e := range extra {
		replaced := false
		for i := range out {
			if out[i].Name == e.Name {
				out[i] = e
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, e)
		}
	}
	return out
}

// report prints diagnostics to stderr and schemes to stdout.
func report(cmd *cobra.Command, s *runSettings, r *driver.Result) error {
	stderr := cmd.ErrOrStderr()
	if r.Bag.Len() > 0 {
		if err := printDiagnostics(stderr, s, r); err != nil {
			return err
		}
	}
	if !s.quiet {
		printSchemes(cmd.OutOrStdout(), r)
	}
	if s.timings {
		fmt.Fprint(stderr, r.Timing.Summary())
	}
	if r.Err != nil && !driver.IsFatal(r.Err) && r.Bag.Len() == 0 {
		return r.Err
	}
	if r.Failed() {
		return errFailed
	}
	return nil
}

func printDiagnostics(w io.Writer, s *runSettings, r *driver.Result) error {
	baseDir, _ := os.Getwd()
	if s.format == "json" {
		return diagfmt.JSON(w, r.Bag, r.Files, diagfmt.JSONOpts{
			IncludePositions: true,
			IncludeNotes:     true,
			PathMode:         diagfmt.PathModeRelative,
			BaseDir:          baseDir,
		})
	}
	diagfmt.Pretty(w, r.Bag, r.Files, diagfmt.PrettyOpts{
		Color:     s.color,
		Context:   1,
		PathMode:  diagfmt.PathModeAuto,
		BaseDir:   baseDir,
		ShowNotes: s.notes,
	})
	return nil
}

var (
	kindColor = color.New(color.FgCyan)
	nameColor = color.New(color.Bold)
)

func printSchemes(w io.Writer, r *driver.Result) {
	for _, sc := range r.Schemes() {
		fmt.Fprintf(w, "%s %s%s: %s\n", kindColor.Sprint(sc.Kind), nameColor.Sprint(sc.Name), sc.Generics, sc.Type)
	}
}

// collectOnce is the body shared by a single run and every watch iteration.
func collectOnce(ctx context.Context, cmd *cobra.Command, s *runSettings) error {
	r := driver.Collect(ctx, s.path, s.opts)
	err := report(cmd, s, r)
	if errors.Is(err, errFailed) {
		return nil
	}
	return err
}
