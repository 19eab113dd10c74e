package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"polyty/internal/trace"
)

// debounce collapses the burst of events an editor produces on save.
const debounce = 150 * time.Millisecond

// watchCrate runs the pipeline once, then again whenever the crate file or
// one of the extern metadata files changes, until interrupted.
func watchCrate(cmd *cobra.Command, s *runSettings) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer w.Close()

	// следим за каталогами: редакторы сохраняют через rename
	watched := watchedFiles(s)
	dirs := make(map[string]bool)
	for path := range watched {
		dirs[filepath.Dir(path)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	if tracer := trace.FromContext(ctx); tracer.Enabled() {
		hb := trace.StartHeartbeat(tracer, 5*time.Second)
		defer hb.Stop()
	}

	if err := rerun(ctx, cmd, s); err != nil {
		return err
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] {
				continue
			}
			timer.Reset(debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watch: %v\n", err)
		case <-timer.C:
			if err := rerun(ctx, cmd, s); err != nil {
				return err
			}
		}
	}
}

func rerun(ctx context.Context, cmd *cobra.Command, s *runSettings) error {
	if isTerminal(os.Stdout) {
		fmt.Fprint(cmd.OutOrStdout(), "\x1b[H\x1b[2J")
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "[%s] collecting %s\n", time.Now().Format(time.TimeOnly), s.path)
	return collectOnce(ctx, cmd, s)
}

// watchedFiles returns absolute paths of the crate file and its externs.
func watchedFiles(s *runSettings) map[string]bool {
	out := make(map[string]bool, len(s.opts.Externs)+1)
	add := func(p string) {
		if abs, err := filepath.Abs(p); err == nil {
			out[abs] = true
		}
	}
	add(s.path)
	for _, e := range s.opts.Externs {
		add(e.Path)
	}
	return out
}
