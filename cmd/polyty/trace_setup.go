package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"polyty/internal/config"
	"polyty/internal/trace"
)

// setupTracing reads the trace flags, falling back to the manifest's
// [trace] section, and attaches a tracer to the command context. The
// returned cleanup flushes and closes it.
func setupTracing(cmd *cobra.Command, manifest *config.Manifest) (func(), error) {
	flags := cmd.Root().PersistentFlags()

	traceOutput, err := flags.GetString("trace")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace flag: %w", err)
	}
	levelStr, err := flags.GetString("trace-level")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-level flag: %w", err)
	}
	formatStr, err := flags.GetString("trace-format")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-format flag: %w", err)
	}
	modeStr, err := flags.GetString("trace-mode")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-mode flag: %w", err)
	}
	ringSize, err := flags.GetInt("trace-ring-size")
	if err != nil {
		return nil, fmt.Errorf("failed to get trace-ring-size flag: %w", err)
	}
	if manifest != nil {
		if !flags.Changed("trace-level") && manifest.Config.Trace.Level != "" {
			levelStr = manifest.Config.Trace.Level
		}
		if !flags.Changed("trace") && manifest.Config.Trace.Output != "" {
			traceOutput = manifest.Config.Trace.Output
		}
	}

	level, err := trace.ParseLevel(levelStr)
	if err != nil {
		return nil, err
	}
	// an output without a level means "trace phases there"
	if level == trace.LevelOff && traceOutput != "" && flags.Changed("trace") {
		level = trace.LevelPhase
	}
	if level == trace.LevelOff {
		cmd.SetContext(trace.WithTracer(cmd.Context(), trace.Nop))
		return func() {}, nil
	}
	format, err := trace.ParseFormat(formatStr)
	if err != nil {
		return nil, err
	}

	var ring bool
	switch modeStr {
	case "", "stream":
	case "ring":
		ring = true
	default:
		return nil, fmt.Errorf("invalid trace mode: %q (expected: stream|ring)", modeStr)
	}

	tracer, err := trace.New(trace.Config{Level: level, Format: format, OutputPath: traceOutput, Ring: ring, RingSize: ringSize})
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	cmd.SetContext(trace.WithTracer(cmd.Context(), tracer))

	return func() {
		// кольцо пишем только на выходе
		if rt, ok := tracer.(*trace.RingTracer); ok {
			if err := dumpRing(rt, traceOutput, format); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "trace: dump error: %v\n", err)
			}
		}
		if err := tracer.Flush(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: flush error: %v\n", err)
		}
		if err := tracer.Close(); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "trace: close error: %v\n", err)
		}
	}, nil
}

func dumpRing(rt *trace.RingTracer, output string, format trace.Format) error {
	if output == "" || output == "-" {
		return rt.Dump(os.Stderr, format)
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := rt.Dump(f, format); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
