package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"polyty/internal/driver"
)

var emitCmd = &cobra.Command{
	Use:   "emit [crate.yaml] -o out.meta",
	Short: "Collect a crate and write its metadata for dependent crates",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEmit,
}

func init() {
	emitCmd.Flags().StringP("output", "o", "", "metadata file to write (default: <crate>.meta)")
	emitCmd.Flags().IntP("jobs", "j", 0, "number of items converted in parallel (0 = sequential)")
	emitCmd.Flags().StringArray("extern", nil, "extern crate metadata as name=path (repeatable)")
}

func runEmit(cmd *cobra.Command, args []string) error {
	s, err := loadSettings(cmd, args)
	if err != nil {
		return err
	}
	out, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	if out == "" {
		out = strings.TrimSuffix(strings.TrimSuffix(s.path, ".yaml"), ".yml") + ".meta"
	}
	s.opts.EmitMetadata = out
	s.quiet = true

	cleanup, err := setupTracing(cmd, s.manifest)
	if err != nil {
		return err
	}
	defer cleanup()

	r := driver.Collect(cmd.Context(), s.path, s.opts)
	if err := report(cmd, s, r); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s\n", out)
	return nil
}
