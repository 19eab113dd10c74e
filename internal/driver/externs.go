package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/sync/errgroup"

	"polyty/internal/config"
	"polyty/internal/diag"
	"polyty/internal/metadata"
	"polyty/internal/source"
	"polyty/internal/trace"
)

// loadExterns reads every metadata file concurrently, then registers the
// crates in the listed order: a crate must come after the crates it
// depends on.
func (p *pipeline) loadExterns(ctx context.Context, externs []config.ExternCrate) error {
	if len(externs) == 0 {
		return nil
	}
	blobs := make([][]byte, len(externs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.opts.Jobs, 1))
	for i, e := range externs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(e.Path)
			if err != nil {
				return p.metaError(e, err)
			}
			blobs[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, e := range externs {
		constraint := e.Version
		if constraint == "" {
			constraint = metadata.DefaultConstraint
		}
		c, err := p.r.Externs.Load(e.Name, bytes.NewReader(blobs[i]), constraint)
		if err != nil {
			return p.metaError(e, fmt.Errorf("%s: %w", e.Path, err))
		}
		trace.Point(ctx, trace.ScopePass, "extern", fmt.Sprintf("%s #%d (%d schemes)", c.Name(), c.Num(), c.Len()))
	}
	return nil
}

// metaError reports a metadata failure as fatal with a code for its cause.
func (p *pipeline) metaError(e config.ExternCrate, err error) error {
	code := diag.IOMetadata
	switch {
	case errors.Is(err, metadata.ErrVersion):
		code = diag.MetaVersion
	case errors.Is(err, metadata.ErrCorrupt):
		code = diag.MetaCorrupt
	}
	diag.ReportFatal(p.rep, code, source.NoSpan, "extern crate `%s`: %v", e.Name, err).Emit()
	return fmt.Errorf("extern crate %s: %w", e.Name, err)
}
