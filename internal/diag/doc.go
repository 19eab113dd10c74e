// Package diag defines the diagnostic model shared by every phase of the
// front-end: the crate loader, name resolution, and type collection.
//
// # Data model
//
// Diagnostic is the central record:
//
//   - Severity – Info, Warning, Error or Fatal (severity.go).
//   - Code – compact numeric identifier (codes.go) with a stable string form.
//   - Message – human oriented text; keep it short and actionable.
//   - Primary – the source.Span pointing at the issue.
//   - Notes – optional secondary spans ("previously declared here").
//
// # Emitting diagnostics
//
// Phases report through a Reporter and never store diagnostics themselves.
// ReportError / ReportFatal return a ReportBuilder so that notes can be chained
// before Emit. BagReporter collects into a Bag; the Bag is safe for concurrent
// use because the collector may process independent items in parallel.
//
// Errors are recoverable: the phase continues with a best-effort value so that
// independent problems are all surfaced in one run. Fatal diagnostics mark the
// point where the current compilation is aborted; the phase that emits one
// also returns a Go error to its caller.
//
// Rendering lives in internal/diagfmt.
package diag
