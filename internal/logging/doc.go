// Package logging assembles the slog loggers used by the dcpkit tools and
// libraries.
//
// It owns the console and JSON handlers, level parsing, and output fan-out
// (stdout, stderr, and an optional log file under the configured log
// directory). Typed attribute helpers and the Field* keys keep structured
// output consistent: package paths, asset identifiers, and CPL identifiers
// always appear under the same keys no matter which component logs them.
//
// Library code accepts a *slog.Logger that may be nil; wrap it with
// NewComponentLogger so a nil logger degrades to NewNop.
package logging
