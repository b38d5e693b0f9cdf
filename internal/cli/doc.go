// Package cli holds the wiring shared by the dcpkit command-line tools:
// lazy configuration loading, logger and digest cache construction, exit
// status handling, and table rendering for interactive terminals.
//
// Commands stay thin. Anything that touches packages belongs in the
// internal libraries; this package only adapts them to a terminal.
package cli
