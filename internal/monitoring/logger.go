// Package monitoring holds the process-wide diagnostic logger used by the
// analytics core. Warnings that must never abort a run (rejected samples,
// unmatched rule patterns, clustering retries) are reported through it.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf;
// callers may swap it via SetLogger to redirect or silence diagnostics.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger, which tests use to keep output quiet.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}
