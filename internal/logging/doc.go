// Package logging builds the slog loggers used throughout gleaner.
//
// Output defaults to a compact console format (timestamp, level, component,
// message, key=value attrs) with an optional JSON handler for machine
// consumption. Loggers write to stdout plus the configured log file, and
// CleanupOldLogs prunes files past the retention window.
package logging
