// Package logging configures structured slog output for amansuggest.
// The daemon writes JSON records to a size-rotated file under
// ~/.amansuggest/logs/; CLI commands log to stderr only.
package logging
