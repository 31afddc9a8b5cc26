// Package logging provides the CLI's leveled stderr logging and the
// redaction primitives that keep secret material out of it.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// level pairs a message glyph with its ANSI color.
type level struct {
	glyph string
	color string
}

var (
	levelInfo  = level{glyph: "✓", color: "\033[32m"}
	levelWarn  = level{glyph: "⚠", color: "\033[33m"}
	levelError = level{glyph: "✗", color: "\033[31m"}
	levelDebug = level{glyph: "[DEBUG]", color: "\033[36m"}
)

// Logger writes leveled, optionally colored messages. Secret payloads and
// hydrated values must be wrapped in Secret before reaching any format
// argument.
type Logger struct {
	out     io.Writer
	debug   bool
	noColor bool
}

// New creates a logger writing to stderr.
func New(debug, noColor bool) *Logger {
	return &Logger{
		out:     os.Stderr,
		debug:   debug,
		noColor: noColor,
	}
}

// WithOutput returns a copy of the logger writing to w, for tests.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	clone := *l
	clone.out = w
	return &clone
}

func (l *Logger) log(lv level, format string, args []interface{}) {
	msg := fmt.Sprintf(format, args...)
	if l.noColor {
		fmt.Fprintf(l.out, "%s %s\n", lv.glyph, msg)
		return
	}
	fmt.Fprintf(l.out, "%s%s\033[0m %s\n", lv.color, lv.glyph, msg)
}

// Info logs an informational message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(levelInfo, format, args)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(levelWarn, format, args)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(levelError, format, args)
}

// Debug logs a message only when debug mode is on.
func (l *Logger) Debug(format string, args ...interface{}) {
	if !l.debug {
		return
	}
	l.log(levelDebug, format, args)
}

// Secret represents a value that should be redacted in logs.
// Hydrated payloads and external secret values are always wrapped in Secret
// before being passed to a format call.
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}
