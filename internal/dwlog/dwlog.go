// Package dwlog is the bootloader tooling's leveled logger: a thin
// wrapper over charmbracelet/log that replaces the reference
// firmware's textcolor.c severity enum (DW_COLOR_INFO, DW_COLOR_ERROR,
// DW_COLOR_DEBUG, ...) with a real leveled logger, since a host CLI
// has a terminal worth coloring and a log level worth filtering,
// unlike the target's UART console.
package dwlog

import (
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the package's handle, holding the charmbracelet logger and
// the channel label callers pass at construction (the reference's
// dw_printf calls were all unqualified; this rewrite tags every line
// with the subsystem that emitted it, the way a multi-component CLI
// should).
type Logger struct {
	l *log.Logger
}

// New builds a Logger writing to stderr, named by component (e.g.
// "link", "bootloader", "flash"), at the given level.
func New(component string, level log.Level) *Logger {
	var l = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          component,
	})
	l.SetLevel(level)
	return &Logger{l: l}
}

// Info corresponds to the reference's DW_COLOR_INFO severity.
func (d *Logger) Info(msg string, kv ...any) { d.l.Info(msg, kv...) }

// Error corresponds to DW_COLOR_ERROR.
func (d *Logger) Error(msg string, kv ...any) { d.l.Error(msg, kv...) }

// Debug corresponds to DW_COLOR_DEBUG.
func (d *Logger) Debug(msg string, kv ...any) { d.l.Debug(msg, kv...) }

// Warn has no reference-firmware analog (DW_COLOR had no warning
// severity) but is a standard rung on any leveled logger's ladder.
func (d *Logger) Warn(msg string, kv ...any) { d.l.Warn(msg, kv...) }

// With returns a child Logger that always includes the given key-value
// pairs, e.g. a device id or a session number.
func (d *Logger) With(kv ...any) *Logger {
	return &Logger{l: d.l.With(kv...)}
}

// ParseLevel maps a level name (as accepted by the --log-level CLI
// flag) to a charmbracelet/log.Level, defaulting to InfoLevel for an
// unrecognized name rather than erroring, matching the reference's
// "if unset, silently act as though text_color_level were 0" posture.
func ParseLevel(name string) log.Level {
	switch name {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}
