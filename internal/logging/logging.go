// Package logging configures the structured loggers used across decompcache.
package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Format selects the log output encoding
type Format string

const (
	// TextFormat writes key=value records
	TextFormat Format = "text"
	// JSONFormat writes one JSON object per record
	JSONFormat Format = "json"
)

// levelOff is above every standard level
const levelOff = slog.Level(100)

// NewLogger creates a logger writing to w at level in the given format
func NewLogger(w io.Writer, level slog.Level, format Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	if format == JSONFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

// NewDiscardLogger creates a logger that discards all output.
// Used as the default when a component is constructed without a logger.
func NewDiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: levelOff}))
}

// LevelFromString converts a string to a slog.Level.
// Supports: debug, info, warn, error (case-insensitive).
// Returns slog.LevelInfo for unrecognized strings.
func LevelFromString(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "off", "none":
		return levelOff
	default:
		return slog.LevelInfo
	}
}

// LevelFromVerbosity picks the CLI level: quiet keeps only errors, verbose
// means debug, otherwise the configured level applies.
func LevelFromVerbosity(configured string, verbose, quiet bool) slog.Level {
	if quiet {
		return slog.LevelError
	}

	if verbose {
		return slog.LevelDebug
	}

	return LevelFromString(configured)
}

// ParseFormat converts a string to a Format, defaulting to text
func ParseFormat(s string) Format {
	if strings.EqualFold(strings.TrimSpace(s), string(JSONFormat)) {
		return JSONFormat
	}

	return TextFormat
}

// LineWriter logs each line written to it as one record.
// Used to forward child process output into the structured log.
type LineWriter struct {
	logger *slog.Logger
	level  slog.Level
	msg    string

	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLineWriter creates a LineWriter logging at level with msg
func NewLineWriter(logger *slog.Logger, level slog.Level, msg string) *LineWriter {
	return &LineWriter{
		logger: logger,
		level:  level,
		msg:    msg,
	}
}

// Write implements io.Writer
func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)

	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			// Incomplete line: keep it for the next write
			w.buf.Reset()
			w.buf.WriteString(line)
			break
		}

		w.log(strings.TrimRight(line, "\r\n"))
	}

	return len(p), nil
}

// Close flushes a trailing partial line
func (w *LineWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() > 0 {
		w.log(w.buf.String())
		w.buf.Reset()
	}

	return nil
}

func (w *LineWriter) log(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}

	w.logger.Log(context.Background(), w.level, w.msg, "line", line)
}
