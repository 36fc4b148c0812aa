package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

const (
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorReset  = "\033[0m"
)

// CLIHandler is a slog.Handler that writes one colored line per record.
type CLIHandler struct {
	mu     *sync.Mutex
	writer io.Writer
	level  slog.Leveler
	prefix string
	attrs  []slog.Attr
	color  bool
}

func NewCLIHandler(w io.Writer, level slog.Leveler) *CLIHandler {
	return &CLIHandler{
		mu:     &sync.Mutex{},
		writer: w,
		level:  level,
		color:  true,
	}
}

// WithoutColor disables ANSI colors, e.g. when writing to a file.
func (h *CLIHandler) WithoutColor() *CLIHandler {
	c := *h
	c.color = false
	return &c
}

func (h *CLIHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CLIHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	if h.prefix != "" {
		msg = "[" + h.prefix + "] " + msg
	}

	attrs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs = append(attrs, formatAttr(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, formatAttr(a))
		return true
	})
	if len(attrs) > 0 {
		msg = msg + ": " + strings.Join(attrs, " ")
	}

	if h.color {
		switch {
		case r.Level >= slog.LevelError:
			msg = colorRed + msg + colorReset
		case r.Level >= slog.LevelWarn:
			msg = colorYellow + msg + colorReset
		default:
			msg = colorGreen + msg + colorReset
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintln(h.writer, msg)
	return err
}

func (h *CLIHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &c
}

func (h *CLIHandler) WithGroup(name string) slog.Handler {
	c := *h
	if c.prefix != "" {
		c.prefix = c.prefix + "." + name
	} else {
		c.prefix = name
	}
	return &c
}

func formatAttr(a slog.Attr) string {
	return fmt.Sprintf("%s=%v", a.Key, a.Value.Resolve())
}

func NewCLILogger(level string) *slog.Logger {
	return slog.New(NewCLIHandler(os.Stderr, ParseLogLevel(level)))
}

func SetDefaultCLILogger(level string) {
	slog.SetDefault(NewCLILogger(level))
}

// ParseLogLevel converts a string log level to slog.Level.
// Defaults to slog.LevelInfo for unrecognized strings.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}
