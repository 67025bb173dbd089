// Package progress renders sync progress as timestamped status lines on
// the console and in a persistent log file.
package progress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Levels between INFO and WARN for sync milestones
const (
	LevelProgress = slog.Level(1)
	LevelSuccess  = slog.Level(2)
)

var glyphs = map[slog.Level]string{
	slog.LevelDebug: "·",
	slog.LevelInfo:  "•",
	LevelProgress:   "→",
	LevelSuccess:    "✓",
	slog.LevelWarn:  "!",
	slog.LevelError: "✗",
}

var styles = map[slog.Level]lipgloss.Style{
	slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("#3B82F6")),
	LevelProgress:   lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")),
	LevelSuccess:    lipgloss.NewStyle().Foreground(lipgloss.Color("#22C55E")),
	slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B")),
	slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
}

// LevelName returns the label written for a level
func LevelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= LevelSuccess:
		return "SUCCESS"
	case l >= LevelProgress:
		return "PROGRESS"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}

func bucket(l slog.Level) slog.Level {
	switch {
	case l >= slog.LevelError:
		return slog.LevelError
	case l >= slog.LevelWarn:
		return slog.LevelWarn
	case l >= LevelSuccess:
		return LevelSuccess
	case l >= LevelProgress:
		return LevelProgress
	case l >= slog.LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}

// HandlerOptions configures a Handler
type HandlerOptions struct {
	// Console receives lines at or above Level, decorated with a glyph
	Console io.Writer
	Level   slog.Leveler
	Color   bool

	// File receives every line at DEBUG and above, undecorated
	File io.Writer

	// Now, when set, replaces record timestamps
	Now func() time.Time
}

// Handler is a slog.Handler producing "[HH:MM:SS] LEVEL message k=v" lines.
// Each line is written with a single Write call so the file sink never
// holds a partially buffered line.
type Handler struct {
	opts   HandlerOptions
	mu     *sync.Mutex
	prefix string // preformatted attrs from WithAttrs
	group  string
}

// NewHandler creates a Handler
func NewHandler(opts HandlerOptions) *Handler {
	if opts.Level == nil {
		opts.Level = slog.LevelInfo
	}
	return &Handler{opts: opts, mu: &sync.Mutex{}}
}

// Enabled reports whether either sink accepts the level
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	if h.opts.File != nil && level >= slog.LevelDebug {
		return true
	}
	return h.opts.Console != nil && level >= h.opts.Level.Level()
}

// Handle formats and writes a record
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time
	if h.opts.Now != nil {
		ts = h.opts.Now()
	} else if ts.IsZero() {
		ts = time.Now()
	}

	var body strings.Builder
	body.WriteString(r.Message)
	body.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&body, h.group, a)
		return true
	})

	stamp := "[" + ts.Format("15:04:05") + "]"
	level := LevelName(r.Level)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.opts.File != nil {
		line := stamp + " " + level + " " + body.String() + "\n"
		if _, err := io.WriteString(h.opts.File, line); err != nil {
			return err
		}
	}

	if h.opts.Console != nil && r.Level >= h.opts.Level.Level() {
		b := bucket(r.Level)
		tag := glyphs[b] + " " + level
		if h.opts.Color {
			tag = styles[b].Render(tag)
		}
		line := stamp + " " + tag + " " + body.String() + "\n"
		if _, err := io.WriteString(h.opts.Console, line); err != nil {
			return err
		}
	}
	return nil
}

// WithAttrs returns a handler that appends attrs to every line
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var b strings.Builder
	b.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&b, h.group, a)
	}
	c := *h
	c.prefix = b.String()
	return &c
}

// WithGroup returns a handler that qualifies later attr keys with name
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := *h
	c.group = h.group + name + "."
	return &c
}

func appendAttr(b *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		prefix := group
		if a.Key != "" {
			prefix += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			appendAttr(b, prefix, ga)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(group)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		s = v.Time().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	default:
		s = v.String()
	}

	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}
