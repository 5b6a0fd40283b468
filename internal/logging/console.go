package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	2024-05-01T10:00:00Z INFO ripper · Track 03 · Trial 2: message key=value
//
// The component, track and trial attributes form the subject prefix instead of
// being repeated as key=value pairs.
type consoleHandler struct {
	mu         *sync.Mutex
	out        io.Writer
	level      slog.Leveler
	withSource bool
	prefix     string
	preset     []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(out io.Writer, level slog.Leveler, withSource bool) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), out: out, level: level, withSource: withSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = collect(fields, h.prefix, attr)
		return true
	})

	var subject subjectParts
	rest := fields[:0]
	for _, f := range fields {
		if !subject.take(f) {
			rest = append(rest, f)
		}
	}

	when := record.Time
	if when.IsZero() {
		when = time.Now()
	}

	var line strings.Builder
	line.WriteString(when.UTC().Format(time.RFC3339))
	line.WriteByte(' ')
	line.WriteString(levelLabel(record.Level))
	line.WriteByte(' ')
	if s := subject.String(); s != "" {
		line.WriteString(s)
		line.WriteString(": ")
	}
	if msg := strings.TrimSpace(record.Message); msg != "" {
		line.WriteString(msg)
	} else {
		line.WriteString("(no message)")
	}
	if h.withSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&line, " [%s:%d]", filepath.Base(src.File), src.Line)
		}
	}
	for _, f := range rest {
		line.WriteByte(' ')
		line.WriteString(f.key)
		line.WriteByte('=')
		line.WriteString(quoteIfNeeded(valueText(f.value)))
	}
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, line.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	next := *h
	next.preset = append([]field(nil), h.preset...)
	for _, attr := range attrs {
		next.preset = collect(next.preset, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = joinKey(h.prefix, name)
	return &next
}

// collect flattens groups into dotted keys.
func collect(dst []field, prefix string, attr slog.Attr) []field {
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	value := attr.Value.Resolve()
	if value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = joinKey(prefix, attr.Key)
		}
		for _, member := range value.Group() {
			dst = collect(dst, inner, member)
		}
		return dst
	}
	return append(dst, field{key: joinKey(prefix, attr.Key), value: value})
}

func joinKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

// subjectParts holds the attributes promoted into the line prefix. The first
// component wins so outer loggers keep their name; track and trial take the
// innermost value.
type subjectParts struct {
	component string
	track     string
	trial     string
}

func (s *subjectParts) take(f field) bool {
	switch f.key {
	case FieldComponent:
		if s.component == "" {
			s.component = strings.TrimSpace(valueText(f.value))
		}
	case FieldTrack:
		s.track = strings.TrimSpace(valueText(f.value))
	case FieldTrial:
		s.trial = strings.TrimSpace(valueText(f.value))
	default:
		return false
	}
	return true
}

// String renders "component · Track 03 · Trial 2". Track 0 is the whole-disc
// image.
func (s subjectParts) String() string {
	parts := make([]string, 0, 3)
	if s.component != "" {
		parts = append(parts, s.component)
	}
	switch s.track {
	case "":
	case "0":
		parts = append(parts, "Image")
	default:
		if n, err := strconv.Atoi(s.track); err == nil {
			parts = append(parts, fmt.Sprintf("Track %02d", n))
		} else {
			parts = append(parts, "Track "+s.track)
		}
	}
	if s.trial != "" {
		parts = append(parts, "Trial "+s.trial)
	}
	return strings.Join(parts, " · ")
}

func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
