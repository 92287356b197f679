package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// PrettyHandler writes human-friendly, single-line records:
//
//	15:04:05.000 INFO  resolution finished entries=12 session=...
type PrettyHandler struct {
	opts   slog.HandlerOptions
	prefix string // group prefix for attribute keys
	attrs  []slog.Attr

	mu *sync.Mutex
	w  io.Writer
}

func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	h := &PrettyHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.WriteString(color.New(color.Faint).Sprint(r.Time.Format("15:04:05.000")))
	sb.WriteByte(' ')
	sb.WriteString(levelColor(r.Level).Sprintf("%-5s", r.Level.String()))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.prefix, a)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, sb.String())
	return err
}

func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	nh.attrs = append(nh.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		nh.attrs = append(nh.attrs, a)
	}
	return &nh
}

func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}

func writeAttr(sb *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			writeAttr(sb, prefix+a.Key+".", ga)
		}
		return
	}

	val := a.Value.String()
	if strings.ContainsAny(val, " \t\"=") {
		val = fmt.Sprintf("%q", val)
	}
	sb.WriteByte(' ')
	sb.WriteString(color.CyanString(prefix + a.Key))
	sb.WriteByte('=')
	sb.WriteString(val)
}

func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgMagenta)
	}
}
