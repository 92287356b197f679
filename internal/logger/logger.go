package logger

import (
	"io"
	"log/slog"
	"strings"
)

// New builds a logger writing to w. format "json" emits one JSON object
// per record; anything else uses the coloured PrettyHandler.
func New(w io.Writer, level slog.Level, format string) *slog.Logger {
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if len(groups) > 0 {
					return a
				}
				switch a.Key {
				case slog.TimeKey:
					a.Key = "timestamp"
				case slog.MessageKey:
					a.Key = "message"
				}
				return a
			},
		}))
	}
	return slog.New(NewPrettyHandler(w, &slog.HandlerOptions{Level: level}))
}

// Init installs a logger built by New as the slog default.
func Init(w io.Writer, level slog.Level, format string) *slog.Logger {
	l := New(w, level, format)
	slog.SetDefault(l)
	return l
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
