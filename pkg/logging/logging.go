// Package logging builds slog loggers from configuration.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Redacted replaces the value of sensitive attributes.
const Redacted = "[REDACTED]"

// DefaultRedactKeys are attribute keys whose values are never written.
var DefaultRedactKeys = []string{"password", "secret_key", "access_key", "api_key", "authorization"}

// New creates a logger writing to stdout.
func New(cfg *Config) *slog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter creates a text or JSON logger writing to w. Attributes named
// in DefaultRedactKeys or cfg.Redact are masked, and a non-empty
// cfg.Service is attached to every record.
func NewWithWriter(cfg *Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:       cfg.Level.ToSlogLevel(),
		AddSource:   cfg.AddSource,
		ReplaceAttr: redactor(slices.Concat(DefaultRedactKeys, cfg.Redact)),
	}

	var handler slog.Handler = slog.NewTextHandler(w, opts)
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

func redactor(keys []string) func([]string, slog.Attr) slog.Attr {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := set[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, Redacted)
		}
		return a
	}
}

// Level is a severity name accepted by slog: debug, info, warn or error,
// optionally with an offset such as "warn+2".
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

func (l Level) parse() (slog.Level, error) {
	var lv slog.Level
	err := lv.UnmarshalText([]byte(l))
	return lv, err
}

// Validate reports whether slog understands the level.
func (l Level) Validate() error {
	if _, err := l.parse(); err != nil {
		return fmt.Errorf("invalid log level: %s", l)
	}
	return nil
}

// ToSlogLevel converts the level. Unknown levels become info.
func (l Level) ToSlogLevel() slog.Level {
	lv, err := l.parse()
	if err != nil {
		return slog.LevelInfo
	}
	return lv
}

// Format selects the handler.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

func (f Format) Validate() error {
	if f != FormatText && f != FormatJSON {
		return fmt.Errorf("invalid log format: %s (must be text or json)", f)
	}
	return nil
}
