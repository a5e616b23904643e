package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"strings"
)

// newHandler builds the slog handler for the requested sink and level.
func newHandler(opts Options) (slog.Handler, error) {
	hopts := &slog.HandlerOptions{Level: opts.Level}

	switch opts.Sink {
	case SinkStderr:
		return slog.NewTextHandler(os.Stderr, hopts), nil
	case SinkNone:
		return slog.NewTextHandler(io.Discard, hopts), nil
	case SinkFile:
		f, err := os.OpenFile(opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		return slog.NewTextHandler(f, hopts), nil
	case SinkSyslog:
		w, err := syslog.New(syslog.LOG_AUTHPRIV|syslog.LOG_INFO, "doormand")
		if err != nil {
			return nil, fmt.Errorf("failed to connect to syslog: %w", err)
		}
		return &syslogHandler{w: w, level: opts.Level}, nil
	default:
		return nil, fmt.Errorf("unknown log sink %d", opts.Sink)
	}
}

// syslogHandler routes records to the system log, mapping slog levels to
// syslog severities.
type syslogHandler struct {
	w     *syslog.Writer
	level slog.Level
	attrs []slog.Attr
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *syslogHandler) Handle(_ context.Context, rec slog.Record) error {
	var sb strings.Builder
	sb.WriteString(rec.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&sb, " %s=%v", a.Key, a.Value)
		return true
	})

	msg := sb.String()
	switch {
	case rec.Level >= slog.LevelError:
		return h.w.Err(msg)
	case rec.Level >= slog.LevelWarn:
		return h.w.Warning(msg)
	case rec.Level >= slog.LevelInfo:
		return h.w.Info(msg)
	default:
		return h.w.Debug(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &syslogHandler{w: h.w, level: h.level, attrs: merged}
}

func (h *syslogHandler) WithGroup(_ string) slog.Handler {
	// Groups are flattened into the single syslog line.
	return h
}
