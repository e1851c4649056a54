package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/rs/zerolog"
)

// ZerologHandler is a slog.Handler that writes through a zerolog.Logger.
type ZerologHandler struct {
	logger zerolog.Logger
	attrs  []scopedAttr
	groups []string
}

// scopedAttr remembers the groups open when the attribute was added.
type scopedAttr struct {
	groups []string
	attr   slog.Attr
}

// NewZerologHandler wraps logger.
func NewZerologHandler(logger zerolog.Logger) *ZerologHandler {
	return &ZerologHandler{logger: logger}
}

// Enabled reports whether the zerolog level admits level.
func (h *ZerologHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.logger.GetLevel() <= toZerolog(level)
}

// Handle writes one record.
func (h *ZerologHandler) Handle(_ context.Context, r slog.Record) error {
	evt := h.logger.WithLevel(toZerolog(r.Level))
	if evt == nil {
		return nil
	}

	fields := make(map[string]any, len(h.attrs)+r.NumAttrs())
	for _, sa := range h.attrs {
		addAttr(scope(fields, sa.groups), sa.attr)
	}
	if r.NumAttrs() > 0 {
		target := scope(fields, h.groups)
		r.Attrs(func(a slog.Attr) bool {
			addAttr(target, a)
			return true
		})
	}

	evt.Fields(fields).Msg(r.Message)
	return nil
}

// WithAttrs returns a handler carrying attrs.
func (h *ZerologHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append([]scopedAttr{}, h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, scopedAttr{groups: h.groups, attr: a})
	}
	return &clone
}

// WithGroup nests subsequent attributes under name.
func (h *ZerologHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)
	return &clone
}

// scope returns the nested map for groups, creating it as needed.
func scope(fields map[string]any, groups []string) map[string]any {
	for _, g := range groups {
		next, ok := fields[g].(map[string]any)
		if !ok {
			next = map[string]any{}
			fields[g] = next
		}
		fields = next
	}
	return fields
}

func addAttr(fields map[string]any, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		group := a.Value.Group()
		if len(group) == 0 {
			return
		}
		target := fields
		if a.Key != "" {
			target = make(map[string]any, len(group))
			fields[a.Key] = target
		}
		for _, ga := range group {
			addAttr(target, ga)
		}
	case slog.KindDuration:
		fields[a.Key] = a.Value.Duration().String()
	case slog.KindTime:
		fields[a.Key] = a.Value.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok {
			fields[a.Key] = err.Error()
			return
		}
		fields[a.Key] = a.Value.Any()
	default:
		fields[a.Key] = a.Value.Any()
	}
}
