package calque

import (
	"context"
	"fmt"
	"log/slog"
)

// Error is an error that remembers the request it happened in.
//
// The trace and request ids are captured from the context at creation so the
// error can be logged later, from any goroutine, with the right correlation.
//
//	return calque.WrapErr(ctx, err, "vector search failed").
//		Tag(slog.String("collection", name))
type Error struct {
	msg       string
	cause     error
	traceID   string
	requestID string
	attrs     []slog.Attr
}

// WrapErr wraps err with msg and the correlation ids found in ctx.
func WrapErr(ctx context.Context, err error, msg string) *Error {
	return &Error{
		msg:       msg,
		cause:     err,
		traceID:   TraceID(ctx),
		requestID: RequestID(ctx),
	}
}

// NewErr creates an error without a cause.
func NewErr(ctx context.Context, msg string) *Error {
	return WrapErr(ctx, nil, msg)
}

// Tag attaches a structured attribute.
func (e *Error) Tag(attr slog.Attr) *Error {
	e.attrs = append(e.attrs, attr)
	return e
}

// Tags attaches several structured attributes.
func (e *Error) Tags(attrs ...slog.Attr) *Error {
	e.attrs = append(e.attrs, attrs...)
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Message returns the message without the cause.
func (e *Error) Message() string { return e.msg }

// TraceID returns the trace id captured at creation.
func (e *Error) TraceID() string { return e.traceID }

// RequestID returns the request id captured at creation.
func (e *Error) RequestID() string { return e.requestID }

// Attrs returns the attached attributes.
func (e *Error) Attrs() []slog.Attr { return e.attrs }

// LogAttrs returns everything worth logging about the error.
func (e *Error) LogAttrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, len(e.attrs)+3)
	if e.cause != nil {
		attrs = append(attrs, slog.Any("error", e.cause))
	}
	if e.traceID != "" {
		attrs = append(attrs, slog.String("trace_id", e.traceID))
	}
	if e.requestID != "" {
		attrs = append(attrs, slog.String("request_id", e.requestID))
	}
	return append(attrs, e.attrs...)
}

// Log writes the error at error level.
func (e *Error) Log(ctx context.Context) {
	e.LogWithLevel(ctx, slog.LevelError)
}

// LogWithLevel writes the error at the given level. Correlation ids come from
// the error itself, not from ctx.
func (e *Error) LogWithLevel(ctx context.Context, level slog.Level) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.LogAttrs(ctx, level, e.msg, e.LogAttrs()...)
}

// Is matches another *Error with the same message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e.msg == t.msg
}
