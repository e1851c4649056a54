package calque

import (
	"context"
	"log/slog"
)

// LogInfo logs at info level through the context logger, appending the
// correlation ids found in ctx.
//
//	calque.LogInfo(ctx, "cache hit", "similarity", 0.97)
func LogInfo(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelInfo, msg, args)
}

// LogDebug logs at debug level.
func LogDebug(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelDebug, msg, args)
}

// LogWarn logs at warn level.
func LogWarn(ctx context.Context, msg string, args ...any) {
	logAt(ctx, slog.LevelWarn, msg, args)
}

// LogError logs at error level. A non-nil err is added under "error".
func LogError(ctx context.Context, msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err)
	}
	logAt(ctx, slog.LevelError, msg, args)
}

// LogWith returns the context logger enriched with the correlation ids and args.
func LogWith(ctx context.Context, args ...any) *slog.Logger {
	return Logger(ctx).With(contextFields(ctx, args)...)
}

func logAt(ctx context.Context, level slog.Level, msg string, args []any) {
	logger := Logger(ctx)
	if !logger.Enabled(ctx, level) {
		return
	}
	logger.Log(ctx, level, msg, contextFields(ctx, args)...)
}

func contextFields(ctx context.Context, args []any) []any {
	if id := TraceID(ctx); id != "" {
		args = append(args, "trace_id", id)
	}
	if id := RequestID(ctx); id != "" {
		args = append(args, "request_id", id)
	}
	if id := SessionID(ctx); id != "" {
		args = append(args, "session_id", id)
	}
	return args
}
