package ledger

import (
	"context"
	"errors"
	"log/slog"
)

// FallbackRecorder is notified whenever a scoped query replaces a privileged one.
type FallbackRecorder interface {
	RecordFallback(source string)
}

// FetchFunc loads one adapter's rows.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// PrivilegedThenScopedFetch runs the privileged bulk accessor first and falls
// back to the visibility-scoped query only when the accessor reports
// ErrPrivilegedUnavailable. The scoped query may under-report rows, so every
// fallback is logged at warn level and recorded.
type PrivilegedThenScopedFetch[T any] struct {
	Source     string
	Privileged FetchFunc[T]
	Scoped     FetchFunc[T]
	Logger     *slog.Logger
	Recorder   FallbackRecorder
}

// Fetch executes the strategy.
func (f PrivilegedThenScopedFetch[T]) Fetch(ctx context.Context, attrs ...slog.Attr) ([]T, error) {
	if f.Privileged != nil {
		rows, err := f.Privileged(ctx)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, ErrPrivilegedUnavailable) || f.Scoped == nil {
			return nil, err
		}
		logger := f.Logger
		if logger == nil {
			logger = slog.Default()
		}
		args := make([]any, 0, len(attrs)+2)
		args = append(args, slog.String("source", f.Source), slog.Any("error", err))
		for _, a := range attrs {
			args = append(args, a)
		}
		logger.WarnContext(ctx, "privileged accessor unavailable, using scoped query; ledger may under-report", args...)
		if f.Recorder != nil {
			f.Recorder.RecordFallback(f.Source)
		}
	}
	if f.Scoped == nil {
		return nil, ErrPrivilegedUnavailable
	}
	return f.Scoped(ctx)
}
