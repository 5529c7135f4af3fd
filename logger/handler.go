package logger

import (
	"context"
	"log/slog"
)

// ContextHandler decorates a slog.Handler with record enrichment: fixed
// common fields and any request-scoped values found in the context are
// prepended to every record before it reaches the inner handler.
type ContextHandler struct {
	inner        slog.Handler
	commonFields []slog.Attr
}

var _ slog.Handler = (*ContextHandler)(nil)

// NewContextHandler wraps inner. commonFields are attached to every record,
// typically service-level constants like the environment name.
func NewContextHandler(inner slog.Handler, commonFields ...slog.Attr) *ContextHandler {
	return &ContextHandler{inner: inner, commonFields: commonFields}
}

// Enabled delegates the level decision to the inner handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle rebuilds the record as common fields, then context fields, then the
// record's own attributes, so explicit attributes stay last and win for
// text readers.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	out.AddAttrs(h.commonFields...)
	out.AddAttrs(contextAttrs(ctx)...)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(a)
		return true
	})
	return h.inner.Handle(ctx, out)
}

// contextAttrs collects the known request-scoped keys present in ctx,
// skipping empty values.
func contextAttrs(ctx context.Context) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(allContextKeys))
	for _, key := range allContextKeys {
		if s, ok := ctx.Value(key).(string); ok && s != "" {
			attrs = append(attrs, slog.String(string(key), s))
		}
	}
	return attrs
}

// WithAttrs pushes attrs down to the inner handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), commonFields: h.commonFields}
}

// WithGroup pushes the group down to the inner handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), commonFields: h.commonFields}
}

// Unwrap exposes the inner handler for chains that need to inspect it.
func (h *ContextHandler) Unwrap() slog.Handler {
	return h.inner
}
