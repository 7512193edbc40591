package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey struct{}

// NewContextWithLogger returns a copy of ctx carrying log.
func NewContextWithLogger(ctx context.Context, log *zap.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, log)
}

// FromContext returns the logger carried by ctx, or a no-op logger when ctx
// carries none. Upgrade functions log through it without knowing who runs them.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(contextKey{}).(*zap.Logger); ok && l != nil {
		return l
	}
	return zap.NewNop()
}
