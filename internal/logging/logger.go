// Package logging defines the structured-logging interface used across the
// project and its zap-backed implementation.
package logging

import "context"

// Logger is the structured logger every component receives. args are
// alternating keys and values:
//
//	logger.Info(ctx, "wallet reconciled", "account_id", id, "saved", n)
//
// The context carries request-scoped fields such as the request id.
// Never pass one-time codes, private keys or mnemonics as values.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger
}
