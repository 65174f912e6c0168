// Package logging is the structured logger every ULPT component receives.
// Components take the Logger interface; the process wires a slog JSON backend.
package logging

import "context"

// Logger is a context-aware, structured logger. Args are alternating keys
// and values:
//
//	log.Info(ctx, "user logged in", "user_id", id, "role", role)
type Logger interface {
	// Debug is for diagnostics that stay off in production.
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	// Warn is for unusual but non-fatal conditions, such as a failed purge.
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record, typically
	// "module", <component>.
	With(args ...any) Logger
}
