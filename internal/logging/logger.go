// Package logging defines the minimal structured-logging interface used
// across the project. Implementations can wrap slog, zap, zerolog, etc.
package logging

// Logger is a leveled, structured logger. The variadic args are key-value
// pairs, e.g.:
//
//	log.Info("link ready", "addr", addr, "state", state)
type Logger interface {
	// Debug logs verbose diagnostics such as frame traces.
	Debug(msg string, args ...any)

	// Info logs an informational message.
	Info(msg string, args ...any)

	// Warn logs a warning message for unusual but non-fatal conditions.
	Warn(msg string, args ...any)

	// Error logs an error message for failures.
	Error(msg string, args ...any)

	// With returns a child logger that always includes the given key-value
	// pairs.
	With(args ...any) Logger
}
