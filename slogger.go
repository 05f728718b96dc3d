package ring

// SLogger abstracts the [*slog.Logger] behavior.
//
// Lifecycle events (loop start/stop, connect, reset, ring stats) are logged
// at Info, degraded lookups and unsolicited responses at Warn, failures that
// cost capacity at Error, and per-request events at Debug.
//
// The [*slog.Logger] type satisfies this interface.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// DefaultSLogger returns a logger that discards everything.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

func (discardSLogger) Debug(msg string, args ...any) {}

func (discardSLogger) Info(msg string, args ...any) {}

func (discardSLogger) Warn(msg string, args ...any) {}

func (discardSLogger) Error(msg string, args ...any) {}
