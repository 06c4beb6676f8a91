package core

// LogLevel orders logger verbosity. Messages below the configured
// level are dropped; the verbose flags map onto Debug and Trace.
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the logging surface shared by the planner, the engine and
// the providers. Args are slog-style alternating key/value pairs;
// With derives a logger that carries preset attributes.
type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	SetLevel(level LogLevel)
}
