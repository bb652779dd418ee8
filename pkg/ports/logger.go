// Package ports defines the interfaces vidloop depends on and the adapters implement.
package ports

import "fmt"

// LogLevel orders log messages by severity.
type LogLevel int

const (
	LevelDebug LogLevel = iota // adapter and capture internals
	LevelInfo                  // path selection and run outcomes
	LevelWarn                  // fallbacks and degraded capture
	LevelError
	LevelQuiet // suppresses all output
)

var levelNames = [...]string{"debug", "info", "warn", "error", "quiet"}

func (l LogLevel) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLogLevel parses a level name. The empty string is info.
func ParseLogLevel(s string) (LogLevel, error) {
	if s == "" {
		return LevelInfo, nil
	}
	for i, name := range levelNames {
		if s == name {
			return LogLevel(i), nil
		}
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger is the logging port. msg is a lexicon key formatted with args, so
// adapters may translate it before output.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})

	// WithComponent returns a Logger that prefixes messages with component.
	WithComponent(component string) Logger
}
