// package shared defines shared helpers
package shared

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true, Prefix: "footprint"}
	return log.NewWithOptions(w, opts)
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// ParseLogLevel resolves a level name such as "debug" or "warn", defaulting to info when the name is empty or unknown.
func ParseLogLevel(name string) log.Level {
	if name == "" {
		return log.InfoLevel
	}
	ll, err := log.ParseLevel(name)
	if err != nil {
		return log.InfoLevel
	}
	return ll
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}
