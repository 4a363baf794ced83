// Package logging gates DEBUG lines on the configured log level. Other
// levels go straight through log.Printf with an INFO:/WARN:/ERROR: prefix.
package logging

import (
	"log"
	"strings"
	"sync/atomic"
)

var debug atomic.Bool

// SetLevel enables DEBUG output when level is "debug".
func SetLevel(level string) {
	debug.Store(strings.EqualFold(strings.TrimSpace(level), "debug"))
}

// DebugEnabled reports whether DEBUG lines are written.
func DebugEnabled() bool {
	return debug.Load()
}

// Debugf logs a DEBUG line when enabled.
func Debugf(format string, args ...any) {
	if debug.Load() {
		log.Printf("DEBUG: "+format, args...)
	}
}
