package glaze

import (
	"fmt"
	"os"
)

// globalDebug gates diagnostic output (decode fallbacks, cache hits and
// evictions, build timing). Off by default.
var globalDebug bool

// SetDebug enables or disables diagnostic output on stderr.
func SetDebug(enabled bool) {
	globalDebug = enabled
}

// Debug reports whether diagnostic output is enabled.
func Debug() bool {
	return globalDebug
}

// debugf prints one diagnostic line to stderr when debug mode is on.
func debugf(format string, args ...any) {
	if !globalDebug {
		return
	}
	_, _ = fmt.Fprintf(os.Stderr, "[glaze] "+format+"\n", args...)
}
