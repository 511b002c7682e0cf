// Package debug provides cheap, always-on invariant checks for the lobby
// core. These assertions are expected to fire only on programmer error,
// an internal invariant broken, never on untrusted client input;
// malformed packets are always routed through ordinary error returns
// instead.
package debug

import (
	"fmt"
	"runtime"
)

// Assert panics with the caller's file:line if truth is false. Keep the
// message short; it's for developers staring at a panic trace, not for
// clients.
func Assert(truth bool, msg ...string) {
	if len(msg) > 1 {
		panic("debug.Assert: pass at most one message")
	}
	if !truth {
		m := "assertion failed"
		if len(msg) == 1 {
			m = fmt.Sprintf("assertion failed: %s", msg[0])
		}
		if _, file, line, ok := runtime.Caller(1); ok {
			m = fmt.Sprintf("%s:%d: %s", file, line, m)
		}
		panic(m)
	}
}

// Assertf is Assert with Printf-style formatting, used where the failure
// needs the offending value attached (an ID, a command code, a buffer
// length).
func Assertf(truth bool, format string, args ...any) {
	if !truth {
		m := fmt.Sprintf(format, args...)
		if _, file, line, ok := runtime.Caller(1); ok {
			m = fmt.Sprintf("%s:%d: assertion failed: %s", file, line, m)
		}
		panic(m)
	}
}
