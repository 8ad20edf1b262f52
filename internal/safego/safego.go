// Package safego starts goroutines that log a panic instead of crashing the
// process.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine. A panic in fn is recovered and logged with
// the goroutine's name and stack.
func Go(name string, fn func()) {
	go func() {
		defer Recover(name)
		fn()
	}()
}

// Recover logs a recovered panic. It must be deferred directly.
func Recover(name string) {
	if r := recover(); r != nil {
		slog.Error("recovered panic in background goroutine",
			"goroutine", name,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}
