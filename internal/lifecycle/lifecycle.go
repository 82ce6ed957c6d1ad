// Package lifecycle tracks process-level state reported by /health.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    atomic.Int64
)

// SetShuttingDown sets the drain flag. /health reports shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// MarkStarted records the process start instant.
func MarkStarted(at time.Time) {
	startedAt.Store(at.UnixNano())
}

// Uptime returns the time elapsed since MarkStarted, or 0 if never marked.
func Uptime(now time.Time) time.Duration {
	ns := startedAt.Load()
	if ns == 0 {
		return 0
	}
	return now.Sub(time.Unix(0, ns))
}
