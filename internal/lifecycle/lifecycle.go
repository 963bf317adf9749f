package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	shuttingDown atomic.Bool
	startedAt    = time.Now()
)

// SetShuttingDown sets the shutdown flag. Call when SIGTERM/SIGINT received.
// Health answers 503 with status shutting-down while true.
func SetShuttingDown(v bool) {
	shuttingDown.Store(v)
}

// IsShuttingDown reports whether the process is draining and should not receive new traffic.
func IsShuttingDown() bool {
	return shuttingDown.Load()
}

// Uptime returns how long the process has been running, truncated to seconds.
func Uptime() time.Duration {
	return time.Since(startedAt).Truncate(time.Second)
}
