package connection

import (
	"math"
	"time"
)

// BackoffFactor is the growth factor between consecutive reconnect delays.
const BackoffFactor = 1.5

// ReconnectDelay returns the wait before reconnect attempt n (0-indexed): base * 1.5^n.
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(BackoffFactor, float64(attempt))
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// ShouldReconnect reports whether another attempt is allowed after `attempts` consecutive failures.
func ShouldReconnect(attempts, max int) bool {
	return max > 0 && attempts < max
}
