package realtime

import (
	"math"
	"time"
)

// MaxReconnectDelay is the saturation point of ReconnectDelay
const MaxReconnectDelay = time.Duration(math.MaxInt64)

// ReconnectDelay returns base × 2^(attempt−1) for attempt ≥ 1, saturating at
// MaxReconnectDelay instead of overflowing
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift >= 63 || base > MaxReconnectDelay>>shift {
		return MaxReconnectDelay
	}
	return base << shift
}

// Timer is a scheduled reconnect that can be cancelled
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d. time.AfterFunc is used unless tests supply their own.
type AfterFunc func(d time.Duration, f func()) Timer

func defaultAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
