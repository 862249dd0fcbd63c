// Package utils contains various common utils separate by utility types
package utils

import (
	"time"
)

// NowFn is the clock function injected into components that apply TTLs,
// replaceable in tests
type NowFn func() time.Time

// SecsToTime converts an int64 of seconds from epoch to Time struct
func SecsToTime(ts int64) time.Time {
	return time.Unix(ts, 0)
}
