package journal

import (
	"strings"
	"time"

	"github.com/banshee-data/perceptron-sweep/internal/timeutil"
)

const (
	busyRetries   = 5
	busyBaseDelay = 10 * time.Millisecond
)

// isSQLiteBusy reports whether err is a transient lock conflict.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy runs fn, retrying with exponential backoff while SQLite
// reports the database as locked. Other errors are returned immediately.
// Backoff sleeps go through clock.
func retryOnBusy(clock timeutil.Clock, fn func() error) error {
	var err error
	delay := busyBaseDelay
	for attempt := 1; attempt <= busyRetries; attempt++ {
		err = fn()
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < busyRetries {
			clock.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
