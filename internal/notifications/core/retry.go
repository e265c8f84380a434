package core

import (
	"errors"
	"fmt"
	"time"
)

// MaxRetries is the number of failed attempts after which a message is
// permanently failed.
const MaxRetries = 3

// RetrySchedule holds the delay before the attempt that follows the n-th
// failure: a short first delay, then two longer equal ones.
var RetrySchedule = []time.Duration{10 * time.Second, 20 * time.Second, 20 * time.Second}

// DelayFor returns the delay to wait after retryCount failures.
func DelayFor(retryCount int) time.Duration {
	if retryCount < 1 {
		return 0
	}
	if retryCount > len(RetrySchedule) {
		return RetrySchedule[len(RetrySchedule)-1]
	}
	return RetrySchedule[retryCount-1]
}

// ErrWaitToRetry is the sentinel matched by errors.Is for a committed
// WaitToRetry transition.
var ErrWaitToRetry = errors.New("message waiting to retry")

// RetryPendingError is returned by SendAsync after a failed attempt left the
// message in WaitToRetry. The state change is already committed.
type RetryPendingError struct {
	MessageID  string
	RetryCount int
	Delay      time.Duration
	Reason     string
}

func (e *RetryPendingError) Error() string {
	return fmt.Sprintf("message %s: attempt %d failed, retry in %s: %s", e.MessageID, e.RetryCount, e.Delay, e.Reason)
}

func (e *RetryPendingError) Is(target error) bool {
	return target == ErrWaitToRetry
}
