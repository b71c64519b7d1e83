package core

import (
	"errors"
	"math/rand/v2"
	"time"
)

// MaxLockInterval is the hard safety cap on either interval bound.
const MaxLockInterval = 30 * time.Minute

var (
	ErrMinIntervalTooLarge = errors.New("minimum lock interval exceeds the 30 minute cap")
	ErrMaxIntervalTooLarge = errors.New("maximum lock interval exceeds the 30 minute cap")
	ErrMinAboveMax         = errors.New("minimum lock interval is greater than the maximum")
)

// ValidateInterval checks a min/max lock-hold pair against the safety cap.
// It returns one specific violation, or nil when the pair is usable.
func ValidateInterval(min, max time.Duration) error {
	if min > MaxLockInterval {
		return ErrMinIntervalTooLarge
	}
	if max > MaxLockInterval {
		return ErrMaxIntervalTooLarge
	}
	if min > max {
		return ErrMinAboveMax
	}
	return nil
}

// DrawInterval returns a uniformly random duration in [min, max] inclusive.
// When the bounds are equal the exact value is returned with no randomness.
func DrawInterval(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}
	return min + time.Duration(rand.Int64N(int64(max-min)+1))
}
