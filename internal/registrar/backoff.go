package registrar

import "time"

// Backoff is the retry policy for one topic's registration attempts:
// the delay doubles per attempt until the attempt ceiling.
type Backoff struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

func DefaultBackoff() Backoff {
	return Backoff{
		BaseDelay:   time.Second,
		MaxAttempts: 3,
	}
}

// Delay returns the wait before attempt+1, given the 1-based attempt that
// just failed.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return b.BaseDelay << (attempt - 1)
}
