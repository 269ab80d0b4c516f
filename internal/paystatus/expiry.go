package paystatus

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
)

// ExpiryTimer counts down a request's TTL and fires once when it reaches zero.
// A timer started with a non-positive TTL never fires.
type ExpiryTimer struct {
	deadline time.Time
	timer    *time.Timer
	fired    atomic.Bool
}

func StartExpiry(ttl time.Duration, onExpire func()) *ExpiryTimer {
	e := &ExpiryTimer{}
	if ttl <= 0 {
		return e
	}
	e.deadline = time.Now().Add(ttl)
	e.timer = time.AfterFunc(ttl, func() {
		if e.fired.CompareAndSwap(false, true) && onExpire != nil {
			onExpire()
		}
	})
	return e
}

// Bounded reports whether the timer has a deadline at all.
func (e *ExpiryTimer) Bounded() bool {
	return e.timer != nil
}

func (e *ExpiryTimer) Deadline() time.Time {
	return e.deadline
}

// TimeLeft never increases and never goes below zero. Unbounded timers report zero.
func (e *ExpiryTimer) TimeLeft() time.Duration {
	if e.timer == nil || e.fired.Load() {
		return 0
	}
	if d := time.Until(e.deadline); d > 0 {
		return d
	}
	return 0
}

func (e *ExpiryTimer) Fired() bool {
	return e.fired.Load()
}

// Stop cancels the timer. It reports whether this call prevented the expiry.
func (e *ExpiryTimer) Stop() bool {
	if e.timer == nil {
		return false
	}
	return e.timer.Stop()
}

// ResolveTTL picks the expiry of a new request: the backend's expiresIn wins,
// then the flow's own TTL, then the method default, then the client default.
func ResolveTTL(expiresIn, flowTTL time.Duration, method models.Method, fallback time.Duration) time.Duration {
	switch {
	case expiresIn > 0:
		return expiresIn
	case flowTTL > 0:
		return flowTTL
	case method.DefaultTTL() > 0:
		return method.DefaultTTL()
	default:
		return fallback
	}
}

// FormatCountdown renders d as MM:SS, rounding partial seconds up.
func FormatCountdown(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int((d + time.Second - 1) / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
