package paystatus

import (
	"sync"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// ResultFunc receives the terminal status of a request and its final snapshot.
type ResultFunc func(status models.Status, req models.PaymentRequest)

// Dispatcher delivers the terminal result once per request lifecycle.
//
// The callback runs on its own goroutine so that it may tear down the session
// that produced it; Done is closed after it returns.
type Dispatcher struct {
	once sync.Once
	fn   ResultFunc
	done chan struct{}
}

func NewDispatcher(fn ResultFunc) *Dispatcher {
	return &Dispatcher{fn: fn, done: make(chan struct{})}
}

// Dispatch reports whether this call was the one that delivered the result.
func (d *Dispatcher) Dispatch(status models.Status, req models.PaymentRequest) bool {
	first := false
	d.once.Do(func() {
		first = true
		telemetry.TerminalResults.WithLabelValues(string(status)).Inc()
		go func() {
			defer close(d.done)
			if d.fn != nil {
				d.fn(status, req)
			}
		}()
	})
	return first
}

func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}
