// Package paystatus is the asynchronous payment-status client shared by every
// checkout flow: it creates a payment request, polls the backend for its
// status, expires it client-side after its TTL, and reports the terminal
// result exactly once.
//
// All state changes of one request go through a single Machine, so the
// poller, the expiry timer and an explicit cancel can race freely: the first
// terminal signal wins and later ones are ignored.
package paystatus

import (
	"sync"
	"time"

	"github.com/akylbek/payment-system/sunny-gateway/internal/models"
	"github.com/akylbek/payment-system/sunny-gateway/internal/telemetry"
)

// Machine arbitrates the lifecycle of one payment request.
type Machine struct {
	mu       sync.Mutex
	req      models.PaymentRequest
	degraded bool
	done     chan struct{}
	dispatch *Dispatcher
}

// NewMachine returns a machine in the CREATED state.
func NewMachine(req models.PaymentRequest, onTerminal ResultFunc) *Machine {
	req.Status = models.StatusCreated
	return &Machine{
		req:      req,
		done:     make(chan struct{}),
		dispatch: NewDispatcher(onTerminal),
	}
}

// Start moves CREATED -> PENDING after a successful create.
func (m *Machine) Start() bool {
	return m.transition(models.StatusPending, "")
}

// Apply applies a status reported by the backend. Non-terminal reports are no-ops.
func (m *Machine) Apply(status models.Status, message string) bool {
	if !status.IsTerminal() {
		return false
	}
	return m.transition(status, message)
}

// Expire moves a non-terminal request to EXPIRED.
func (m *Machine) Expire() bool {
	return m.transition(models.StatusExpired, "payment request expired")
}

// Cancel moves a non-terminal request to CANCELLED.
func (m *Machine) Cancel() bool {
	return m.transition(models.StatusCancelled, "payment request cancelled")
}

func (m *Machine) transition(to models.Status, message string) bool {
	m.mu.Lock()
	from := m.req.Status
	if from == to || !from.CanTransitionTo(to) {
		m.mu.Unlock()
		return false
	}

	m.req.Status = to
	if message != "" {
		m.req.Message = message
	}
	m.req.UpdatedAt = time.Now()
	snapshot := m.req

	terminal := to.IsTerminal()
	if terminal {
		m.degraded = false
		close(m.done)
	}
	m.mu.Unlock()

	telemetry.PaymentTransitions.WithLabelValues(string(to)).Inc()
	if terminal {
		m.dispatch.Dispatch(to, snapshot)
	}
	return true
}

// SetDegraded records whether the status is currently unknown because polls
// keep failing. It reports whether the flag changed.
func (m *Machine) SetDegraded(degraded bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.req.Status.IsTerminal() || m.degraded == degraded {
		return false
	}
	m.degraded = degraded
	return true
}

func (m *Machine) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

func (m *Machine) Status() models.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req.Status
}

// Request returns a snapshot of the request.
func (m *Machine) Request() models.PaymentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.req
}

// Terminated is closed once the machine reaches a terminal state.
func (m *Machine) Terminated() <-chan struct{} {
	return m.done
}

// Dispatched is closed once the terminal callback has returned.
func (m *Machine) Dispatched() <-chan struct{} {
	return m.dispatch.Done()
}
