package modem

import "sync"

// Gate serializes every operation that reaches the modem. ofono rejects
// overlapping AT-bearing calls with "Operation already in progress", and
// there is no fair queue inside the service, so all callers funnel through
// one process-wide mutex. The gate is injected, never a package global, so
// tests can observe its ordering.
type Gate struct {
	mu sync.Mutex
}

// NewGate creates a new serialization gate.
func NewGate() *Gate {
	return &Gate{}
}

// Do runs fn while holding the gate. The callback may block on D-Bus or
// device I/O; there is deliberately no timeout here — a hung modem call is
// surfaced by the watchdog, not masked by the gate.
func (g *Gate) Do(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fn()
}
