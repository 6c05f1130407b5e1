package sim

import "sync"

// A Probe is a very simple component that accepts every event and records
// it. It is designed to simplify tests and to terminate a protocol stack in
// scenarios.
type Probe struct {
	*ComponentBase

	lock     sync.Mutex
	received []Event
}

// NewProbe creates a probe and registers it in the registry.
func NewProbe(r *Registry, name string, instance int) (*Probe, error) {
	p := &Probe{}

	base, err := MakeBuilder().WithRegistry(r).Build(name, instance, p)
	if err != nil {
		return nil, err
	}

	p.ComponentBase = base

	return p, nil
}

// Handle records the event. INIT is not recorded.
func (p *Probe) Handle(e Event) error {
	if e.Kind == KindInit {
		return nil
	}

	p.lock.Lock()
	p.received = append(p.received, e)
	p.lock.Unlock()

	return nil
}

// Received returns a copy of every event recorded so far.
func (p *Probe) Received() []Event {
	p.lock.Lock()
	defer p.lock.Unlock()

	events := make([]Event, len(p.received))
	copy(events, p.received)

	return events
}

// ReceivedOfKind returns the recorded events of the given kind.
func (p *Probe) ReceivedOfKind(kind EventKind) []Event {
	var events []Event

	for _, e := range p.Received() {
		if e.Kind == kind {
			events = append(events, e)
		}
	}

	return events
}

// Payloads returns the payloads of the recorded events of the given kind, in
// the order they were received.
func (p *Probe) Payloads(kind EventKind) []any {
	events := p.ReceivedOfKind(kind)

	payloads := make([]any, 0, len(events))
	for _, e := range events {
		payloads = append(payloads, e.Payload)
	}

	return payloads
}
