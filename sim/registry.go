package sim

import (
	"context"
	"sort"
	"sync"

	"github.com/sarchlab/ahc/sim/hooking"
	"github.com/sarchlab/ahc/sim/id"
)

type registryEntry struct {
	comp Component
	base *ComponentBase
}

// A Registry owns every component of a simulation. Components refer to each
// other by Key, and the registry resolves keys when events are delivered.
type Registry struct {
	hooking.HookableBase

	lock        sync.RWMutex
	entries     map[Key]registryEntry
	order       []Key
	idGenerator id.IDGenerator
	ctx         context.Context
}

// RegistryOption configures a Registry.
type RegistryOption func(r *Registry)

// WithIDGenerator sets the generator used to assign event IDs.
func WithIDGenerator(g id.IDGenerator) RegistryOption {
	return func(r *Registry) {
		r.idGenerator = g
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:     make(map[Key]registryEntry),
		idGenerator: id.NewIDGenerator(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Registry) register(key Key, comp Component, base *ComponentBase) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if _, found := r.entries[key]; found {
		return NewConfigurationError(key.String(),
			"component %s already registered", key)
	}

	r.entries[key] = registryEntry{comp: comp, base: base}
	r.order = append(r.order, key)

	for _, h := range r.HookableBase.Hooks() {
		base.AcceptHook(h)
	}

	return nil
}

// Unregister stops a component and removes it from the registry. Events
// sent to its key afterwards are dropped.
func (r *Registry) Unregister(key Key) bool {
	r.lock.Lock()

	entry, found := r.entries[key]
	if !found {
		r.lock.Unlock()
		return false
	}

	delete(r.entries, key)

	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}

	r.lock.Unlock()

	entry.base.Stop()

	return true
}

// AcceptHook registers a hook with the registry and with every component,
// including components registered later.
func (r *Registry) AcceptHook(hook hooking.Hook) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.HookableBase.AcceptHook(hook)

	for _, k := range r.order {
		r.entries[k].base.AcceptHook(hook)
	}
}

// Get returns the component registered under the key.
func (r *Registry) Get(key Key) (Component, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	entry, found := r.entries[key]

	return entry.comp, found
}

// GetByName returns the component by its Name[Instance] string.
func (r *Registry) GetByName(name string) (Component, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	for _, k := range r.order {
		if k.String() == name {
			return r.entries[k].comp, true
		}
	}

	return nil, false
}

// Deliver triggers the event on the component registered under the key. It
// returns false if no such component exists.
func (r *Registry) Deliver(key Key, e Event) bool {
	r.lock.RLock()
	entry, found := r.entries[key]
	r.lock.RUnlock()

	if !found {
		return false
	}

	entry.base.TriggerEvent(e)

	return true
}

// Components returns all registered components in registration order.
func (r *Registry) Components() []Component {
	r.lock.RLock()
	defer r.lock.RUnlock()

	comps := make([]Component, 0, len(r.order))
	for _, k := range r.order {
		comps = append(comps, r.entries[k].comp)
	}

	return comps
}

// Keys returns the keys of all registered components, sorted by name and
// instance.
func (r *Registry) Keys() []Key {
	r.lock.RLock()
	keys := make([]Key, len(r.order))
	copy(keys, r.order)
	r.lock.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}

		return keys[i].Instance < keys[j].Instance
	})

	return keys
}

// Start starts every registered component, so that each one handles its
// INIT event. Components registered after Start must be started by whoever
// creates them, using Context.
func (r *Registry) Start(ctx context.Context) {
	r.lock.Lock()
	if r.ctx == nil {
		r.ctx = ctx
	}
	bases := r.bases()
	r.lock.Unlock()

	for _, b := range bases {
		b.Start(ctx)
	}
}

// Running tells if Start has been called.
func (r *Registry) Running() bool {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.ctx != nil
}

// Context returns the context passed to Start, or nil if the registry has
// not been started.
func (r *Registry) Context() context.Context {
	r.lock.RLock()
	defer r.lock.RUnlock()

	return r.ctx
}

// Stop stops every component and waits until all their workers have exited.
func (r *Registry) Stop() {
	r.lock.RLock()
	bases := r.bases()
	r.lock.RUnlock()

	for _, b := range bases {
		b.Stop()
	}

	for _, b := range bases {
		<-b.Done()
	}
}

func (r *Registry) bases() []*ComponentBase {
	bases := make([]*ComponentBase, 0, len(r.order))
	for _, k := range r.order {
		bases = append(bases, r.entries[k].base)
	}

	return bases
}
