package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/sarchlab/ahc/sim/hooking"
	"github.com/sarchlab/ahc/sim/naming"
	"github.com/sarchlab/ahc/sim/queueing"
)

// A Key uniquely identifies a component in a Registry.
type Key struct {
	Name     string
	Instance int
}

// String returns the key in the Name[Instance] form.
func (k Key) String() string {
	return naming.Indexed(k.Name, k.Instance)
}

// A Handler processes the events delivered to a component. Implementations
// switch over the event kind and return UnhandledEvent from the default arm.
type Handler interface {
	Handle(e Event) error
}

// A Component is a concurrently running unit with an identity, connectors
// to other components, and a private mailbox.
type Component interface {
	naming.Named
	hooking.Hookable

	Key() Key
	Connect(dir Direction, peer Key) error
	Disconnect(dir Direction, peer Key) bool
	TriggerEvent(e Event)

	Start(ctx context.Context)
	Stop()
	Done() <-chan struct{}
}

// A Worker is an additional routine that runs for the lifetime of a
// component, next to the mailbox consumers.
type Worker func(ctx context.Context)

// ComponentBase implements the runtime shared by all components. Concrete
// components embed it and pass themselves in as the Handler.
type ComponentBase struct {
	hooking.HookableBase
	naming.NamedBase

	key        Key
	registry   *Registry
	handler    Handler
	connectors Connectors
	mailbox    *queueing.Mailbox[Event]
	numWorkers int
	workers    []Worker

	started    *atomic.Bool
	terminated *atomic.Bool
	lifetime   context.Context
	cancel     context.CancelFunc
	stopOnce   sync.Once
	wg         sync.WaitGroup
	done       chan struct{}
}

// Key returns the registry key of the component.
func (c *ComponentBase) Key() Key {
	return c.key
}

// Registry returns the registry the component belongs to.
func (c *ComponentBase) Registry() *Registry {
	return c.registry
}

// Connect appends a peer to the connector list of the given direction.
func (c *ComponentBase) Connect(dir Direction, peer Key) error {
	c.connectors.Add(dir, peer)
	return nil
}

// Disconnect removes a peer from the connector list of the given direction.
func (c *ComponentBase) Disconnect(dir Direction, peer Key) bool {
	return c.connectors.Remove(dir, peer)
}

// Connectors returns the peers connected in the given direction.
func (c *ComponentBase) Connectors(dir Direction) []Key {
	return c.connectors.Get(dir)
}

// NewEvent creates an event sourced at this component.
func (c *ComponentBase) NewEvent(kind EventKind, payload any) Event {
	return NewEvent(c.key, kind, payload)
}

// TriggerEvent enqueues an event on the component's own mailbox. It never
// blocks.
func (c *ComponentBase) TriggerEvent(e Event) {
	if e.ID == "" {
		e.ID = c.registry.idGenerator.Generate()
	}

	c.mailbox.Push(e)
}

// Enqueue pushes an event onto one of the component's internal mailboxes,
// such as a pipeline stage served by an extra worker.
func (c *ComponentBase) Enqueue(mb *queueing.Mailbox[Event], e Event) {
	if e.ID == "" {
		e.ID = c.registry.idGenerator.Generate()
	}

	mb.Push(e)
}

// SendDown delivers the event to every peer connected downwards.
func (c *ComponentBase) SendDown(e Event) {
	c.send(Down, e)
}

// SendUp delivers the event to every peer connected upwards.
func (c *ComponentBase) SendUp(e Event) {
	c.send(Up, e)
}

// SendPeer delivers the event to every peer connected sideways.
func (c *ComponentBase) SendPeer(e Event) {
	c.send(Peer, e)
}

// SendDownTo delivers the event to a single downward peer. It returns false
// if the peer is not connected downwards.
func (c *ComponentBase) SendDownTo(peer Key, e Event) bool {
	if !c.connectors.Contains(Down, peer) {
		return false
	}

	return c.registry.Deliver(peer, e)
}

// A direction without peers is a silent no-op.
func (c *ComponentBase) send(dir Direction, e Event) {
	for _, peer := range c.connectors.Get(dir) {
		if !c.registry.Deliver(peer, e) {
			c.Report(LevelWarn, CodeUnknownComponent, nil,
				"peer %s is not registered", peer)
		}
	}
}

// ScheduleAfter triggers the event on this component once the delay has
// elapsed. Pending timers are discarded when the component stops.
func (c *ComponentBase) ScheduleAfter(delay time.Duration, e Event) {
	timer := time.NewTimer(delay)

	go func() {
		defer timer.Stop()

		select {
		case <-timer.C:
			c.TriggerEvent(e)
		case <-c.lifetime.Done():
		}
	}()
}

// Report emits a diagnostic to the hooks of the component.
func (c *ComponentBase) Report(
	level Level,
	code string,
	err error,
	format string,
	args ...any,
) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    HookPosDiagnostic,
		Detail: Diagnostic{
			Level:     level,
			Code:      code,
			Component: c.Name(),
			Message:   fmt.Sprintf(format, args...),
			Err:       err,
		},
	})
}

// AddWorker registers a routine that runs alongside the mailbox consumers.
// It must be called before the component starts.
func (c *ComponentBase) AddWorker(w Worker) {
	if c.started.Load() {
		panic("cannot add worker to a started component")
	}

	c.workers = append(c.workers, w)
}

// Start launches the mailbox consumers and the extra workers. Calling Start
// more than once has no effect. The component stops when the context is done
// or when Stop is called.
func (c *ComponentBase) Start(ctx context.Context) {
	if !c.started.CompareAndSwap(false, true) {
		return
	}

	for i := 0; i < c.numWorkers; i++ {
		c.runWorker(func(ctx context.Context) { c.Serve(ctx, c.mailbox) })
	}

	for _, w := range c.workers {
		c.runWorker(w)
	}

	go func() {
		c.wg.Wait()
		close(c.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			c.Stop()
		case <-c.lifetime.Done():
		}
	}()
}

func (c *ComponentBase) runWorker(w Worker) {
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		w(c.lifetime)
	}()
}

// Stop signals all workers to exit. Workers parked on an empty mailbox
// return immediately. Stop does not wait; use Done for that.
func (c *ComponentBase) Stop() {
	c.stopOnce.Do(func() {
		c.terminated.Store(true)
		c.cancel()

		if c.started.CompareAndSwap(false, true) {
			close(c.done)
		}
	})
}

// Done returns a channel that is closed after all workers have exited.
func (c *ComponentBase) Done() <-chan struct{} {
	return c.done
}

// Terminated tells if the component has been stopped.
func (c *ComponentBase) Terminated() bool {
	return c.terminated.Load()
}

// Serve consumes the mailbox until the context is done, dispatching every
// event to the component's handler.
func (c *ComponentBase) Serve(ctx context.Context, mb *queueing.Mailbox[Event]) {
	for {
		e, err := mb.Pop(ctx)
		if err != nil {
			return
		}

		c.dispatch(e)
	}
}

func (c *ComponentBase) dispatch(e Event) {
	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosBeforeEvent,
			Item:   e,
		})
	}

	err := c.safeHandle(e)

	var fault *HandlerFault

	switch {
	case err == nil:
	case errors.Is(err, ErrUnhandledEvent):
		// Components may ignore INIT.
		if e.Kind != KindInit {
			c.Report(LevelWarn, CodeHandlerNotImplemented, err,
				"handler not implemented for kind %s", e.Kind)
		}
	case errors.As(err, &fault):
		c.Report(LevelError, CodeHandlerFault, err,
			"handler for kind %s panicked: %v\n%s",
			e.Kind, fault.Value, fault.Stack)
	default:
		c.Report(LevelError, CodeHandlerFault, err,
			"handler for kind %s failed", e.Kind)
	}

	if e.Kind == KindInit {
		c.Report(LevelInfo, CodeComponentInitialized, nil,
			"initialized %s", c.Name())

		if c.NumHooks() > 0 {
			c.InvokeHook(hooking.HookCtx{
				Domain: c,
				Pos:    HookPosComponentInitialized,
				Item:   c.key,
			})
		}
	}

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosAfterEvent,
			Item:   e,
			Detail: err,
		})
	}
}

func (c *ComponentBase) safeHandle(e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &HandlerFault{Kind: e.Kind, Value: r, Stack: debug.Stack()}
		}
	}()

	return c.handler.Handle(e)
}

// Builder can build components.
type Builder struct {
	registry   *Registry
	numWorkers int
}

// MakeBuilder returns a Builder with a single mailbox consumer.
func MakeBuilder() Builder {
	return Builder{numWorkers: 1}
}

// WithRegistry sets the registry the component is registered in.
func (b Builder) WithRegistry(r *Registry) Builder {
	b.registry = r
	return b
}

// WithNumWorkers sets how many goroutines consume the mailbox.
//
// With a single worker, events are handled one at a time in the order they
// were enqueued. With more than one worker, events are handled concurrently
// and in no particular order; the handler must then be safe for concurrent
// use.
func (b Builder) WithNumWorkers(n int) Builder {
	b.numWorkers = n
	return b
}

// Build creates the component, registers it, and enqueues its INIT event.
// The handler is usually the concrete component that embeds the returned
// ComponentBase; if the handler is itself a Component, it is what the
// registry stores.
func (b Builder) Build(
	name string,
	instance int,
	handler Handler,
) (*ComponentBase, error) {
	if b.registry == nil {
		return nil, NewConfigurationError(name, "registry is not given")
	}

	if handler == nil {
		return nil, NewConfigurationError(name, "handler is not given")
	}

	if b.numWorkers < 1 {
		return nil, NewConfigurationError(name,
			"number of workers must be positive, got %d", b.numWorkers)
	}

	key := Key{Name: name, Instance: instance}
	if err := naming.Validate(key.String()); err != nil {
		return nil, NewConfigurationError(key.String(), "%v", err)
	}

	lifetime, cancel := context.WithCancel(context.Background())

	c := &ComponentBase{
		NamedBase:  naming.MakeNamedBase(key.String()),
		key:        key,
		registry:   b.registry,
		handler:    handler,
		mailbox:    queueing.NewMailbox[Event](key.String() + ".Mailbox"),
		numWorkers: b.numWorkers,
		started:    atomic.NewBool(false),
		terminated: atomic.NewBool(false),
		lifetime:   lifetime,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	var registered Component = c
	if comp, ok := handler.(Component); ok {
		registered = comp
	}

	if err := b.registry.register(key, registered, c); err != nil {
		cancel()
		return nil, err
	}

	c.TriggerEvent(c.NewEvent(KindInit, nil))

	return c, nil
}
