package queueing

import (
	"context"
	"sync"

	"github.com/ef-ds/deque"

	"github.com/sarchlab/ahc/sim/hooking"
	"github.com/sarchlab/ahc/sim/naming"
)

// HookPosMailboxPush marks when an element is pushed into the mailbox.
var HookPosMailboxPush = &hooking.HookPos{Name: "Mailbox Push"}

// HookPosMailboxPop marks when an element is popped from the mailbox.
var HookPosMailboxPop = &hooking.HookPos{Name: "Mailbox Pop"}

// A Mailbox is an unbounded FIFO queue shared by one or more consumers. Push
// never blocks. Pop blocks until an element is available or the context is
// done.
type Mailbox[T any] struct {
	hooking.HookableBase
	naming.NamedBase

	lock     sync.Mutex
	queue    deque.Deque
	notifier chan struct{}
}

// NewMailbox creates a new empty mailbox.
func NewMailbox[T any](name string) *Mailbox[T] {
	return &Mailbox[T]{
		NamedBase: naming.MakeNamedBase(name),
		notifier:  make(chan struct{}, 1),
	}
}

// Push appends an element to the tail of the mailbox.
func (m *Mailbox[T]) Push(e T) {
	m.lock.Lock()
	m.queue.PushBack(e)
	m.lock.Unlock()

	m.notify()

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosMailboxPush,
			Item:   e,
		})
	}
}

// TryPop removes the head element without blocking. The second return value
// is false if the mailbox is empty.
func (m *Mailbox[T]) TryPop() (T, bool) {
	m.lock.Lock()
	item, ok := m.queue.PopFront()
	remaining := m.queue.Len()
	m.lock.Unlock()

	if !ok {
		var zero T
		return zero, false
	}

	// Wake another consumer if there is still work left.
	if remaining > 0 {
		m.notify()
	}

	e := item.(T)

	if m.NumHooks() > 0 {
		m.InvokeHook(hooking.HookCtx{
			Domain: m,
			Pos:    HookPosMailboxPop,
			Item:   e,
		})
	}

	return e, true
}

// Pop removes the head element, waiting for one to arrive if the mailbox is
// empty. It returns the context error if the context is done first.
func (m *Mailbox[T]) Pop(ctx context.Context) (T, error) {
	for {
		if e, ok := m.TryPop(); ok {
			return e, nil
		}

		select {
		case <-m.notifier:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// Size returns the number of elements waiting in the mailbox.
func (m *Mailbox[T]) Size() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.queue.Len()
}

func (m *Mailbox[T]) notify() {
	select {
	case m.notifier <- struct{}{}:
	default:
	}
}
