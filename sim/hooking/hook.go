// Package hooking lets observers attach to the components of a simulation.
// Components invoke their hooks at well-known positions, such as before an
// event is handled or when a diagnostic is reported.
package hooking

import "sync"

// HookPos names a position at which hooks are invoked. Positions are
// compared by pointer, so every position is a package-level variable.
type HookPos struct {
	Name string
}

// HookCtx describes the site a hook is invoked at. What Item and Detail hold
// is documented next to each HookPos.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
	Detail any
}

// Hookable is implemented by everything hooks can be attached to.
type Hookable interface {
	AcceptHook(hook Hook)
	NumHooks() int
	Hooks() []Hook
}

// A Hook observes the hookable objects it is attached to.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase implements Hookable. It is safe for concurrent use, so hooks
// may be attached while the components invoking them are running.
type HookableBase struct {
	lock  sync.RWMutex
	hooks []Hook
}

// NumHooks returns the number of hooks attached.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

// Hooks returns a copy of the hooks attached.
func (h *HookableBase) Hooks() []Hook {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return append([]Hook(nil), h.hooks...)
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	h.lock.Lock()
	defer h.lock.Unlock()

	for _, attached := range h.hooks {
		if attached == hook {
			panic("hook is already attached")
		}
	}

	h.hooks = append(h.hooks, hook)
}

// InvokeHook calls every attached hook in the order they were attached.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}

type funcHook struct {
	f func(ctx HookCtx)
}

func (h *funcHook) Func(ctx HookCtx) {
	h.f(ctx)
}

// NewHookFunc wraps a function as a Hook.
func NewHookFunc(f func(ctx HookCtx)) Hook {
	return &funcHook{f: f}
}
