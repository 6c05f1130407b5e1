package sim

import (
	"github.com/rs/zerolog"

	"github.com/sarchlab/ahc/sim/hooking"
)

// A LogHook writes the diagnostics emitted by components into a zerolog
// logger.
type LogHook struct {
	logger zerolog.Logger
}

// NewLogHook returns a LogHook that writes into the logger.
func NewLogHook(logger zerolog.Logger) *LogHook {
	return &LogHook{logger: logger}
}

// Func writes the diagnostic carried by the hook context, if any.
func (h *LogHook) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosDiagnostic {
		return
	}

	d, ok := ctx.Detail.(Diagnostic)
	if !ok {
		return
	}

	evt := h.logger.WithLevel(d.Level.zerologLevel()).
		Str("component", d.Component).
		Str("code", d.Code)

	if d.Err != nil {
		evt = evt.Err(d.Err)
	}

	evt.Msg(d.Message)
}

func (l Level) zerologLevel() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// EventLogger is a hook that logs every event before it is handled.
type EventLogger struct {
	logger zerolog.Logger
}

// NewEventLogger returns a new EventLogger which will write into the logger
// at debug level.
func NewEventLogger(logger zerolog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	l := h.logger.Debug().
		Str("id", evt.ID).
		Stringer("kind", evt.Kind).
		Stringer("source", evt.Source)

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		l = l.Str("component", named.Name())
	}

	if evt.HasChannel() {
		l = l.Str("channel", string(evt.FromChannel))
	}

	l.Msg("event")
}
