package sim

import "github.com/sarchlab/ahc/sim/hooking"

// HookPosDiagnostic marks a diagnostic emitted by a component. The Detail of
// the hook context is a Diagnostic.
var HookPosDiagnostic = &hooking.HookPos{Name: "Diagnostic"}

// HookPosBeforeEvent is a hook position that triggers before handling an
// event. The Item of the hook context is the Event.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is a hook position that triggers after handling an event.
// The Item of the hook context is the Event and the Detail is the error
// returned by the handler, if any.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}

// HookPosComponentInitialized marks that a component has handled its INIT
// event. The Item of the hook context is the component Key.
var HookPosComponentInitialized = &hooking.HookPos{
	Name: "Component Initialized",
}

// Level is the severity of a Diagnostic.
type Level int

// Diagnostic levels.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// Diagnostic codes emitted by the kernel and the bundled protocols.
const (
	CodeComponentInitialized    = "component-initialized"
	CodeHandlerNotImplemented   = "handler-not-implemented"
	CodeHandlerFault            = "handler-fault"
	CodeChannelCapacityExceeded = "channel-capacity-exceeded"
	CodeSnapshotTaken           = "snapshot-taken"
	CodeSnapshotTerminated      = "snapshot-terminated"
	CodeNoForwardingPath        = "no-forwarding-path"
	CodeFrameDropped            = "frame-dropped"
	CodeNeighborSuspected       = "neighbor-suspected"
	CodeUnknownComponent        = "unknown-component"
	CodeUnknownChannel          = "unknown-channel"
)

// A Diagnostic is a leveled, coded report that components emit for an
// external logger to consume.
type Diagnostic struct {
	Level     Level
	Code      string
	Component string
	Message   string
	Err       error
}
