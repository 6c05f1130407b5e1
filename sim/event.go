package sim

import (
	"strconv"
	"sync"
	"time"
)

// EventKind tags what an event means to the component that receives it.
type EventKind int

// Kernel event kinds. Protocol packages allocate additional kinds with
// RegisterEventKind.
const (
	KindInit EventKind = iota
	KindMsgFromBottom
	KindMsgFromTop
	KindMsgFromPeer
	KindProcessInChannel
	KindDeliverToComponent
	KindMsgFromChannel
	KindTimer

	// KindUser is the first kind available to RegisterEventKind.
	KindUser EventKind = 64
)

var (
	kindLock  sync.RWMutex
	nextKind  = KindUser
	kindNames = map[EventKind]string{
		KindInit:               "Init",
		KindMsgFromBottom:      "MsgFromBottom",
		KindMsgFromTop:         "MsgFromTop",
		KindMsgFromPeer:        "MsgFromPeer",
		KindProcessInChannel:   "ProcessInChannel",
		KindDeliverToComponent: "DeliverToComponent",
		KindMsgFromChannel:     "MsgFromChannel",
		KindTimer:              "Timer",
	}
)

// RegisterEventKind allocates a new event kind with the given name. It is
// meant to be called from package-level variable declarations.
func RegisterEventKind(name string) EventKind {
	kindLock.Lock()
	defer kindLock.Unlock()

	k := nextKind
	nextKind++
	kindNames[k] = name

	return k
}

// String returns the name of the kind.
func (k EventKind) String() string {
	kindLock.RLock()
	defer kindLock.RUnlock()

	if name, ok := kindNames[k]; ok {
		return name
	}

	return "EventKind(" + strconv.Itoa(int(k)) + ")"
}

// ChannelID identifies the channel an event was delivered through. The empty
// ChannelID means the event did not travel over a channel.
type ChannelID string

// An Event is an immutable unit of work delivered to a component's mailbox.
// The payload is shared by reference and must be treated as read-only by
// every receiver.
type Event struct {
	ID          string
	Kind        EventKind
	Source      Key
	Payload     any
	Time        time.Time
	FromChannel ChannelID
}

// NewEvent creates an event stamped with the current time. The ID is
// assigned by the registry when the event is first triggered.
func NewEvent(source Key, kind EventKind, payload any) Event {
	return Event{
		Kind:    kind,
		Source:  source,
		Payload: payload,
		Time:    time.Now(),
	}
}

// WithChannel returns a copy of the event that records the channel it was
// delivered through.
func (e Event) WithChannel(ch ChannelID) Event {
	e.FromChannel = ch
	return e
}

// HasChannel tells if the event was delivered through a channel.
func (e Event) HasChannel() bool {
	return e.FromChannel != ""
}

// Message returns the payload as a Message. The second return value is false
// if the payload is not a Message.
func (e Event) Message() (Message, bool) {
	msg, ok := e.Payload.(Message)
	return msg, ok
}
