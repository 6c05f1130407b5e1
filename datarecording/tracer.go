package datarecording

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/sarchlab/ahc/protocols/snapshot"
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
)

// Tables written by the Tracer.
const (
	EventTable      = "event"
	DiagnosticTable = "diagnostic"
	SnapshotTable   = "snapshot"
)

// EventEntry is an event handled by a component.
type EventEntry struct {
	ID          string
	Time        int64
	Component   string
	Kind        string
	Source      string
	Channel     string
	PayloadType string
	MessageType string
	FromNode    int
	ToNode      int
	SequenceID  int
}

// DiagnosticEntry is a diagnostic reported by a component.
type DiagnosticEntry struct {
	Level     string
	Code      string
	Component string
	Message   string
	Error     string
}

// SnapshotEntry is the recorded state of one incoming channel of a node
// whose snapshot has terminated. Nodes without incoming channels get one
// entry with an empty channel.
type SnapshotEntry struct {
	Node           int
	Channel        string
	MarkerReceived bool
	InTransit      int
	BroadcastSeq   int
}

// A Tracer is a hook that records the events, the diagnostics, and the
// terminated snapshots of every component it is attached to.
type Tracer struct {
	recorder DataRecorder

	lock sync.Mutex
	errs *multierror.Error
}

// NewTracer creates the tables of the tracer in the recorder.
func NewTracer(recorder DataRecorder) (*Tracer, error) {
	var result *multierror.Error

	tables := []struct {
		name   string
		sample any
	}{
		{EventTable, EventEntry{}},
		{DiagnosticTable, DiagnosticEntry{}},
		{SnapshotTable, SnapshotEntry{}},
	}

	for _, t := range tables {
		if err := recorder.CreateTable(t.name, t.sample); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return &Tracer{recorder: recorder}, nil
}

// Func records the hook context if it is of a position the tracer knows.
func (t *Tracer) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosBeforeEvent:
		t.recordEvent(ctx)
	case sim.HookPosDiagnostic:
		t.recordDiagnostic(ctx)
	case snapshot.HookPosSnapshotTerminated:
		t.recordSnapshot(ctx)
	}
}

// Err returns the errors that happened while recording, if any.
func (t *Tracer) Err() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	return t.errs.ErrorOrNil()
}

func (t *Tracer) insert(tableName string, entry any) {
	if err := t.recorder.InsertData(tableName, entry); err != nil {
		t.lock.Lock()
		t.errs = multierror.Append(t.errs, err)
		t.lock.Unlock()
	}
}

func (t *Tracer) recordEvent(ctx hooking.HookCtx) {
	e, ok := ctx.Item.(sim.Event)
	if !ok {
		return
	}

	entry := EventEntry{
		ID:      e.ID,
		Time:    e.Time.UnixNano(),
		Kind:    e.Kind.String(),
		Source:  e.Source.String(),
		Channel: string(e.FromChannel),
	}

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		entry.Component = named.Name()
	}

	if e.Payload != nil {
		entry.PayloadType = fmt.Sprintf("%T", e.Payload)
	}

	if msg, ok := e.Message(); ok {
		entry.MessageType = string(msg.Header.Type)
		entry.FromNode = int(msg.Header.From)
		entry.ToNode = int(msg.Header.To)
		entry.SequenceID = msg.Header.SequenceID
	}

	t.insert(EventTable, entry)
}

func (t *Tracer) recordDiagnostic(ctx hooking.HookCtx) {
	d, ok := ctx.Detail.(sim.Diagnostic)
	if !ok {
		return
	}

	entry := DiagnosticEntry{
		Level:     d.Level.String(),
		Code:      d.Code,
		Component: d.Component,
		Message:   d.Message,
	}

	if d.Err != nil {
		entry.Error = d.Err.Error()
	}

	t.insert(DiagnosticTable, entry)
}

func (t *Tracer) recordSnapshot(ctx hooking.HookCtx) {
	id, ok := ctx.Item.(sim.NodeID)
	if !ok {
		return
	}

	state, ok := ctx.Detail.(snapshot.State)
	if !ok {
		return
	}

	if len(state.MarkerReceived) == 0 {
		t.insert(SnapshotTable, SnapshotEntry{
			Node:         int(id),
			BroadcastSeq: state.BroadcastSeq,
		})

		return
	}

	channels := make([]sim.ChannelID, 0, len(state.MarkerReceived))
	for ch := range state.MarkerReceived {
		channels = append(channels, ch)
	}

	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	for _, ch := range channels {
		t.insert(SnapshotTable, SnapshotEntry{
			Node:           int(id),
			Channel:        string(ch),
			MarkerReceived: state.MarkerReceived[ch],
			InTransit:      len(state.InTransit[ch]),
			BroadcastSeq:   state.BroadcastSeq,
		})
	}
}
