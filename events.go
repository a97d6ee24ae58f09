package cncstream

import "github.com/dustwave-cnc/cncstream/protocol"

// EventKind tags the variant carried by Event, spec §9's "thread-to-
// thread callbacks as message passing": rather than capturing closures
// on the IO thread, every callback becomes a typed message pushed onto
// a consumer-supplied channel.
type EventKind int

const (
	EventConnectionChanged EventKind = iota
	EventStatusUpdate
	EventRawLine
	EventLineAcked
	EventProgressUpdate
	EventError
	EventAlarm
	EventStreamingError
	EventToolChange
)

// Event is the tagged-variant payload delivered through a Mailbox. Only
// the field(s) matching Kind are meaningful; the rest are zero.
type Event struct {
	Kind EventKind

	Connected bool
	Version   string

	Status protocol.MachineStatus

	RawLine string
	Sent    bool

	Ack LineAck

	Progress StreamProgress

	Message string

	AlarmCode int
	AlarmText string

	StreamErr StreamingError

	ToolNumber int
}

// Mailbox is the single-producer (IO thread) / single-consumer
// (consumer thread) channel callbacks are delivered through. The IO
// thread never invokes consumer code directly; it only ever posts here.
// When the consumer isn't draining and the buffer fills up, post drops
// further events instead of blocking the IO thread.
type Mailbox struct {
	ch chan Event
}

// NewMailbox creates a mailbox with the given buffer depth. A consumer
// should size this to the burst of events one streaming tick can
// plausibly produce; 256 is a reasonable default for interactive use.
func NewMailbox(depth int) *Mailbox {
	if depth <= 0 {
		depth = 256
	}
	return &Mailbox{ch: make(chan Event, depth)}
}

// Events returns the channel to range/select over on the consumer side.
func (m *Mailbox) Events() <-chan Event { return m.ch }

// post is best-effort: if the channel is full, the event is dropped
// rather than blocking the IO thread indefinitely on a consumer that
// isn't draining.
func (m *Mailbox) post(e Event) {
	select {
	case m.ch <- e:
	default:
	}
}
