package mqtt

import (
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/input"
	"github.com/sweeney/spacebus/internal/state"
)

// FakePublisher records published messages for test assertions.
type FakePublisher struct {
	// Events contains all dispatched events that were published.
	Events []dispatch.Event

	// States contains all cell changes that were published.
	States []state.Change

	// Payloads contains the JSON payloads of events and states, in order.
	Payloads [][]byte

	// SystemEvents contains all system events that were published.
	SystemEvents []SystemEvent

	// SystemPayloads contains the JSON payloads for system events.
	SystemPayloads [][]byte

	// PublishError, if set, will be returned by PublishEvent and PublishState.
	PublishError error

	// PublishSystemError, if set, will be returned by PublishSystem.
	PublishSystemError error

	// Closed tracks if Close was called.
	Closed bool

	// Connected controls the return value of IsConnected.
	Connected bool

	// Now stamps payloads; zero time when nil.
	Now func() time.Time

	inputs chan input.RawEvent
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{inputs: make(chan input.RawEvent, 64)}
}

func (f *FakePublisher) stamp() time.Time {
	if f.Now == nil {
		return time.Time{}
	}
	return f.Now()
}

// PublishEvent records the dispatched event.
func (f *FakePublisher) PublishEvent(e dispatch.Event) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatEventPayload(e, f.stamp())
	if err != nil {
		return err
	}
	f.Events = append(f.Events, e)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishState records the cell change.
func (f *FakePublisher) PublishState(c state.Change) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	payload, err := FormatStatePayload(c, f.stamp())
	if err != nil {
		return err
	}
	f.States = append(f.States, c)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// PublishSystem records the system event.
func (f *FakePublisher) PublishSystem(event SystemEvent) error {
	if f.PublishSystemError != nil {
		return f.PublishSystemError
	}

	f.SystemEvents = append(f.SystemEvents, event)

	payload, err := FormatSystemPayload(event)
	if err != nil {
		return err
	}
	f.SystemPayloads = append(f.SystemPayloads, payload)

	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}

// IsConnected reports whether the fake publisher is "connected".
func (f *FakePublisher) IsConnected() bool {
	return f.Connected
}

// Inputs returns the channel fed by Inject.
func (f *FakePublisher) Inputs() <-chan input.RawEvent {
	return f.inputs
}

// Inject simulates a message arriving on an input topic.
func (f *FakePublisher) Inject(ev input.RawEvent) {
	f.inputs <- ev
}

// Kinds returns the kinds of the recorded events, in order.
func (f *FakePublisher) Kinds() []dispatch.Kind {
	out := make([]dispatch.Kind, len(f.Events))
	for i, e := range f.Events {
		out[i] = e.Kind
	}
	return out
}

// Reset clears recorded messages.
func (f *FakePublisher) Reset() {
	f.Events = nil
	f.States = nil
	f.Payloads = nil
	f.SystemEvents = nil
	f.SystemPayloads = nil
	f.Closed = false
	f.PublishError = nil
	f.PublishSystemError = nil
	f.Connected = false
}
