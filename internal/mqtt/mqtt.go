// Package mqtt mirrors console activity to an MQTT broker and accepts raw
// input from virtual panels, with abstraction for testing.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sweeney/spacebus/internal/dispatch"
	"github.com/sweeney/spacebus/internal/input"
	"github.com/sweeney/spacebus/internal/state"
)

// DefaultPrefix is the topic root used when none is configured.
const DefaultPrefix = "spacebus"

// Topics builds topic names under a common prefix.
type Topics struct {
	Prefix string
}

// Event is the topic for dispatched events of kind k.
func (t Topics) Event(k dispatch.Kind) string { return t.Prefix + "/events/" + string(k) }

// State is the topic for changes of cell name.
func (t Topics) State(name string) string { return t.Prefix + "/state/" + name }

// System is the topic for lifecycle events.
func (t Topics) System() string { return t.Prefix + "/system" }

// Input is the subscription filter for virtual panel input.
func (t Topics) Input() string { return t.Prefix + "/input/+" }

// InputChannel extracts the channel name from an input topic.
func (t Topics) InputChannel(topic string) (string, bool) {
	ch, ok := strings.CutPrefix(topic, t.Prefix+"/input/")
	if !ok || ch == "" || strings.Contains(ch, "/") {
		return "", false
	}
	return ch, true
}

// Publisher publishes console activity to MQTT.
type Publisher interface {
	// PublishEvent sends a dispatched event.
	// Returns error if publishing fails (should not crash the process).
	PublishEvent(e dispatch.Event) error

	// PublishState sends an applied cell change.
	PublishState(c state.Change) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// InputSource delivers raw input received from the broker.
type InputSource interface {
	Inputs() <-chan input.RawEvent
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// EventPayload is the message published for a dispatched event.
type EventPayload struct {
	Event EventPayloadInner `json:"event"`
}

// EventPayloadInner contains the event details.
type EventPayloadInner struct {
	Timestamp string         `json:"timestamp"`
	Kind      string         `json:"kind"`
	Args      map[string]any `json:"args,omitempty"`
}

// FormatEventPayload creates the JSON payload for a dispatched event.
func FormatEventPayload(e dispatch.Event, ts time.Time) ([]byte, error) {
	return json.Marshal(EventPayload{Event: EventPayloadInner{
		Timestamp: ts.UTC().Format(time.RFC3339),
		Kind:      string(e.Kind),
		Args:      e.Args,
	}})
}

// StatePayload is the message published for a cell change.
type StatePayload struct {
	State StatePayloadInner `json:"state"`
}

// StatePayloadInner contains the change details.
type StatePayloadInner struct {
	Timestamp string      `json:"timestamp"`
	Name      string      `json:"name"`
	Kind      string      `json:"kind"`
	Old       state.Value `json:"old"`
	New       state.Value `json:"new"`
	Reset     bool        `json:"reset,omitempty"`
}

// FormatStatePayload creates the JSON payload for a cell change.
func FormatStatePayload(c state.Change, ts time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{State: StatePayloadInner{
		Timestamp: ts.UTC().Format(time.RFC3339),
		Name:      c.Name,
		Kind:      c.Kind.String(),
		Old:       c.Old,
		New:       c.New,
		Reset:     c.Reset,
	}})
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (LWT, RECONNECTED) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

type inputPayload struct {
	Value *float64 `json:"value"`
	Axis  bool     `json:"axis"`
}

// ParseInput decodes a virtual panel message for channel. The payload is
// either a bare number ("1", "-0.5") or {"value": n, "axis": bool}.
func ParseInput(channel string, payload []byte) (input.RawEvent, error) {
	text := strings.TrimSpace(string(payload))
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return input.RawEvent{Channel: channel, Value: f, Axis: strings.Contains(channel, "axis")}, nil
	}
	var p inputPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return input.RawEvent{}, fmt.Errorf("parse input %s: %w", channel, err)
	}
	if p.Value == nil {
		return input.RawEvent{}, fmt.Errorf("parse input %s: missing value", channel)
	}
	return input.RawEvent{Channel: channel, Value: *p.Value, Axis: p.Axis}, nil
}
