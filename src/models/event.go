package models

import "encoding/json"

// Event topics shared by the client core and the backend.
const (
	// TopicRequestChannels asks the backend to announce its channels.
	TopicRequestChannels = "buttons:request"

	// TopicButtons carries the announcement.
	TopicButtons = "buttons"

	// TopicReturnTrigger carries a signal identifier back to the backend.
	TopicReturnTrigger = "returnTrigger"
)

// MEvent is a single message travelling over the event bus.
type MEvent struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// -----------------------------------------------------------------------------
// Browser wire messages
// -----------------------------------------------------------------------------

// Message types pushed to websocket clients.
const (
	WireControl   = "control"
	WireContainer = "container"
	WireConstruct = "construct"
	WireSetData   = "set_data"
	WireRemove    = "remove"
)

type MWireMessage struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Parent    string         `json:"parent,omitempty"`
	Container string         `json:"container,omitempty"`
	Options   *MChartOptions `json:"options,omitempty"`
	Data      []MSampleBatch `json:"data,omitempty"`
	Redraw    bool           `json:"redraw,omitempty"`
}

// MClientCommand is sent by websocket clients.
type MClientCommand struct {
	Command string `json:"command"` // "activate"
	ID      string `json:"id"`
}
