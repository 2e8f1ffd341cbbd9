package interfaces

import "capture-tool/src/models"

// Handler receives one event. Handlers run on the emitting goroutine and
// must not block.
type Handler func(event models.MEvent)

// -----------------------------------------------------------------------------
// IEventBus is the topic-keyed channel between the client core and the backend.
// -----------------------------------------------------------------------------

type IEventBus interface {

	// Emit marshals payload to JSON and delivers it to every listener of topic.
	// A nil payload is sent as an empty event.
	Emit(topic string, payload interface{}) error

	// -----------------------------------------------------------------------------

	// Listen registers a persistent handler and returns its listener id.
	Listen(topic string, h Handler) (string, error)

	// -----------------------------------------------------------------------------

	// Once registers a handler that receives only the first matching event.
	Once(topic string, h Handler) (string, error)

	// -----------------------------------------------------------------------------

	// Unlisten removes a listener by id.
	Unlisten(id string) error
}
