package trigger

import (
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"
)

// Emitter asks the backend for a signal's data. It keeps no state and may
// fire any number of times.
type Emitter struct {
	bus    interfaces.IEventBus
	topic  string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewEmitter(bus interfaces.IEventBus, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.Nop()
	}
	return &Emitter{bus: bus, topic: models.TopicReturnTrigger, Logger: log}
}

// -----------------------------------------------------------------------------

// Trigger emits the request carrying the signal identifier verbatim.
func (e *Emitter) Trigger(signal models.SignalID) error {
	if err := e.bus.Emit(e.topic, signal); err != nil {
		e.Logger.Error("Failed to emit trigger for %s: %v", signal, err)
		return err
	}
	e.Logger.Debug("Trigger emitted for %s", signal)
	return nil
}

// -----------------------------------------------------------------------------

// Handler returns a closure suitable for a control's activation callback.
func (e *Emitter) Handler(signal models.SignalID) func() {
	return func() {
		_ = e.Trigger(signal)
	}
}
