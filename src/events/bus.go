package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"

	"github.com/google/uuid"
)

var (
	ErrBusClosed        = errors.New("events: bus is closed")
	ErrListenerNotFound = errors.New("events: listener not found")
	ErrNilHandler       = errors.New("events: nil handler provided")
	ErrEmptyTopic       = errors.New("events: empty topic")
)

var _ interfaces.IEventBus = (*Bus)(nil)

// -----------------------------------------------------------------------------

type listener struct {
	id      string
	topic   string
	once    bool
	handler interfaces.Handler
}

// BusStats counts traffic across the bus.
type BusStats struct {
	Emitted   uint64
	Delivered uint64
	Unmatched uint64
}

// -----------------------------------------------------------------------------

// Bus is an in-process topic bus. Topics are matched exactly.
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]*listener // by topic, registration order
	byID      map[string]*listener
	closed    bool
	logger    *logger.Logger

	emitted   atomic.Uint64
	delivered atomic.Uint64
	unmatched atomic.Uint64
}

// -----------------------------------------------------------------------------

func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{
		listeners: make(map[string][]*listener),
		byID:      make(map[string]*listener),
		logger:    log,
	}
}

// -----------------------------------------------------------------------------

func (b *Bus) Listen(topic string, h interfaces.Handler) (string, error) {
	return b.add(topic, h, false)
}

// -----------------------------------------------------------------------------

func (b *Bus) Once(topic string, h interfaces.Handler) (string, error) {
	return b.add(topic, h, true)
}

// -----------------------------------------------------------------------------

func (b *Bus) add(topic string, h interfaces.Handler, once bool) (string, error) {
	if topic == "" {
		return "", ErrEmptyTopic
	}
	if h == nil {
		return "", ErrNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return "", ErrBusClosed
	}

	l := &listener{id: uuid.NewString(), topic: topic, once: once, handler: h}
	b.listeners[topic] = append(b.listeners[topic], l)
	b.byID[l.id] = l
	return l.id, nil
}

// -----------------------------------------------------------------------------

func (b *Bus) Unlisten(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.byID[id]
	if !ok {
		return ErrListenerNotFound
	}
	b.removeLocked(l)
	return nil
}

// -----------------------------------------------------------------------------

func (b *Bus) removeLocked(l *listener) {
	delete(b.byID, l.id)

	list := b.listeners[l.topic]
	for i, cur := range list {
		if cur == l {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.listeners, l.topic)
	} else {
		b.listeners[l.topic] = list
	}
}

// -----------------------------------------------------------------------------

func (b *Bus) Emit(topic string, payload interface{}) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
		}
		raw = data
	}

	return b.Dispatch(models.MEvent{Topic: topic, Payload: raw})
}

// -----------------------------------------------------------------------------

// Dispatch delivers an already-encoded event. One-shot listeners are
// detached before any handler runs, so concurrent dispatches never hand the
// same one-shot listener two events.
func (b *Bus) Dispatch(event models.MEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}

	list := b.listeners[event.Topic]
	targets := make([]*listener, len(list))
	copy(targets, list)
	for _, l := range targets {
		if l.once {
			b.removeLocked(l)
		}
	}
	b.mu.Unlock()

	b.emitted.Add(1)
	if len(targets) == 0 {
		b.unmatched.Add(1)
		b.logger.Debug("No listener for topic %q", event.Topic)
		return nil
	}

	for _, l := range targets {
		l.handler(event)
		b.delivered.Add(1)
	}
	return nil
}

// -----------------------------------------------------------------------------

// ListenerCount returns the number of listeners registered for topic.
func (b *Bus) ListenerCount(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[topic])
}

// -----------------------------------------------------------------------------

func (b *Bus) Stats() BusStats {
	return BusStats{
		Emitted:   b.emitted.Load(),
		Delivered: b.delivered.Load(),
		Unmatched: b.unmatched.Load(),
	}
}

// -----------------------------------------------------------------------------

// Close drops every listener; later calls fail with ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.listeners = nil
	b.byID = nil
}
