package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"capture-tool/src/chart"
	"capture-tool/src/events"
	"capture-tool/src/helpers"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"

	"github.com/hashicorp/go-multierror"
)

var (
	ErrAlreadyStarted  = errors.New("registry: already started")
	ErrAlreadyReceived = errors.New("registry: channels already received")
)

// -----------------------------------------------------------------------------

// State of the channel announcement.
type State int

const (
	AwaitingChannels State = iota
	ChannelsReceived
)

func (s State) String() string {
	switch s {
	case AwaitingChannels:
		return "awaiting-channels"
	case ChannelsReceived:
		return "channels-received"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// -----------------------------------------------------------------------------

// Scheduler builds charts.
type Scheduler interface {
	Schedule(ctx context.Context, signal models.SignalID) (*chart.Readiness, error)
	Teardown(signal models.SignalID) error
}

// Subscriber streams a topic into a signal's chart.
type Subscriber interface {
	Subscribe(ctx context.Context, signal models.SignalID, topic string) error
}

// Triggerer produces a control's activation callback.
type Triggerer interface {
	Handler(signal models.SignalID) func()
}

// Options configures a Registry.
type Options struct {
	Topic     TopicFunc
	Collision CollisionPolicy

	// ChannelsTimeout reports a missing announcement; zero waits forever.
	ChannelsTimeout time.Duration
	Timer           chart.TimerFunc
}

// -----------------------------------------------------------------------------

// Registry turns the backend's one-time channel announcement into controls,
// charts and subscriptions.
type Registry struct {
	bus      interfaces.IEventBus
	surface  interfaces.ISurface
	charts   Scheduler
	pipeline Subscriber
	trigger  Triggerer
	opts     Options
	Logger   *logger.Logger

	mu       sync.Mutex
	started  bool
	state    State
	signals  []models.SignalID
	topics   map[string][]models.SignalID
	ignored  int
	received chan struct{}
	timedOut chan struct{}
}

// -----------------------------------------------------------------------------

func NewRegistry(bus interfaces.IEventBus, surface interfaces.ISurface, charts Scheduler, pipeline Subscriber, trigger Triggerer, opts Options, log *logger.Logger) *Registry {
	if opts.Topic == nil {
		opts.Topic = TruncateAt(".")
	}
	if opts.Collision == "" {
		opts.Collision = CollisionShare
	}
	if opts.Timer == nil {
		opts.Timer = chart.DefaultTimer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{
		bus:      bus,
		surface:  surface,
		charts:   charts,
		pipeline: pipeline,
		trigger:  trigger,
		opts:     opts,
		Logger:   log,
		state:    AwaitingChannels,
		topics:   make(map[string][]models.SignalID),
		received: make(chan struct{}),
		timedOut: make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Start listens once for the announcement and then requests it.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	r.mu.Unlock()

	_, err := r.bus.Once(models.TopicButtons, func(event models.MEvent) {
		names, err := events.DecodeStrings(event)
		if err != nil {
			r.Logger.Error("Ignoring channel announcement: %v", err)
			return
		}
		if err := r.Announce(ctx, names); err != nil && !errors.Is(err, ErrAlreadyReceived) {
			r.Logger.Error("Channel announcement incomplete: %v", err)
		}
	})
	if err != nil {
		return err
	}

	if r.opts.ChannelsTimeout > 0 {
		r.watchTimeout(ctx)
	}

	if err := r.bus.Emit(models.TopicRequestChannels, nil); err != nil {
		return fmt.Errorf("failed to request channels: %w", err)
	}
	r.Logger.Info("Requested available channels")
	return nil
}

// -----------------------------------------------------------------------------

func (r *Registry) watchTimeout(ctx context.Context) {
	timeCh, stop := r.opts.Timer(r.opts.ChannelsTimeout)
	go func() {
		select {
		case <-timeCh:
			r.mu.Lock()
			waiting := r.state == AwaitingChannels
			r.mu.Unlock()
			if waiting {
				r.Logger.Warning("%v", &helpers.ChannelsTimeoutError{Timeout: r.opts.ChannelsTimeout})
				close(r.timedOut)
			}
		case <-r.received:
			stop()
		case <-ctx.Done():
			stop()
		}
	}()
}

// -----------------------------------------------------------------------------

// Announce registers the channel list. Only the first call has any effect;
// later calls return ErrAlreadyReceived.
func (r *Registry) Announce(ctx context.Context, names []string) error {
	r.mu.Lock()
	if r.state == ChannelsReceived {
		r.ignored++
		r.mu.Unlock()
		r.Logger.Debug("Ignoring repeated channel announcement (%d names)", len(names))
		return ErrAlreadyReceived
	}
	r.state = ChannelsReceived
	r.mu.Unlock()
	defer close(r.received)

	r.Logger.Info("Received %d channel(s)", len(names))

	var result error
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name == "" {
			r.Logger.Warning("Skipping empty channel name")
			continue
		}
		if _, dup := seen[name]; dup {
			r.Logger.Warning("Skipping duplicate channel %s", name)
			continue
		}
		seen[name] = struct{}{}

		if err := r.register(ctx, name); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// -----------------------------------------------------------------------------

func (r *Registry) register(ctx context.Context, signal models.SignalID) error {
	topic := r.opts.Topic(signal)

	r.mu.Lock()
	owners := r.topics[topic]
	r.mu.Unlock()

	if len(owners) > 0 {
		collision := &helpers.TopicCollisionError{Topic: topic, Signal: signal, Existing: owners[0]}
		if r.opts.Collision == CollisionReject {
			r.Logger.Error("%v", collision)
			return collision
		}
		r.Logger.Warning("%v; both charts will render its batches", collision)
	}

	if err := r.surface.CreateControl(signal, r.trigger.Handler(signal)); err != nil {
		return fmt.Errorf("failed to create control %s: %w", signal, err)
	}
	if _, err := r.charts.Schedule(ctx, signal); err != nil {
		return fmt.Errorf("failed to schedule chart %s: %w", signal, err)
	}
	if err := r.pipeline.Subscribe(ctx, signal, topic); err != nil {
		// surfaces cannot remove controls, so only the chart is undone
		if terr := r.charts.Teardown(signal); terr != nil {
			r.Logger.Warning("Failed to remove chart %s: %v", signal, terr)
		}
		return fmt.Errorf("failed to subscribe %s: %w", signal, err)
	}

	r.mu.Lock()
	r.signals = append(r.signals, signal)
	r.topics[topic] = append(r.topics[topic], signal)
	r.mu.Unlock()

	r.Logger.Debug("Registered %s on topic %q", signal, topic)
	return nil
}

// -----------------------------------------------------------------------------

// Wait blocks until the announcement has been handled. A late announcement
// takes precedence over an earlier channels timeout.
func (r *Registry) Wait(ctx context.Context) ([]models.SignalID, error) {
	select {
	case <-r.received:
		return r.Signals(), nil
	case <-r.timedOut:
		select {
		case <-r.received:
			return r.Signals(), nil
		default:
		}
		return nil, &helpers.ChannelsTimeoutError{Timeout: r.opts.ChannelsTimeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// -----------------------------------------------------------------------------

func (r *Registry) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Signals lists registered signals in announcement order.
func (r *Registry) Signals() []models.SignalID {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.SignalID(nil), r.signals...)
}

// Topics maps each topic to the signals subscribed to it.
func (r *Registry) Topics() map[string][]models.SignalID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string][]models.SignalID, len(r.topics))
	for t, s := range r.topics {
		out[t] = append([]models.SignalID(nil), s...)
	}
	return out
}

// Ignored counts repeated announcements that were discarded.
func (r *Registry) Ignored() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ignored
}
