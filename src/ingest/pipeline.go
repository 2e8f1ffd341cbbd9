package ingest

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
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
	ErrAlreadySubscribed = errors.New("ingest: signal already subscribed")
	ErrNotSubscribed     = errors.New("ingest: signal not subscribed")
)

// -----------------------------------------------------------------------------

// Charts is the part of the chart controller the pipeline depends on.
type Charts interface {
	Readiness(signal models.SignalID) (*chart.Readiness, bool)
	MarkFailed(signal models.SignalID, err error)
}

// Options configures a Pipeline.
type Options struct {
	// ReadinessTimeout bounds each wait for a chart; zero waits forever.
	ReadinessTimeout time.Duration

	// QueueSize caps pending batches per signal before the oldest is discarded.
	QueueSize int
}

// SubscriptionStats counts what happened to one signal's deliveries.
type SubscriptionStats struct {
	Signal     models.SignalID `json:"signal"`
	Topic      string          `json:"topic"`
	Received   uint64          `json:"received"`
	Rendered   uint64          `json:"rendered"`
	Dropped    uint64          `json:"dropped"`
	Superseded uint64          `json:"superseded"`
	LastBatch  int             `json:"last_batch"`
}

// -----------------------------------------------------------------------------

type subscription struct {
	signal     models.SignalID
	topic      string
	listenerID string
	queue      chan models.MEvent
	ctx        context.Context
	cancel     context.CancelFunc
	stopped    chan struct{}

	received   atomic.Uint64
	rendered   atomic.Uint64
	dropped    atomic.Uint64
	superseded atomic.Uint64
	lastBatch  atomic.Int64
}

// enqueue never blocks the emitter. When the queue is full the oldest
// pending batch is discarded; each delivery replaces the whole buffer, so
// only the newest batch matters to the chart.
func (s *subscription) enqueue(event models.MEvent) {
	s.received.Add(1)
	if s.ctx.Err() != nil {
		return
	}
	for {
		select {
		case s.queue <- event:
			return
		default:
		}
		select {
		case <-s.queue:
			s.superseded.Add(1)
		default:
		}
	}
}

// -----------------------------------------------------------------------------

// Pipeline streams sample batches from the bus into charts. Each signal has
// one worker, the only writer of that signal's chart.
type Pipeline struct {
	bus    interfaces.IEventBus
	charts Charts
	opts   Options
	Logger *logger.Logger

	mu   sync.Mutex
	subs map[models.SignalID]*subscription
}

// -----------------------------------------------------------------------------

func NewPipeline(bus interfaces.IEventBus, charts Charts, opts Options, log *logger.Logger) *Pipeline {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Pipeline{
		bus:    bus,
		charts: charts,
		opts:   opts,
		Logger: log,
		subs:   make(map[models.SignalID]*subscription),
	}
}

// -----------------------------------------------------------------------------

// Subscribe starts streaming topic into the signal's chart until ctx ends
// or Unsubscribe is called.
func (p *Pipeline) Subscribe(ctx context.Context, signal models.SignalID, topic string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.subs[signal]; ok {
		return ErrAlreadySubscribed
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &subscription{
		signal:  signal,
		topic:   topic,
		queue:   make(chan models.MEvent, p.opts.QueueSize),
		ctx:     subCtx,
		cancel:  cancel,
		stopped: make(chan struct{}),
	}

	id, err := p.bus.Listen(topic, sub.enqueue)
	if err != nil {
		cancel()
		return err
	}
	sub.listenerID = id
	p.subs[signal] = sub

	go p.run(sub)
	p.Logger.Debug("Subscribed %s to topic %q", signal, topic)
	return nil
}

// -----------------------------------------------------------------------------

func (p *Pipeline) run(sub *subscription) {
	defer close(sub.stopped)

	for {
		select {
		case event := <-sub.queue:
			p.deliver(sub.ctx, sub, event)
		case <-sub.ctx.Done():
			return
		}
	}
}

// -----------------------------------------------------------------------------

func (p *Pipeline) deliver(ctx context.Context, sub *subscription, event models.MEvent) {
	batch, err := events.DecodeBatch(event)
	if err != nil {
		sub.dropped.Add(1)
		p.Logger.Warning("Dropping batch for %s: %v", sub.signal, err)
		return
	}

	ready, ok := p.charts.Readiness(sub.signal)
	if !ok {
		sub.dropped.Add(1)
		p.Logger.Warning("Dropping batch for %s: no chart scheduled", sub.signal)
		return
	}

	inst, err := p.await(ctx, sub.signal, ready)
	if err != nil {
		sub.dropped.Add(1)
		if ctx.Err() == nil {
			p.Logger.Error("Dropping batch for %s: %v", sub.signal, err)
		}
		return
	}

	// full replace: a fresh buffer is built, committed and redrawn once
	if err := inst.SetBuffer(BuildSeries(batch), true); err != nil {
		sub.dropped.Add(1)
		p.Logger.Error("Failed to render batch for %s: %v", sub.signal, err)
		return
	}

	sub.rendered.Add(1)
	sub.lastBatch.Store(int64(len(batch)))
}

// -----------------------------------------------------------------------------

// await is checked on every delivery; after the chart is built it returns
// immediately.
func (p *Pipeline) await(ctx context.Context, signal models.SignalID, ready *chart.Readiness) (interfaces.IChartInstance, error) {
	if p.opts.ReadinessTimeout <= 0 {
		return ready.Wait(ctx)
	}

	wctx, cancel := context.WithTimeout(ctx, p.opts.ReadinessTimeout)
	defer cancel()

	inst, err := ready.Wait(wctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		terr := &helpers.ReadinessTimeoutError{Signal: signal, Timeout: p.opts.ReadinessTimeout}
		p.charts.MarkFailed(signal, terr)
		return nil, terr
	}
	return inst, err
}

// -----------------------------------------------------------------------------

// Unsubscribe stops the signal's worker.
func (p *Pipeline) Unsubscribe(signal models.SignalID) error {
	p.mu.Lock()
	sub, ok := p.subs[signal]
	if ok {
		delete(p.subs, signal)
	}
	p.mu.Unlock()

	if !ok {
		return ErrNotSubscribed
	}

	err := p.bus.Unlisten(sub.listenerID)
	sub.cancel()
	<-sub.stopped
	return err
}

// -----------------------------------------------------------------------------

// Close stops every worker.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	signals := make([]models.SignalID, 0, len(p.subs))
	for s := range p.subs {
		signals = append(signals, s)
	}
	p.mu.Unlock()

	var result error
	for _, s := range signals {
		if err := p.Unsubscribe(s); err != nil && !errors.Is(err, ErrNotSubscribed) && !errors.Is(err, events.ErrListenerNotFound) {
			result = multierror.Append(result, err)
		}
	}
	return result
}

// -----------------------------------------------------------------------------

// Stats returns per-signal counters ordered by signal.
func (p *Pipeline) Stats() []SubscriptionStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]SubscriptionStats, 0, len(p.subs))
	for _, s := range p.subs {
		out = append(out, SubscriptionStats{
			Signal:     s.signal,
			Topic:      s.topic,
			Received:   s.received.Load(),
			Rendered:   s.rendered.Load(),
			Dropped:    s.dropped.Load(),
			Superseded: s.superseded.Load(),
			LastBatch:  int(s.lastBatch.Load()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Signal < out[j].Signal })
	return out
}
