package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"capture-tool/src/backend"
	"capture-tool/src/chart"
	"capture-tool/src/config"
	"capture-tool/src/events"
	"capture-tool/src/ingest"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"
	"capture-tool/src/registry"
	"capture-tool/src/trigger"

	"github.com/hashicorp/go-multierror"
)

var ErrNoSink = errors.New("session: surface is not a render sink and no sink was given")

// -----------------------------------------------------------------------------

// Options supplies the pieces a Session does not build itself.
type Options struct {
	Surface interfaces.ISurface

	// Sink defaults to Surface when it also renders charts.
	Sink interfaces.IRenderSink

	// Device backs the built-in backend; defaults to a simulated device.
	Device interfaces.IDevice

	Reporters []interfaces.IReadinessReporter

	// Timer drives construction delays and the channels timeout.
	Timer chart.TimerFunc
}

// -----------------------------------------------------------------------------

// Session is one run of the capture client: a bus, the chart pipeline on
// the client side and optionally the backend answering it.
type Session struct {
	Config *config.Config
	Logger *logger.Logger

	Bus      *events.Bus
	Charts   *chart.Controller
	Pipeline *ingest.Pipeline
	Trigger  *trigger.Emitter
	Registry *registry.Registry
	Backend  *backend.Backend

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// -----------------------------------------------------------------------------

func New(cfg *config.Config, opts Options, log *logger.Logger) (*Session, error) {
	if log == nil {
		log = logger.Nop()
	}
	if opts.Surface == nil {
		return nil, fmt.Errorf("session: surface is required")
	}
	sink := opts.Sink
	if sink == nil {
		s, ok := opts.Surface.(interfaces.IRenderSink)
		if !ok {
			return nil, ErrNoSink
		}
		sink = s
	}

	topic := registry.TruncateAt(cfg.Session.TopicSeparator)
	bus := events.NewBus(log.Named("Bus"))

	charts := chart.NewController(chart.Options{
		Parent:          cfg.Render.ParentContainer,
		ContainerPrefix: cfg.Chart.ContainerPrefix,
		Delay:           cfg.ConstructionDelay(),
		Chart:           cfg.Chart,
		Timer:           opts.Timer,
	}, opts.Surface, sink, fanout(opts.Reporters), log.Named("Charts"))

	pipeline := ingest.NewPipeline(bus, charts, ingest.Options{
		ReadinessTimeout: cfg.ReadinessTimeout(),
		QueueSize:        cfg.Session.DeliveryQueueSize,
	}, log.Named("Ingest"))

	emitter := trigger.NewEmitter(bus, log.Named("Trigger"))

	reg := registry.NewRegistry(bus, opts.Surface, charts, pipeline, emitter, registry.Options{
		Topic:           topic,
		Collision:       registry.CollisionPolicy(cfg.Session.TopicCollision),
		ChannelsTimeout: cfg.ChannelsTimeout(),
		Timer:           opts.Timer,
	}, log.Named("Registry"))

	s := &Session{
		Config:   cfg,
		Logger:   log,
		Bus:      bus,
		Charts:   charts,
		Pipeline: pipeline,
		Trigger:  emitter,
		Registry: reg,
	}

	if cfg.Backend.Enabled {
		device := opts.Device
		if device == nil {
			d := cfg.Backend.Device
			device = backend.NewSimulated(d.Samples, d.BlockSize, d.Amplitude, d.Period)
		}
		s.Backend = backend.NewBackend(bus, device, backend.Options{
			Channels:      cfg.Backend.Channels,
			AnnounceDelay: cfg.AnnounceDelay(),
			MaxRetries:    cfg.Backend.MaxRetries,
			Topic:         topic,
		}, log.Named("Backend"))
	}

	return s, nil
}

// -----------------------------------------------------------------------------

// Start brings the backend up first so the channel request has a listener.
func (s *Session) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.Backend != nil {
		if err := s.Backend.Start(s.ctx); err != nil {
			return fmt.Errorf("failed to start backend: %w", err)
		}
	}
	if err := s.Registry.Start(s.ctx); err != nil {
		return fmt.Errorf("failed to start registry: %w", err)
	}
	return nil
}

// Wait blocks until the channel announcement has been handled.
func (s *Session) Wait(ctx context.Context) ([]models.SignalID, error) {
	return s.Registry.Wait(ctx)
}

// -----------------------------------------------------------------------------

// Close stops every worker and removes every chart.
func (s *Session) Close() error {
	var result error
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.Backend != nil {
			if err := s.Backend.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := s.Pipeline.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		if err := s.Charts.TeardownAll(); err != nil {
			result = multierror.Append(result, err)
		}
		s.Bus.Close()

		stats := s.Bus.Stats()
		s.Logger.Info("Session closed: %d events emitted, %d delivered, %d unmatched", stats.Emitted, stats.Delivered, stats.Unmatched)
	})
	return result
}
