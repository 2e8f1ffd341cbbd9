package backend

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"capture-tool/src/events"
	"capture-tool/src/helpers"
	"capture-tool/src/interfaces"
	"capture-tool/src/logger"
	"capture-tool/src/models"
	"capture-tool/src/registry"

	"github.com/hashicorp/go-multierror"
)

var ErrAlreadyStarted = errors.New("backend: already started")

// -----------------------------------------------------------------------------

// Options configures a Backend.
type Options struct {
	Channels      []string
	AnnounceDelay time.Duration
	MaxRetries    int
	RetryDelay    time.Duration

	// Topic must match the derivation used by the registry.
	Topic registry.TopicFunc
}

// -----------------------------------------------------------------------------

// Backend answers channel requests and runs captures when a signal is
// triggered, publishing the samples on the signal's topic.
type Backend struct {
	bus    interfaces.IEventBus
	device interfaces.IDevice
	opts   Options
	Logger *logger.Logger

	mu        sync.Mutex
	started   bool
	listeners []string
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	// one capture at a time per device
	captureMu sync.Mutex
}

// -----------------------------------------------------------------------------

func NewBackend(bus interfaces.IEventBus, device interfaces.IDevice, opts Options, log *logger.Logger) *Backend {
	if opts.Topic == nil {
		opts.Topic = registry.TruncateAt(".")
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 50 * time.Millisecond
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Backend{bus: bus, device: device, opts: opts, Logger: log}
}

// -----------------------------------------------------------------------------

// Start registers the backend's listeners. Work started by events stops when
// ctx is cancelled or Close is called.
func (b *Backend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return ErrAlreadyStarted
	}
	b.started = true

	ctx, b.cancel = context.WithCancel(ctx)

	id, err := b.bus.Listen(models.TopicRequestChannels, func(models.MEvent) {
		b.spawn(func() { b.announce(ctx) })
	})
	if err != nil {
		return err
	}
	b.listeners = append(b.listeners, id)

	id, err = b.bus.Listen(models.TopicReturnTrigger, func(event models.MEvent) {
		signal, err := events.DecodeString(event)
		if err != nil {
			b.Logger.Error("Ignoring trigger: %v", err)
			return
		}
		b.spawn(func() {
			if err := b.Publish(ctx, signal); err != nil {
				b.Logger.Error("Capture of %s failed: %v", signal, err)
			}
		})
	})
	if err != nil {
		return err
	}
	b.listeners = append(b.listeners, id)

	b.Logger.Info("Backend serving %d channel(s)", len(b.opts.Channels))
	return nil
}

func (b *Backend) spawn(fn func()) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		fn()
	}()
}

// -----------------------------------------------------------------------------

func (b *Backend) announce(ctx context.Context) {
	if b.opts.AnnounceDelay > 0 {
		t := time.NewTimer(b.opts.AnnounceDelay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return
		}
	}

	if err := b.bus.Emit(models.TopicButtons, b.opts.Channels); err != nil {
		b.Logger.Error("Failed to announce channels: %v", err)
		return
	}
	b.Logger.Info("Announced channels %v", b.opts.Channels)
}

// -----------------------------------------------------------------------------

// Publish captures signal and emits the samples on its topic.
func (b *Backend) Publish(ctx context.Context, signal models.SignalID) error {
	samples, err := b.Capture(ctx, signal)
	if err != nil {
		return err
	}

	topic := b.opts.Topic(signal)
	if err := b.bus.Emit(topic, samples); err != nil {
		return fmt.Errorf("failed to emit %s: %w", topic, err)
	}
	b.Logger.Debug("Published %d samples of %s on %q", len(samples), signal, topic)
	return nil
}

// -----------------------------------------------------------------------------

// Capture triggers the device for signal and reads back every block.
func (b *Backend) Capture(ctx context.Context, signal models.SignalID) (models.MSampleBatch, error) {
	b.captureMu.Lock()
	defer b.captureMu.Unlock()

	if _, err := b.call(ctx, signal+rpcTrigger, nil); err != nil {
		return nil, err
	}

	size, err := b.callCount(ctx, signal+rpcSize)
	if err != nil {
		return nil, err
	}
	blockSize, err := b.callCount(ctx, signal+rpcBlockSize)
	if err != nil {
		return nil, err
	}
	if blockSize == 0 {
		return nil, helpers.NewDeviceError(signal+rpcBlockSize, errors.New("block size is zero"))
	}

	// the final index may address a partial or empty block
	blocks := size/blockSize + 1

	var raw []byte
	for i := 0; i < blocks; i++ {
		data, err := b.call(ctx, signal+rpcBlock, binary.LittleEndian.AppendUint32(nil, uint32(i)))
		if err != nil {
			return nil, err
		}
		raw = append(raw, data...)
	}

	return DecodeSamples(raw), nil
}

// -----------------------------------------------------------------------------

func (b *Backend) call(ctx context.Context, name string, arg []byte) ([]byte, error) {
	return helpers.RetryWithBackoff(ctx, b.Logger, name, b.opts.MaxRetries, b.opts.RetryDelay, func() ([]byte, error) {
		data, err := b.device.RPC(name, arg)
		if err != nil {
			return nil, helpers.NewDeviceError(name, err)
		}
		return data, nil
	})
}

func (b *Backend) callCount(ctx context.Context, name string) (int, error) {
	data, err := b.call(ctx, name, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, helpers.NewDecodeError(name, fmt.Errorf("reply is %d bytes, want 4", len(data)))
	}
	return int(binary.LittleEndian.Uint32(data)), nil
}

// -----------------------------------------------------------------------------

// DecodeSamples reads little-endian float32 values. A trailing partial value
// is discarded.
func DecodeSamples(raw []byte) models.MSampleBatch {
	out := make(models.MSampleBatch, 0, len(raw)/4)
	for i := 0; i+4 <= len(raw); i += 4 {
		out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(raw[i:]))))
	}
	return out
}

// -----------------------------------------------------------------------------

// Close removes the listeners and waits for running work.
func (b *Backend) Close() error {
	b.mu.Lock()
	ids := b.listeners
	b.listeners = nil
	cancel := b.cancel
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var result error
	for _, id := range ids {
		if err := b.bus.Unlisten(id); err != nil && !errors.Is(err, events.ErrListenerNotFound) {
			result = multierror.Append(result, err)
		}
	}
	b.wg.Wait()
	return result
}
