package backend

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
)

const (
	rpcTrigger   = ".capture.trigger"
	rpcSize      = ".capture.size"
	rpcBlockSize = ".capture.blocksize"
	rpcBlock     = ".capture.block"
)

var ErrUnknownRPC = errors.New("device: unknown rpc")

// -----------------------------------------------------------------------------

// Simulated is a capture device that produces a sine wave per channel. Each
// trigger advances the phase by one sample so consecutive captures differ.
//
// size and blocksize reply with a little-endian uint32 sample count; block
// takes a little-endian uint32 index and replies with float32 samples.
type Simulated struct {
	Samples   int
	BlockSize int
	Amplitude float64
	Period    float64

	mu       sync.Mutex
	captures map[string][]float32
	triggers map[string]int
	failures int
	calls    []string
}

// -----------------------------------------------------------------------------

func NewSimulated(samples, blockSize int, amplitude, period float64) *Simulated {
	if period <= 0 {
		period = float64(samples)
	}
	return &Simulated{
		Samples:   samples,
		BlockSize: blockSize,
		Amplitude: amplitude,
		Period:    period,
		captures:  make(map[string][]float32),
		triggers:  make(map[string]int),
	}
}

// -----------------------------------------------------------------------------

// FailNext makes the next n RPCs return an error.
func (d *Simulated) FailNext(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failures = n
}

// Calls lists every RPC name received, failed ones included.
func (d *Simulated) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// -----------------------------------------------------------------------------

func (d *Simulated) RPC(name string, arg []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls = append(d.calls, name)
	if d.failures > 0 {
		d.failures--
		return nil, fmt.Errorf("device busy")
	}

	switch {
	case strings.HasSuffix(name, rpcTrigger):
		d.trigger(strings.TrimSuffix(name, rpcTrigger))
		return nil, nil
	case strings.HasSuffix(name, rpcSize):
		return uint32Bytes(d.Samples), nil
	case strings.HasSuffix(name, rpcBlockSize):
		return uint32Bytes(d.BlockSize), nil
	case strings.HasSuffix(name, rpcBlock):
		if len(arg) != 4 {
			return nil, fmt.Errorf("block index must be 4 bytes, got %d", len(arg))
		}
		return d.block(strings.TrimSuffix(name, rpcBlock), int(binary.LittleEndian.Uint32(arg))), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownRPC, name)
	}
}

// -----------------------------------------------------------------------------

func (d *Simulated) trigger(channel string) {
	phase := d.triggers[channel]
	d.triggers[channel] = phase + 1

	samples := make([]float32, d.Samples)
	for i := range samples {
		samples[i] = float32(d.Amplitude * math.Sin(2*math.Pi*float64(i+phase)/d.Period))
	}
	d.captures[channel] = samples
}

func (d *Simulated) block(channel string, index int) []byte {
	samples := d.captures[channel]
	start := index * d.BlockSize
	if start >= len(samples) {
		return nil
	}
	end := start + d.BlockSize
	if end > len(samples) {
		end = len(samples)
	}

	out := make([]byte, 0, 4*(end-start))
	for _, s := range samples[start:end] {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(s))
	}
	return out
}

func uint32Bytes(n int) []byte {
	return binary.LittleEndian.AppendUint32(nil, uint32(n))
}
