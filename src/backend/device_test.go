package backend

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedCounts(t *testing.T) {
	d := NewSimulated(10, 4, 1, 8)

	size, err := d.RPC("cpu.load.capture.size", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(10), binary.LittleEndian.Uint32(size))

	bs, err := d.RPC("cpu.load.capture.blocksize", nil)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), binary.LittleEndian.Uint32(bs))
}

func TestSimulatedBlocks(t *testing.T) {
	d := NewSimulated(10, 4, 1, 8)
	_, err := d.RPC("cpu.load.capture.trigger", nil)
	require.NoError(t, err)

	lengths := []int{16, 16, 8, 0}
	for i, want := range lengths {
		data, err := d.RPC("cpu.load.capture.block", binary.LittleEndian.AppendUint32(nil, uint32(i)))
		require.NoError(t, err)
		assert.Len(t, data, want, "block %d", i)
	}
}

func TestSimulatedPhaseAdvances(t *testing.T) {
	d := NewSimulated(4, 4, 1, 4)
	idx := binary.LittleEndian.AppendUint32(nil, 0)

	_, _ = d.RPC("a.capture.trigger", nil)
	first, _ := d.RPC("a.capture.block", idx)
	_, _ = d.RPC("a.capture.trigger", nil)
	second, _ := d.RPC("a.capture.block", idx)

	assert.NotEqual(t, first, second)
	// advanced by exactly one sample
	assert.Equal(t, first[4:8], second[0:4])
}

func TestSimulatedBlockBeforeTrigger(t *testing.T) {
	d := NewSimulated(4, 4, 1, 4)
	data, err := d.RPC("a.capture.block", binary.LittleEndian.AppendUint32(nil, 0))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSimulatedErrors(t *testing.T) {
	d := NewSimulated(4, 4, 1, 4)

	_, err := d.RPC("a.reboot", nil)
	assert.ErrorIs(t, err, ErrUnknownRPC)

	_, err = d.RPC("a.capture.block", []byte{1})
	assert.Error(t, err)

	d.FailNext(1)
	_, err = d.RPC("a.capture.size", nil)
	assert.Error(t, err)
	_, err = d.RPC("a.capture.size", nil)
	assert.NoError(t, err)

	assert.Equal(t, []string{"a.reboot", "a.capture.block", "a.capture.size", "a.capture.size"}, d.Calls())
}
