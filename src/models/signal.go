package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// SignalID names a data channel. It doubles as the identity of the control
// surface and, truncated, as the topic of the channel's sample stream.
type SignalID = string

// MSampleBatch is an ordered set of scalar samples delivered at once.
// NaN and infinities travel as JSON null and decode back to NaN, which
// charts draw as a gap.
type MSampleBatch []float64

func (b MSampleBatch) MarshalJSON() ([]byte, error) {
	if b == nil {
		return []byte("null"), nil
	}
	out := make([]byte, 0, 2+8*len(b))
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, "null"...)
			continue
		}
		out = strconv.AppendFloat(out, v, 'g', -1, 64)
	}
	return append(out, ']'), nil
}

func (b *MSampleBatch) UnmarshalJSON(data []byte) error {
	var raw []*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*b = nil
		return nil
	}
	out := make(MSampleBatch, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
			continue
		}
		out[i] = *v
	}
	*b = out
	return nil
}

// -----------------------------------------------------------------------------
// Series Buffer
// -----------------------------------------------------------------------------

// MSeriesBuffer is the pair of equal-length sequences a chart draws from.
// X carries the synthetic ordinal index, Y the sample values.
type MSeriesBuffer struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// NewSeriesBuffer returns an empty buffer with room for n points.
func NewSeriesBuffer(n int) MSeriesBuffer {
	return MSeriesBuffer{
		X: make([]float64, 0, n),
		Y: make([]float64, 0, n),
	}
}

// Len returns the number of points.
func (b MSeriesBuffer) Len() int {
	return len(b.X)
}

// Columns returns a copy of the buffer in the column-major layout charting
// libraries expect: [[x...], [y...]].
func (b MSeriesBuffer) Columns() []MSampleBatch {
	return []MSampleBatch{
		append(MSampleBatch{}, b.X...),
		append(MSampleBatch{}, b.Y...),
	}
}

// Clone returns a deep copy.
func (b MSeriesBuffer) Clone() MSeriesBuffer {
	out := MSeriesBuffer{
		X: make([]float64, len(b.X)),
		Y: make([]float64, len(b.Y)),
	}
	copy(out.X, b.X)
	copy(out.Y, b.Y)
	return out
}
