package ingest

import "capture-tool/src/models"

// BuildSeries pairs each sample with its zero-based position. The result
// never depends on any earlier buffer.
func BuildSeries(batch models.MSampleBatch) models.MSeriesBuffer {
	buf := models.NewSeriesBuffer(len(batch))
	for i, v := range batch {
		buf.X = append(buf.X, float64(i))
		buf.Y = append(buf.Y, v)
	}
	return buf
}
