package interfaces

import "capture-tool/src/models"

// -----------------------------------------------------------------------------
// IRenderSink builds chart instances; drawing itself is its business.
// -----------------------------------------------------------------------------

type IRenderSink interface {
	Construct(opts models.MChartOptions, initial models.MSeriesBuffer, container ContainerHandle) (IChartInstance, error)
}

// -----------------------------------------------------------------------------
// IChartInstance is one render object bound to a container and a buffer.
// -----------------------------------------------------------------------------

type IChartInstance interface {

	// SetBuffer replaces the chart's data. redraw forces an immediate repaint.
	SetBuffer(buf models.MSeriesBuffer, redraw bool) error

	// -----------------------------------------------------------------------------

	// Destroy releases the render object.
	Destroy() error
}
