package interfaces

// -----------------------------------------------------------------------------
// IReadinessReporter receives chart readiness transitions.
// -----------------------------------------------------------------------------

type IReadinessReporter interface {
	ChartScheduled(signal string)
	ChartReady(signal string)
	ChartFailed(signal string, err error)
	ChartRemoved(signal string)
}
