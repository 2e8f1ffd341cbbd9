package session

import "capture-tool/src/interfaces"

// fanout forwards readiness transitions to several reporters.
type fanout []interfaces.IReadinessReporter

func (f fanout) ChartScheduled(signal string) {
	for _, r := range f {
		r.ChartScheduled(signal)
	}
}

func (f fanout) ChartReady(signal string) {
	for _, r := range f {
		r.ChartReady(signal)
	}
}

func (f fanout) ChartFailed(signal string, err error) {
	for _, r := range f {
		r.ChartFailed(signal, err)
	}
}

func (f fanout) ChartRemoved(signal string) {
	for _, r := range f {
		r.ChartRemoved(signal)
	}
}
