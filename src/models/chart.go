package models

// -----------------------------------------------------------------------------
// Chart options (rendering sink configuration surface)
// -----------------------------------------------------------------------------

type MSeriesOptions struct {
	Label      string `json:"label,omitempty"`
	Stroke     string `json:"stroke,omitempty"`
	ShowPoints bool   `json:"show_points"`
	// Passthrough marks series whose values are rendered unmodified.
	Passthrough bool `json:"passthrough"`
}

type MScaleOptions struct {
	Time  bool `json:"time"`
	Auto  bool `json:"auto"`
	Distr int  `json:"distr,omitempty"`
}

type MAxisOptions struct {
	Size        int  `json:"size,omitempty"`
	Passthrough bool `json:"passthrough"`
}

type MChartOptions struct {
	Width  int                      `json:"width"`
	Height int                      `json:"height"`
	Series []MSeriesOptions         `json:"series"`
	Scales map[string]MScaleOptions `json:"scales"`
	Axes   []MAxisOptions           `json:"axes"`
}

// -----------------------------------------------------------------------------
// Chart state snapshot
// -----------------------------------------------------------------------------

type ChartPhase string

const (
	ChartScheduled ChartPhase = "scheduled"
	ChartReady     ChartPhase = "ready"
	ChartFailed    ChartPhase = "failed"
	ChartRemoved   ChartPhase = "removed"
)

type MChartState struct {
	Signal    SignalID   `json:"signal"`
	Container string     `json:"container"`
	Phase     ChartPhase `json:"phase"`
	Error     string     `json:"error,omitempty"`
	Points    int        `json:"points"`
	Redraws   int        `json:"redraws"`
}
