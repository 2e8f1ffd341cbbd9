package chart

import "capture-tool/src/models"

// BuildOptions renders the chart configuration for one signal: slot 0 is the
// unlabeled x passthrough, slot 1 the named signal drawn as a bare line.
func BuildOptions(signal models.SignalID, cfg models.MChartConfig) models.MChartOptions {
	return models.MChartOptions{
		Width:  cfg.Width,
		Height: cfg.Height,
		Series: []models.MSeriesOptions{
			{Passthrough: true},
			{
				Label:       signal,
				Stroke:      cfg.LineColor,
				ShowPoints:  cfg.ShowPoints,
				Passthrough: true,
			},
		},
		Scales: map[string]models.MScaleOptions{
			"x": {Time: false, Auto: true},
			"y": {Distr: cfg.YScaleDistr},
		},
		Axes: []models.MAxisOptions{
			{},
			{Size: cfg.AxisSize, Passthrough: true},
		},
	}
}
