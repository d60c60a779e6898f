package engine

import (
	"habitat/internal/config"
	"habitat/internal/model"
)

type rule struct {
	channel  model.Channel
	severity model.Severity
	format   string
	check    func(t config.ThresholdsConfig, s model.Sample) (float64, bool)
}

// rules are evaluated in this order; log entries follow it.
var rules = []rule{
	{
		channel:  model.ChannelOxygen,
		severity: model.SeverityCritical,
		format:   "Oxygen levels critical: %.1f%%",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			return s.Oxygen, s.Oxygen < t.OxygenMin
		},
	},
	{
		channel:  model.ChannelTemperature,
		severity: model.SeverityCritical,
		format:   "Temperature out of range: %.1f°C",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			return s.Temperature, s.Temperature > t.TemperatureMax || s.Temperature < t.TemperatureMin
		},
	},
	{
		channel:  model.ChannelFood,
		severity: model.SeverityWarning,
		format:   "Food inventory low: %.1f%%",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			return s.Food, s.Food < t.FoodMin
		},
	},
	{
		channel:  model.ChannelPower,
		severity: model.SeverityWarning,
		format:   "Power usage high: %.1f%%",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			return s.PowerUsed, s.PowerUsed > t.PowerMax
		},
	},
	{
		channel:  model.ChannelSleep,
		severity: model.SeverityWarning,
		format:   "Sleep cycles insufficient: %.1fh",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			return s.Sleep, s.Sleep < t.SleepMin
		},
	},
	{
		channel:  model.ChannelWellness,
		severity: model.SeverityWarning,
		format:   "Crew wellness low: %.1f/10",
		check: func(t config.ThresholdsConfig, s model.Sample) (float64, bool) {
			mean := s.Wellness.Mean()
			return mean, mean < t.WellnessMin
		},
	},
}
