// Package sink mirrors persisted readings to external systems. Sinks are
// best-effort: a failed publish never affects collection.
package sink

import (
	"context"

	"codeberg.org/mutker/plugmon/internal/storage"
)

type Sink interface {
	Name() string
	Publish(ctx context.Context, reading *storage.Reading) error
	Close() error
}

// fields returns the measured values present in a reading, keyed by column
// name.
func fields(reading *storage.Reading) map[string]any {
	out := make(map[string]any, 5)
	for name, v := range map[string]*float64{
		"voltage":            reading.Voltage,
		"electric_current":   reading.ElectricCurrent,
		"power":              reading.Power,
		"electricity_of_day": reading.ElectricityOfDay,
	} {
		if v != nil {
			out[name] = *v
		}
	}
	if reading.PowerOn != nil {
		out["power_on"] = *reading.PowerOn
	}
	return out
}
