package types

import (
	"fmt"
	"time"
)

// Price represents the cost of electricity in a time interval.
type Price struct {
	Provider string    `json:"provider"`
	TSStart  time.Time `json:"tsStart"`
	TSEnd    time.Time `json:"tsEnd"`

	// PerKWH is the price of one kWh in the currency of the price entity.
	PerKWH float64 `json:"perKWH"`
}

// FeesPeriod is a fixed fee added to the price of every hour that starts
// within the period. Hours are in the portal's local time, HourEnd is
// exclusive and zero Start/End mean unbounded.
type FeesPeriod struct {
	Description string    `json:"description"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
	HourStart   int       `json:"hourStart"`
	HourEnd     int       `json:"hourEnd"`
	PerKWH      float64   `json:"perKWH"`
}

// Validate checks the hour range of the period.
func (p FeesPeriod) Validate() error {
	if p.HourStart < 0 || p.HourStart > 23 {
		return fmt.Errorf("fees period %q: hourStart must be between 0 and 23", p.Description)
	}
	if p.HourEnd <= p.HourStart || p.HourEnd > 24 {
		return fmt.Errorf("fees period %q: hourEnd must be after hourStart and at most 24", p.Description)
	}
	if !p.Start.IsZero() && !p.End.IsZero() && !p.End.After(p.Start) {
		return fmt.Errorf("fees period %q: end must be after start", p.Description)
	}
	return nil
}
