// Package describe turns trip legs into list-ready text and colours.
// Everything here is a pure function of its input.
package describe

import (
	"fmt"

	"github.com/passbi/passbi_trip/internal/models"
)

// Placeholders used when a leg carries no station names
const (
	NextStopPlaceholder        = "next stop"
	CurrentLocationPlaceholder = "current location"
	DestinationPlaceholder     = "destination"
	FinalDestination           = "your destination"
)

// Description is the display form of one leg
type Description struct {
	Mode          models.LegMode `json:"mode"`
	Headline      string         `json:"headline"`
	Detail        string         `json:"detail"`
	Minutes       int            `json:"minutes"`
	DurationLabel string         `json:"duration_label"`
	Color         ColorToken     `json:"color"`
}

// Describe derives the instruction, detail line, duration label and colour of a leg.
// isFinalLeg makes walking legs point at "your destination".
func Describe(leg models.Leg, isFinalLeg bool) Description {
	d := Description{
		Mode:          leg.Mode,
		Minutes:       leg.DurationMinutes(),
		DurationLabel: DurationLabel(leg.DurationSeconds),
		Color:         ColorFor(leg),
	}

	switch leg.Mode {
	case models.ModeWalk:
		if isFinalLeg {
			d.Headline = "Walk to " + FinalDestination
		} else {
			d.Headline = "Walk to " + lastOr(leg, NextStopPlaceholder)
		}
		d.Detail = FormatDistance(leg.DistanceMeters)

	case models.ModeMetro:
		destination := lastOr(leg, DestinationPlaceholder)
		line := LineName(leg.LineID)
		if line == "" {
			line = "Metro"
		}
		d.Headline = fmt.Sprintf("Take the %s and disembark at %s", line, destination)
		d.Detail = destination

	default:
		// Bus, and any mode the planner adds later
		start := firstOr(leg, CurrentLocationPlaceholder)
		destination := lastOr(leg, DestinationPlaceholder)
		d.Headline = fmt.Sprintf("Take Bus %s and disembark at %s", leg.LineID, destination)
		d.Detail = start + " → " + destination
	}

	return d
}

// DescribeRoute describes every leg of a route in order
func DescribeRoute(route models.Route) []Description {
	out := make([]Description, 0, len(route.Legs))
	for i, leg := range route.Legs {
		out = append(out, Describe(leg, i == len(route.Legs)-1))
	}
	return out
}

// DurationLabel formats seconds as whole minutes, rounded up
func DurationLabel(seconds float64) string {
	return fmt.Sprintf("%d min", models.CeilMinutes(seconds))
}

// FormatDistance renders metres as "850 m" below one kilometre and "1.25 km" above.
// A missing distance renders as an empty string.
func FormatDistance(meters *float64) string {
	if meters == nil {
		return ""
	}
	if *meters < 1000 {
		return fmt.Sprintf("%.0f m", *meters)
	}
	return fmt.Sprintf("%.2f km", *meters/1000)
}

func firstOr(leg models.Leg, placeholder string) string {
	if name, ok := leg.FirstStation(); ok {
		return name
	}
	return placeholder
}

func lastOr(leg models.Leg, placeholder string) string {
	if name, ok := leg.LastStation(); ok {
		return name
	}
	return placeholder
}
