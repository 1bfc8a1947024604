package describe

import (
	"strings"

	"github.com/passbi/passbi_trip/internal/models"
)

// ColorKind identifies which palette entry a leg is drawn with
type ColorKind string

const (
	ColorWalk      ColorKind = "walk"
	ColorMetroLine ColorKind = "metro_line"
	ColorBus       ColorKind = "bus"
	ColorPrimary   ColorKind = "primary"
)

// Palette hex values
const (
	WalkHex    = "#6c757d"
	BusHex     = "#18a034"
	PrimaryHex = "#1976D2"
)

// ColorToken is a resolved leg colour
type ColorToken struct {
	Kind   ColorKind `json:"kind"`
	LineID string    `json:"line_id,omitempty"`
	Hex    string    `json:"hex"`
}

type metroLine struct {
	number string
	name   string
	hex    string
}

// Riyadh Metro lines, numbered 1 to 6
var metroLines = []metroLine{
	{number: "1", name: "Blue Line", hex: "#0072BC"},
	{number: "2", name: "Red Line", hex: "#E31E24"},
	{number: "3", name: "Orange Line", hex: "#F7941D"},
	{number: "4", name: "Yellow Line", hex: "#FFD200"},
	{number: "5", name: "Green Line", hex: "#00A651"},
	{number: "6", name: "Purple Line", hex: "#92278F"},
}

// cleanLineID strips a leading "Line " the planner sometimes sends ("Line Blue Line")
func cleanLineID(lineID string) string {
	clean := strings.TrimSpace(lineID)
	if strings.HasPrefix(clean, "Line ") {
		clean = strings.TrimSpace(clean[len("Line "):])
	}
	return clean
}

// lookupMetroLine matches a line id against colour names (case-insensitive)
// and the numeric ids 1-6
func lookupMetroLine(lineID string) (metroLine, bool) {
	clean := cleanLineID(lineID)
	for _, l := range metroLines {
		if strings.EqualFold(clean, l.name) || clean == l.number {
			return l, true
		}
	}
	return metroLine{}, false
}

// LineName returns the display name of a metro line.
// Unknown ids degrade to the cleaned id itself.
func LineName(lineID string) string {
	if l, ok := lookupMetroLine(lineID); ok {
		return l.name
	}
	return cleanLineID(lineID)
}

// MetroLineColor returns the colour of a metro line, or the primary colour for unknown ids
func MetroLineColor(lineID string) ColorToken {
	if l, ok := lookupMetroLine(lineID); ok {
		return ColorToken{Kind: ColorMetroLine, LineID: l.number, Hex: l.hex}
	}
	return ColorToken{Kind: ColorPrimary, LineID: cleanLineID(lineID), Hex: PrimaryHex}
}

// ColorFor returns the colour a leg is listed and drawn with
func ColorFor(leg models.Leg) ColorToken {
	switch leg.Mode {
	case models.ModeWalk:
		return ColorToken{Kind: ColorWalk, Hex: WalkHex}
	case models.ModeMetro:
		return MetroLineColor(leg.LineID)
	case models.ModeBus:
		return ColorToken{Kind: ColorBus, Hex: BusHex}
	default:
		return ColorToken{Kind: ColorPrimary, Hex: PrimaryHex}
	}
}
