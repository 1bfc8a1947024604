package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/passbi/passbi_trip/internal/describe"
	"github.com/passbi/passbi_trip/internal/models"
	"github.com/passbi/passbi_trip/internal/trip"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		input    string
		expected models.Endpoint
		wantErr  bool
	}{
		{"station:Olaya", models.KnownStation{Name: "Olaya"}, false},
		{"text: King Saud University", models.FreeText{Query: "King Saud University"}, false},
		{"24.7136, 46.6753", models.RawCoordinate{Coord: models.Coordinate{Lat: 24.7136, Lng: 46.6753}}, false},
		{"HERE", models.CurrentLocation{}, false},
		{"station:", nil, true},
		{"text:", nil, true},
		{"24.7", nil, true},
		{"abc,46.6", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseEndpoint(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestPrintPlan(t *testing.T) {
	plan := &trip.Plan{
		Origin:       models.ResolvedEndpoint{Label: "Olaya"},
		Destination:  models.ResolvedEndpoint{Label: "KSU"},
		TotalMinutes: 12,
		Legs: []describe.Description{
			{Headline: "Walk to Olaya", Detail: "80 m", DurationLabel: "2 min"},
			{Headline: "Take the Red Line and disembark at KSU", Detail: "KSU", DurationLabel: "10 min"},
		},
	}

	var buf bytes.Buffer
	printPlan(&buf, plan)

	out := buf.String()
	assert.Contains(t, out, "Total: 12 min")
	assert.Contains(t, out, "1. Walk to Olaya (2 min)\n   80 m\n")
	assert.Contains(t, out, "2. Take the Red Line and disembark at KSU (10 min)")
}
