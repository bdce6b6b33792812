package forecast

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
)

func decodeArchive(t *testing.T) []Warning {
	t.Helper()
	var warnings []Warning
	require.NoError(t, json.Unmarshal([]byte(archiveJSON), &warnings))
	return warnings
}

func TestToRecord(t *testing.T) {
	warnings := decodeArchive(t)

	rec, err := ToRecord(warnings[0])
	require.NoError(t, err)
	assert.Equal(t, 3011, rec.Region)
	assert.Equal(t, "2023-01-14", rec.Date.Format("2006-01-02"))
	assert.Equal(t, 3, rec.DangerLevel)
	assert.Equal(t, 12.0, rec.Precipitation)
	assert.Equal(t, "Liten kuling", rec.WindStrength)
	assert.Equal(t, -8.0, rec.TempMin)
	assert.Equal(t, -2.0, rec.TempMax)
	assert.Nil(t, rec.Avalanche)

	// Only the known problem types are kept; the rest stay at zero.
	assert.Len(t, rec.ProblemProbabilities, len(features.ProblemTypeIDs))
	assert.Equal(t, 3.0, rec.ProblemProbabilities[7])
	assert.Equal(t, 2.0, rec.ProblemProbabilities[30])
	assert.Equal(t, 0.0, rec.ProblemProbabilities[0])
}

func TestToRecord_MissingWeatherIsZeroFilled(t *testing.T) {
	rec, err := ToRecord(decodeArchive(t)[1])
	require.NoError(t, err)
	assert.Equal(t, 2, rec.DangerLevel)
	assert.Equal(t, 0.0, rec.Precipitation)
	assert.Equal(t, 0.0, rec.TempMin)
	assert.Equal(t, 0.0, rec.TempMax)
	assert.Equal(t, features.WindCalm, rec.WindStrength)
	for _, id := range features.ProblemTypeIDs {
		assert.Equal(t, 0.0, rec.ProblemProbabilities[id])
	}
}

func TestToRecord_Errors(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		field   string
	}{
		{"bad date", Warning{RegionID: 1, ValidFrom: "yesterday"}, "ValidFrom"},
		{"bad danger level", Warning{RegionID: 1, ValidFrom: "2023-01-14T00:00:00", DangerLevel: "high"}, "DangerLevel"},
		{"bad precipitation", Warning{
			RegionID:  1,
			ValidFrom: "2023-01-14T00:00:00",
			MountainWeather: &MountainWeather{MeasurementTypes: []MeasurementType{
				{Name: "Nedbør", MeasurementSubTypes: []MeasurementSubType{{Name: "Gjennomsnitt", Value: "mye"}}},
			}},
		}, "Nedbor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToRecord(tt.warning)
			var encErr *features.EncodingError
			require.True(t, errors.As(err, &encErr), "got %v", err)
			assert.Equal(t, tt.field, encErr.Field)
		})
	}

	_, err := ToRecords([]Warning{decodeArchive(t)[0], {RegionID: 3011, ValidFrom: "not-a-date"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warning 1")
}

func TestFlexValue(t *testing.T) {
	tests := []struct {
		json string
		want flexValue
	}{
		{`"Bris"`, "Bris"},
		{`4.5`, "4.5"},
		{`null`, ""},
		{`"-3"`, "-3"},
	}
	for _, tt := range tests {
		var v flexValue
		require.NoError(t, json.Unmarshal([]byte(tt.json), &v))
		assert.Equal(t, tt.want, v)
	}

	assert.Equal(t, "-5", flexValue("--5").clean())
	assert.Equal(t, "12", flexValue("|12").clean())
	f, err := flexValue("2,5").float("Nedbor")
	require.NoError(t, err)
	assert.Equal(t, 2.5, f)
}
