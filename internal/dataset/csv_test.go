package dataset

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/ml"
)

const sampleCSV = `region,date,weekday,weekend,red_day,avalanche,DangerLevel,Nedbor,Vindstyrke,Temperatur_min,Temperatur_max,AvalProbabilityId_0,AvalProbabilityId_3,AvalProbabilityId_5,AvalProbabilityId_7,AvalProbabilityId_10,AvalProbabilityId_30,AvalProbabilityId_45,AvalProbabilityId_50
3011,2023-01-14,6,1,0,1,3,12.5,Liten kuling,-8,-2,0,2,0,3,0,2,0,0
3012,2023-02-01,3,0,0,0,2,0,0,-10,-4,0,0,0,0,0,0,0,0
3013,2022-12-26,1,False,True,,2,1.5,Bris,-3,1,0,0,3,0,0,0,0,0
`

func TestLoadCSV(t *testing.T) {
	records, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 3)

	first := records[0]
	assert.Equal(t, 3011, first.Region)
	assert.Equal(t, "2023-01-14", first.Date.Format("2006-01-02"))
	assert.Equal(t, 6, first.Weekday)
	assert.True(t, first.Weekend)
	assert.False(t, first.Holiday)
	assert.Equal(t, 3, first.DangerLevel)
	assert.Equal(t, 12.5, first.Precipitation)
	assert.Equal(t, "Liten kuling", first.WindStrength)
	assert.Equal(t, 3.0, first.ProblemProbabilities[7])
	require.NotNil(t, first.Avalanche)
	assert.True(t, *first.Avalanche)

	// Zero-filled wind from ingestion reads as calm.
	assert.Equal(t, features.WindCalm, records[1].WindStrength)
	require.NotNil(t, records[1].Avalanche)
	assert.False(t, *records[1].Avalanche)

	// Textual booleans and an empty label.
	assert.True(t, records[2].Holiday)
	assert.False(t, records[2].Weekend)
	assert.Nil(t, records[2].Avalanche)
}

func TestLoadCSV_WithoutLabelColumn(t *testing.T) {
	input := `region,date,weekend,red_day,DangerLevel,Nedbor,Vindstyrke,Temperatur_min,Temperatur_max,AvalProbabilityId_0,AvalProbabilityId_3,AvalProbabilityId_5,AvalProbabilityId_7,AvalProbabilityId_10,AvalProbabilityId_30,AvalProbabilityId_45,AvalProbabilityId_50
3011,2023-01-15,1,0,3,0,Bris,-8,-2,0,0,0,0,0,0,0,0
`
	records, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Nil(t, records[0].Avalanche)
	// Weekday derived from the date when absent: 2023-01-15 is a Sunday.
	assert.Equal(t, 7, records[0].Weekday)
}

func TestLoadCSV_BlankWeekday(t *testing.T) {
	input := `region,date,weekday,weekend,red_day,avalanche,DangerLevel,Nedbor,Vindstyrke,Temperatur_min,Temperatur_max,AvalProbabilityId_0,AvalProbabilityId_3,AvalProbabilityId_5,AvalProbabilityId_7,AvalProbabilityId_10,AvalProbabilityId_30,AvalProbabilityId_45,AvalProbabilityId_50
3011,2023-01-15,,1,0,1,3,0,Bris,-8,-2,0,0,0,0,0,0,0,0
3012,2023-01-16,1,0,0,0,2,0,Bris,-8,-2,0,0,0,0,0,0,0,0
`
	records, err := LoadCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	// A blank weekday is derived from the date: 2023-01-15 is a Sunday.
	assert.Equal(t, 7, records[0].Weekday)
	assert.Equal(t, 1, records[1].Weekday)
}

func TestLoadCSV_Errors(t *testing.T) {
	header := "region,date,weekday,weekend,red_day,avalanche,DangerLevel,Nedbor,Vindstyrke,Temperatur_min,Temperatur_max,AvalProbabilityId_0,AvalProbabilityId_3,AvalProbabilityId_5,AvalProbabilityId_7,AvalProbabilityId_10,AvalProbabilityId_30,AvalProbabilityId_45,AvalProbabilityId_50\n"

	tests := []struct {
		name  string
		input string
		field string
		line  string
	}{
		{
			name:  "missing column",
			input: "region,date,weekend\n3011,2023-01-14,1\n",
			field: "red_day",
		},
		{
			name:  "bad number",
			input: header + "3011,2023-01-14,6,1,0,1,3,lots,Bris,-8,-2,0,0,0,0,0,0,0,0\n",
			field: "Nedbor",
			line:  "line 2",
		},
		{
			name:  "empty probability",
			input: header + "3011,2023-01-14,6,1,0,1,3,0,Bris,-8,-2,0,0,0,,0,0,0,0\n",
			field: "AvalProbabilityId_7",
			line:  "line 2",
		},
		{
			name:  "bad date",
			input: header + "3011,14.01.2023,6,1,0,1,3,0,Bris,-8,-2,0,0,0,0,0,0,0,0\n",
			field: "date",
			line:  "line 2",
		},
		{
			name:  "bad flag",
			input: header + "3011,2023-01-14,6,maybe,0,1,3,0,Bris,-8,-2,0,0,0,0,0,0,0,0\n",
			field: "weekend",
			line:  "line 2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCSV(strings.NewReader(tt.input))
			require.Error(t, err)

			var encErr *features.EncodingError
			require.True(t, errors.As(err, &encErr), "got %v", err)
			assert.Equal(t, tt.field, encErr.Field)
			if tt.line != "" {
				assert.Contains(t, err.Error(), tt.line)
			}
		})
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	records, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	again, err := LoadCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, records, again)
}

func TestWritePredictionsCSV(t *testing.T) {
	records, err := LoadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	preds := []ml.Prediction{
		{Label: ml.Avalanche, Scores: [2]float64{0.8, 0.2}},
		{Label: ml.NoAvalanche, Scores: [2]float64{0.3, 0.7}},
		{Label: ml.NoAvalanche, Scores: [2]float64{0.5, 0.5}},
	}

	var buf bytes.Buffer
	require.NoError(t, WritePredictionsCSV(&buf, records, preds))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], "region_name,avalanche_score,no_avalanche_score,Prediction"))
	assert.True(t, strings.HasSuffix(lines[1], "Tromsø,0.8,0.2,Avalanche"), lines[1])
	assert.True(t, strings.HasSuffix(lines[2], "NoAvalanche"))

	err = WritePredictionsCSV(&buf, records, preds[:1])
	assert.Error(t, err)
}
