package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/repository"
)

func forecastRecord(region int, date string, danger int) features.RawRecord {
	return features.RawRecord{
		Region:       region,
		Date:         day(date),
		DangerLevel:  danger,
		WindStrength: "Bris",
		ProblemProbabilities: map[int]float64{
			0: 0, 3: 0, 5: 0, 7: 0, 10: 0, 30: 0, 45: 0, 50: 0,
		},
	}
}

func TestMerge(t *testing.T) {
	calendar := Calendar([]int{2022}, []int{3011, 3012})
	forecasts := []features.RawRecord{
		forecastRecord(3011, "2023-01-14", 3),
		forecastRecord(3012, "2023-01-14", 2),
		forecastRecord(3011, "2023-01-15", 4),
		forecastRecord(3011, "2023-01-15", 1), // duplicate, ignored
		forecastRecord(3099, "2023-01-15", 2), // region not in calendar
		forecastRecord(3011, "2023-08-01", 2), // date not in calendar
	}
	observations := []repository.Observation{
		{Region: 3011, ObservedAt: time.Date(2023, time.January, 15, 13, 45, 0, 0, time.UTC)},
		{Region: 3012, ObservedAt: time.Date(2023, time.January, 16, 9, 0, 0, 0, time.UTC)},
	}

	merged := Merge(calendar, forecasts, observations)
	require.Len(t, merged, 3)

	assert.Equal(t, "2023-01-14_3011", merged[0].Key())
	assert.Equal(t, "2023-01-14_3012", merged[1].Key())
	assert.Equal(t, "2023-01-15_3011", merged[2].Key())

	// Calendar fields come from the calendar: 14 Jan 2023 is a Saturday.
	assert.Equal(t, 6, merged[0].Weekday)
	assert.True(t, merged[0].Weekend)
	assert.Equal(t, 7, merged[2].Weekday)

	// Forecast fields come from the first forecast for the region-day.
	assert.Equal(t, 3, merged[0].DangerLevel)
	assert.Equal(t, 4, merged[2].DangerLevel)

	for i, want := range []bool{false, false, true} {
		require.NotNil(t, merged[i].Avalanche)
		assert.Equal(t, want, *merged[i].Avalanche, merged[i].Key())
	}
}

func TestMerge_NoForecasts(t *testing.T) {
	merged := Merge(Calendar([]int{2022}, []int{3011}), nil, nil)
	assert.Empty(t, merged)
}
