package forecast

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/no"

	"avalanche-predictor/internal/features"
)

// SeasonRange returns the first and last day covered by the seasons. Season
// 2017 runs from 1 December 2017 to 14 June 2018.
func SeasonRange(seasons []int) (from, to time.Time) {
	if len(seasons) == 0 {
		return time.Time{}, time.Time{}
	}
	first, last := seasons[0], seasons[0]
	for _, s := range seasons[1:] {
		first = min(first, s)
		last = max(last, s)
	}
	return seasonStart(first), seasonEnd(last)
}

func seasonStart(season int) time.Time {
	return time.Date(season, time.December, 1, 0, 0, 0, 0, time.UTC)
}

func seasonEnd(season int) time.Time {
	return time.Date(season+1, time.June, 14, 0, 0, 0, 0, time.UTC)
}

// Calendar returns one unlabeled record per region and day of each season,
// carrying only the calendar fields. Weekday runs 1 (Monday) to 7 (Sunday).
// A public holiday that falls on a Sunday is not flagged, since Sundays are
// already covered by the weekend flag.
func Calendar(seasons, regions []int) []features.RawRecord {
	var out []features.RawRecord
	for _, season := range seasons {
		end := seasonEnd(season)
		for day := seasonStart(season); !day.After(end); day = day.AddDate(0, 0, 1) {
			weekday := isoWeekday(day)
			holiday := IsNorwegianHoliday(day) && weekday != 7
			for _, region := range regions {
				out = append(out, features.RawRecord{
					Region:  region,
					Date:    day,
					Weekday: weekday,
					Weekend: weekday >= 6,
					Holiday: holiday,
				})
			}
		}
	}
	return out
}

func isoWeekday(d time.Time) int {
	if d.Weekday() == time.Sunday {
		return 7
	}
	return int(d.Weekday())
}

// IsNorwegianHoliday reports whether the date is a Norwegian public holiday.
func IsNorwegianHoliday(d time.Time) bool {
	actual, _, _ := norway.IsHoliday(d)
	return actual
}

var norway = newNorwayCalendar()

func newNorwayCalendar() *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = "Norway"
	c.AddHoliday(no.Holidays...)
	return c
}
