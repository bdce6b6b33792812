package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"avalanche-predictor/internal/dataset"
	"avalanche-predictor/internal/features"
	"avalanche-predictor/internal/storage"
)

type regionStats struct {
	days, avalanches, unlabeled int
}

func main() {
	var (
		dataPath = flag.String("data", "./data", "Data directory path")
		from     = flag.String("from", "", "First day to include (YYYY-MM-DD)")
		to       = flag.String("to", "", "Last day to include (YYYY-MM-DD)")
		export   = flag.String("export", "", "Write the selected records to this CSV")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	total, err := store.CountRecords()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to count records")
	}
	fmt.Printf("Inspecting %s: %d records stored\n", *dataPath, total)

	var records []features.RawRecord
	if *from != "" || *to != "" {
		start, end := parseDay(*from, time.Time{}), parseDay(*to, time.Now().UTC())
		records, err = store.GetRecords(start, end)
	} else {
		records, err = store.AllRecords()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read records")
	}

	stats := map[int]*regionStats{}
	for _, r := range records {
		s, ok := stats[r.Region]
		if !ok {
			s = &regionStats{}
			stats[r.Region] = s
		}
		s.days++
		switch {
		case r.Avalanche == nil:
			s.unlabeled++
		case *r.Avalanche:
			s.avalanches++
		}
	}

	regions := make([]int, 0, len(stats))
	for id := range stats {
		regions = append(regions, id)
	}
	sort.Ints(regions)

	fmt.Printf("\n%-6s %-22s %6s %10s %9s\n", "Region", "Name", "Days", "Avalanche", "Unlabeled")
	for _, id := range regions {
		s := stats[id]
		fmt.Printf("%-6d %-22s %6d %10d %9d\n", id, features.RegionName(id), s.days, s.avalanches, s.unlabeled)
	}
	if len(records) > 0 {
		fmt.Printf("\nSelected %d records from %s to %s\n", len(records),
			records[0].Date.Format("2006-01-02"), records[len(records)-1].Date.Format("2006-01-02"))
	}

	if *export != "" {
		f, err := os.Create(*export)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create export file")
		}
		defer f.Close()
		if err := dataset.WriteCSV(f, records); err != nil {
			log.Fatal().Err(err).Msg("failed to export records")
		}
		fmt.Printf("Exported to %s\n", *export)
	}
}

func parseDay(s string, def time.Time) time.Time {
	if s == "" {
		return def
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		log.Fatal().Err(err).Str("value", s).Msg("invalid date")
	}
	return t
}
