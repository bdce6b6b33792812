package features

import (
	"fmt"
	"strings"
)

// Wind strength labels as published in the mountain weather forecast,
// ordered by increasing intensity.
const (
	WindCalm        = "Stille/svak vind"
	WindBreeze      = "Bris"
	WindFreshBreeze = "Frisk bris"
	WindLightGale   = "Liten kuling"
	WindStrongGale  = "Stiv kuling"
	WindHardGale    = "Sterk kuling"
	WindLightStorm  = "Liten storm"
	WindStorm       = "Storm"
)

// windLevels is the ordinal table; the index is the encoded value.
var windLevels = []string{
	WindCalm,
	WindBreeze,
	WindFreshBreeze,
	WindLightGale,
	WindStrongGale,
	WindHardGale,
	WindLightStorm,
	WindStorm,
}

var windOrdinal = buildWindTable(windLevels)

func buildWindTable(levels []string) map[string]int {
	if len(levels) != 8 {
		panic(fmt.Sprintf("features: wind table has %d levels, want 8", len(levels)))
	}
	table := make(map[string]int, len(levels))
	for i, label := range levels {
		if _, dup := table[label]; dup {
			panic(fmt.Sprintf("features: duplicate wind label %q", label))
		}
		table[label] = i
	}
	return table
}

// WindOrdinal maps a wind strength label to 0 (calm) .. 7 (storm).
func WindOrdinal(label string) (int, error) {
	v, ok := windOrdinal[strings.TrimSpace(label)]
	if !ok {
		return 0, &EncodingError{Field: "vindstyrke", Value: label, Reason: "unknown wind strength"}
	}
	return v, nil
}

// WindLabels returns the known labels in ordinal order.
func WindLabels() []string {
	out := make([]string, len(windLevels))
	copy(out, windLevels)
	return out
}
