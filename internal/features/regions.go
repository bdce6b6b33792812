package features

// regionNames maps forecast region ids to their published names.
var regionNames = map[int]string{
	3001: "Svalbard øst",
	3002: "Svalbard vest",
	3003: "Nordenskiöld Land",
	3004: "Svalbard sør",
	3005: "Øst-Finnmark",
	3006: "Finnmarkskysten",
	3007: "Vest-Finnmark",
	3008: "Finnmarksvidda",
	3009: "Nord-Troms",
	3010: "Lyngen",
	3011: "Tromsø",
	3012: "Sør-Troms",
	3013: "Indre Troms",
	3014: "Lofoten og Vesterålen",
	3015: "Ofoten",
	3016: "Salten",
	3017: "Svartisen",
	3018: "Helgeland",
	3019: "Nord-Trøndelag",
	3020: "Sør-Trøndelag",
	3021: "Ytre Nordmøre",
	3022: "Trollheimen",
	3023: "Romsdal",
	3024: "Sunnmøre",
	3025: "Nord-Gudbrandsdalen",
	3026: "Ytre Fjordane",
	3027: "Indre Fjordane",
	3028: "Jotunheimen",
	3029: "Indre Sogn",
	3030: "Ytre Sogn",
	3031: "Voss",
	3032: "Hallingdal",
	3033: "Hordalandskysten",
	3034: "Hardanger",
	3035: "Vest-Telemark",
	3036: "Rogalandskysten",
	3037: "Heiane",
	3038: "Agder sør",
	3039: "Telemark sør",
	3040: "Vestfold",
	3041: "Buskerud sør",
	3042: "Oppland sør",
	3043: "Hedmark",
	3044: "Akershus",
	3045: "Oslo",
	3046: "Østfold",
}

// DefaultRegions are the mainland A-regions with a full forecast history.
var DefaultRegions = []int{
	3003, 3006, 3007, 3009, 3010, 3011, 3012, 3013, 3014, 3015, 3016, 3017,
	3022, 3023, 3024, 3027, 3028, 3029, 3031, 3032, 3034, 3035, 3037,
}

// RegionName returns the region's name, or "" for unknown ids.
func RegionName(id int) string {
	return regionNames[id]
}
