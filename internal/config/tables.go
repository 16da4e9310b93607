package config

import (
	"os"
	"strconv"

	"github.com/openfiredata/bdqueimadas/internal/model"
)

// FiresTable names the columns of the fire-detections table.
type FiresTable struct {
	Schema         string
	Name           string
	DateField      string
	SatelliteField string
	BiomeField     string
	CountryField   string
	StateField     string
	GeometryField  string
}

// RegionTable names the columns of one spatial-hierarchy level.
// BusinessNameField is empty for continents, which have none.
type RegionTable struct {
	Schema            string
	Name              string
	IDField           string
	NameField         string
	BusinessNameField string
	ContinentField    string
	CountryField      string
	GeometryField     string
}

// Tables is the full table/column mapping, built once at startup and
// passed into every composer instead of being read from ambient state.
type Tables struct {
	Fires      FiresTable
	Continents RegionTable
	Countries  RegionTable
	States     RegionTable
}

// Region returns the mapping for a hierarchy level.
func (t Tables) Region(key model.SpatialKey) RegionTable {
	switch key {
	case model.KeyContinents:
		return t.Continents
	case model.KeyCountries:
		return t.Countries
	default:
		return t.States
	}
}

func DefaultTables() Tables {
	return Tables{
		Fires: FiresTable{
			Schema:         "public",
			Name:           "fires",
			DateField:      "timestamp",
			SatelliteField: "satellite",
			BiomeField:     "biome",
			CountryField:   "country",
			StateField:     "state",
			GeometryField:  "geom",
		},
		Continents: RegionTable{
			Schema:        "public",
			Name:          "continents",
			IDField:       "gid",
			NameField:     "name",
			GeometryField: "geom",
		},
		Countries: RegionTable{
			Schema:            "public",
			Name:              "countries",
			IDField:           "gid",
			NameField:         "name",
			BusinessNameField: "bdq_name",
			ContinentField:    "continent",
			GeometryField:     "geom",
		},
		States: RegionTable{
			Schema:            "public",
			Name:              "states",
			IDField:           "gid",
			NameField:         "name",
			BusinessNameField: "bdq_name",
			CountryField:      "country_gid",
			GeometryField:     "geom",
		},
	}
}

// SpatialFilter holds the map-resolution thresholds that pick which
// hierarchy level a point-intersection query runs against.
type SpatialFilter struct {
	ContinentsMinResolution float64
	CountriesMinResolution  float64
	CountriesMaxResolution  float64
}

func DefaultSpatialFilter() SpatialFilter {
	return SpatialFilter{
		ContinentsMinResolution: getfloat("SPATIAL_CONTINENTS_MIN_RES", 0.3515625),
		CountriesMinResolution:  getfloat("SPATIAL_COUNTRIES_MIN_RES", 0.087890625),
		CountriesMaxResolution:  getfloat("SPATIAL_COUNTRIES_MAX_RES", 0.3515625),
	}
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
