// Package model defines the domain types shared across the service.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Row is one normalized database record.
type Row map[string]any

// Extent is an axis-aligned bounding box in EPSG:4326.
type Extent struct {
	West  float64
	South float64
	East  float64
	North float64
}

func (e Extent) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", e.West, e.South, e.East, e.North)
}

// FilterOptions carries the optional filter dimensions of a request.
// A zero value on any field means "no constraint on that dimension".
// The list fields hold comma-joined identifiers as received on the wire.
type FilterOptions struct {
	Satellites string
	Biomes     string
	Countries  string
	States     string
	Extent     *Extent
	Limit      int
}

// AggregationSpec shapes a grouped fire-count query.
type AggregationSpec struct {
	// Key is the grouping column.
	Key string
	// Label is an optional label template with column names embedded
	// as {field} placeholders.
	Label string
	Limit int
	// The ignore flags suppress the corresponding filter clause even
	// when the option is present, so a chart can opt out of a filter
	// that is applied globally.
	IgnoreCountryFilter bool
	IgnoreStateFilter   bool
}

// SpatialKey selects one level of the spatial hierarchy.
type SpatialKey string

const (
	KeyContinents SpatialKey = "Continents"
	KeyCountries  SpatialKey = "Countries"
	KeyStates     SpatialKey = "States"
)

// Feature is one fire detection in GeoJSON interchange form.
type Feature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties map[string]any  `json:"properties"`
}

// FeatureCollection groups features for downstream format conversion.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// NewFeatureCollection wraps rows of geometry+properties pairs.
func NewFeatureCollection(features []Feature) FeatureCollection {
	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(features))}
	for _, f := range features {
		f.Type = "Feature"
		fc.Features = append(fc.Features, f)
	}
	return fc
}

// Format is an allow-listed export output format.
type Format string

const (
	FormatGeoJSON   Format = "geojson"
	FormatShapefile Format = "shapefile"
	FormatCSV       Format = "csv"
	FormatKML       Format = "kml"
)

// ParseFormat validates a format selector from the wire.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGeoJSON:
		return FormatGeoJSON, nil
	case FormatShapefile:
		return FormatShapefile, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatKML:
		return FormatKML, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// DisplayName is the human-readable name embedded in download filenames.
func (f Format) DisplayName() string {
	switch f {
	case FormatGeoJSON:
		return "GeoJSON"
	case FormatShapefile:
		return "Shapefile"
	case FormatCSV:
		return "CSV"
	case FormatKML:
		return "KML"
	}
	return string(f)
}

// Ext is the extension of the delivered artifact.
func (f Format) Ext() string {
	switch f {
	case FormatGeoJSON:
		return "json"
	case FormatShapefile:
		return "zip"
	case FormatCSV:
		return "csv"
	case FormatKML:
		return "kml"
	}
	return string(f)
}
