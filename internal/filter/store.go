// Package filter composes and runs the filtered fire-detection queries and
// the spatial-hierarchy lookups behind them.
package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openfiredata/bdqueimadas/internal/config"
	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/predicate"
)

// Querier runs one parameterized statement and returns normalized rows.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]model.Row, error)
}

type Store struct {
	q       Querier
	tables  config.Tables
	spatial config.SpatialFilter
	cache   *lru.Cache[uint64, []model.Row]
	logger  *slog.Logger
}

func New(q Querier, tables config.Tables, spatial config.SpatialFilter, cacheLen int, logger *slog.Logger) (*Store, error) {
	if cacheLen <= 0 {
		cacheLen = 256
	}
	c, err := lru.New[uint64, []model.Row](cacheLen)
	if err != nil {
		return nil, fmt.Errorf("hierarchy cache: %w", err)
	}
	return &Store{q: q, tables: tables, spatial: spatial, cache: c, logger: logger}, nil
}

func (s *Store) fireFields() predicate.FireFields {
	f := s.tables.Fires
	return predicate.FireFields{
		Satellite: f.SatelliteField,
		Biome:     f.BiomeField,
		Geometry:  f.GeometryField,
		Country:   f.CountryField,
		State:     f.StateField,
	}
}

// FiresCount returns the number of detections matching the window and options.
func (s *Store) FiresCount(ctx context.Context, dateFrom, dateTo string, o model.FilterOptions) ([]model.Row, error) {
	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, false, false)

	sql := fmt.Sprintf("select count(*) as count from %s.%s where %s", f.Schema, f.Name, b.SQL())
	return s.q.Query(ctx, sql, b.Params()...)
}

// Satellites lists the distinct satellites present in the filtered window.
func (s *Store) Satellites(ctx context.Context, dateFrom, dateTo string, o model.FilterOptions) ([]model.Row, error) {
	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, false, false)

	sql := fmt.Sprintf("select distinct %s from %s.%s where %s",
		f.SatelliteField, f.Schema, f.Name, b.SQL())
	return s.q.Query(ctx, sql, b.Params()...)
}

// FiresCountByCountry counts the detections located in one country.
func (s *Store) FiresCountByCountry(ctx context.Context, country string) ([]model.Row, error) {
	f := s.tables.Fires
	sql := fmt.Sprintf("select count(*) as firescount from %s.%s where %s = $1",
		f.Schema, f.Name, f.CountryField)
	return s.q.Query(ctx, sql, country)
}

// FiresGeoJSON returns the matching detections as geometry+properties
// pairs ready for feature-collection serialization.
func (s *Store) FiresGeoJSON(ctx context.Context, dateFrom, dateTo string, o model.FilterOptions) ([]model.Feature, error) {
	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, false, false)

	sql := fmt.Sprintf("select ST_AsGeoJSON(%s) as geometry, to_jsonb(f.*) - '%s' as properties from %s.%s f where %s",
		f.GeometryField, f.GeometryField, f.Schema, f.Name, b.SQL())

	params := b.Params()
	if o.Limit > 0 {
		sql += " limit " + b.Bind(o.Limit)
		params = b.Params()
	}

	rows, err := s.q.Query(ctx, sql, params...)
	if err != nil {
		return nil, err
	}

	features := make([]model.Feature, 0, len(rows))
	for i, row := range rows {
		ft, err := toFeature(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		features = append(features, ft)
	}
	return features, nil
}

func toFeature(row model.Row) (model.Feature, error) {
	ft := model.Feature{Type: "Feature"}

	switch g := row["geometry"].(type) {
	case string:
		ft.Geometry = json.RawMessage(g)
	case []byte:
		ft.Geometry = json.RawMessage(g)
	default:
		return model.Feature{}, fmt.Errorf("unexpected geometry type %T", row["geometry"])
	}

	switch p := row["properties"].(type) {
	case map[string]any:
		ft.Properties = p
	case []byte:
		if err := json.Unmarshal(p, &ft.Properties); err != nil {
			return model.Feature{}, fmt.Errorf("decode properties: %w", err)
		}
	case nil:
		ft.Properties = map[string]any{}
	default:
		return model.Feature{}, fmt.Errorf("unexpected properties type %T", row["properties"])
	}
	return ft, nil
}
