// Package graphics composes the grouped fire-count queries behind the
// dashboard charts.
package graphics

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/openfiredata/bdqueimadas/internal/config"
	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/predicate"
)

// Querier runs one parameterized statement and returns normalized rows.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) ([]model.Row, error)
}

type Store struct {
	q      Querier
	tables config.Tables
}

func New(q Querier, tables config.Tables) *Store {
	return &Store{q: q, tables: tables}
}

var (
	identRe      = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	labelFieldRe = regexp.MustCompile(`\{([^{}]+)\}`)
)

// labelFields extracts the column names referenced by a label template,
// dropping the grouping key and duplicates.
func labelFields(label, key string) ([]string, error) {
	var out []string
	for _, m := range labelFieldRe.FindAllStringSubmatch(label, -1) {
		f := strings.TrimSpace(m[1])
		if f == key || slices.Contains(out, f) {
			continue
		}
		if !identRe.MatchString(f) {
			return nil, fmt.Errorf("invalid label field %q", f)
		}
		out = append(out, f)
	}
	return out, nil
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

// FiresCount returns detection counts grouped by the requested key plus
// any extra fields its label template references, ordered by count
// descending with ties broken by key ascending.
func (s *Store) FiresCount(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error) {
	if !identRe.MatchString(spec.Key) {
		return nil, fmt.Errorf("invalid grouping key %q", spec.Key)
	}
	extras, err := labelFields(spec.Label, spec.Key)
	if err != nil {
		return nil, err
	}

	fields := spec.Key + ", count(*) as count"
	group := spec.Key
	if len(extras) > 0 {
		fields += ", " + strings.Join(extras, ", ")
		group += ", " + strings.Join(extras, ", ")
	}

	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, spec.IgnoreCountryFilter, spec.IgnoreStateFilter)

	sql := fmt.Sprintf("select %s from %s.%s where %s group by %s order by count desc, %s asc",
		fields, f.Schema, f.Name, b.SQL(), group, spec.Key)
	if spec.Limit > 0 {
		sql += " limit " + b.Bind(spec.Limit)
	}

	return s.q.Query(ctx, sql, b.Params()...)
}

// FiresTotalCount returns the ungrouped count under the same predicate
// rules, for percentage-of-total calculations by the chart consumer.
func (s *Store) FiresTotalCount(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error) {
	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, spec.IgnoreCountryFilter, spec.IgnoreStateFilter)

	sql := fmt.Sprintf("select count(*) as count from %s.%s where %s", f.Schema, f.Name, b.SQL())
	if spec.Limit > 0 {
		sql += " limit " + b.Bind(spec.Limit)
	}

	return s.q.Query(ctx, sql, b.Params()...)
}

// FiresCountByWeek buckets detection counts into week windows, labelling
// each bucket with its start and end dates.
func (s *Store) FiresCountByWeek(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error) {
	f := s.tables.Fires
	b := predicate.New().
		DateRange(f.DateField, dateFrom, dateTo).
		ApplyOptions(s.fireFields(), o, spec.IgnoreCountryFilter, spec.IgnoreStateFilter)

	sql := fmt.Sprintf("select TO_CHAR(date_trunc('week', %s)::date, 'YYYY/MM/DD') as start,"+
		" TO_CHAR((date_trunc('week', %s) + '6 days')::date, 'YYYY/MM/DD') as end,"+
		" count(*) as count from %s.%s where %s group by 1, 2 order by 1, 2",
		f.DateField, f.DateField, f.Schema, f.Name, b.SQL())
	if spec.Limit > 0 {
		sql += " limit " + b.Bind(spec.Limit)
	}

	return s.q.Query(ctx, sql, b.Params()...)
}
