package filter

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/observability"
	"github.com/openfiredata/bdqueimadas/internal/predicate"
)

// The hierarchy tables change on the timescale of shapefile imports, so
// lookups are memoized behind a small LRU keyed by query text and args.
func (s *Store) cached(ctx context.Context, sql string, args ...any) ([]model.Row, error) {
	d := xxhash.New()
	_, _ = d.WriteString(sql)
	for _, a := range args {
		_, _ = d.WriteString("|")
		_, _ = d.WriteString(fmt.Sprint(a))
	}
	key := d.Sum64()

	if rows, ok := s.cache.Get(key); ok {
		observability.IncHierarchyCacheHit()
		return rows, nil
	}
	observability.IncHierarchyCacheMiss()

	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, rows)
	return rows, nil
}

// Continents lists the continents the dashboard offers, in display order.
func (s *Store) Continents(ctx context.Context) ([]model.Row, error) {
	t := s.tables.Continents
	name := t.NameField
	sql := fmt.Sprintf("select %s as id, %s as name from %s.%s"+
		" where lower(%s) like '%%america%%' or lower(%s) like '%%europe%%' or lower(%s) like '%%africa%%'"+
		" order by case"+
		" when lower(%s) like '%%south_america%%' then 1"+
		" when lower(%s) like '%%america%%' then 2"+
		" when lower(%s) like '%%africa%%' then 3"+
		" when lower(%s) like '%%europe%%' then 4"+
		" else 5 end, %s",
		t.IDField, name, t.Schema, t.Name,
		name, name, name, name, name, name, name, name)
	return s.cached(ctx, sql)
}

// ContinentByCountry resolves the continent containing a country.
func (s *Store) ContinentByCountry(ctx context.Context, country string) ([]model.Row, error) {
	a, b := s.tables.Continents, s.tables.Countries
	sql := fmt.Sprintf("select a.%s as id, a.%s as name from %s.%s a"+
		" inner join %s.%s b on (a.%s = b.%s) where b.%s = $1",
		a.IDField, a.NameField, a.Schema, a.Name,
		b.Schema, b.Name, a.IDField, b.ContinentField, b.IDField)
	return s.cached(ctx, sql, country)
}

// ContinentByState resolves the continent containing a state.
func (s *Store) ContinentByState(ctx context.Context, state string) ([]model.Row, error) {
	a, b, c := s.tables.Continents, s.tables.Countries, s.tables.States
	sql := fmt.Sprintf("select a.%s as id, a.%s as name from %s.%s a"+
		" inner join %s.%s b on (a.%s = b.%s)"+
		" inner join %s.%s c on (b.%s = c.%s) where c.%s = $1",
		a.IDField, a.NameField, a.Schema, a.Name,
		b.Schema, b.Name, a.IDField, b.ContinentField,
		c.Schema, c.Name, b.IDField, c.CountryField, c.IDField)
	return s.cached(ctx, sql, state)
}

// CountriesByStates resolves the countries containing the given states,
// with each country's continent id alongside.
func (s *Store) CountriesByStates(ctx context.Context, states []string) ([]model.Row, error) {
	a, b, c := s.tables.Countries, s.tables.States, s.tables.Continents
	pb := predicate.New().In("b."+b.IDField, states)
	sql := fmt.Sprintf("select a.%s as id, a.%s as name, a.%s as business_name, c.%s as continent from %s.%s a"+
		" inner join %s.%s b on (a.%s = b.%s)"+
		" inner join %s.%s c on (a.%s = c.%s) where %s",
		a.IDField, a.NameField, a.BusinessNameField, c.IDField, a.Schema, a.Name,
		b.Schema, b.Name, a.IDField, b.CountryField,
		c.Schema, c.Name, a.ContinentField, c.IDField, pb.SQL())
	return s.cached(ctx, sql, pb.Params()...)
}

// CountriesByContinent lists the countries of one continent.
func (s *Store) CountriesByContinent(ctx context.Context, continent string) ([]model.Row, error) {
	t := s.tables.Countries
	sql := fmt.Sprintf("select %s as id, %s as name from %s.%s where %s = $1 order by %s asc",
		t.IDField, t.NameField, t.Schema, t.Name, t.ContinentField, t.NameField)
	return s.cached(ctx, sql, continent)
}

// StatesByCountry lists the states of one country.
func (s *Store) StatesByCountry(ctx context.Context, country string) ([]model.Row, error) {
	t := s.tables.States
	sql := fmt.Sprintf("select %s as id, %s as name from %s.%s where %s = $1 order by %s asc",
		t.IDField, t.NameField, t.Schema, t.Name, t.CountryField, t.NameField)
	return s.cached(ctx, sql, country)
}

// StatesByCountries lists the states of the given countries.
func (s *Store) StatesByCountries(ctx context.Context, countries []string) ([]model.Row, error) {
	t := s.tables.States
	pb := predicate.New().In(t.CountryField, countries)
	sql := fmt.Sprintf("select %s as id, %s as name from %s.%s where %s order by %s asc",
		t.IDField, t.NameField, t.Schema, t.Name, pb.SQL(), t.NameField)
	return s.cached(ctx, sql, pb.Params()...)
}

// Extent returns the bounding box covering the given regions of one
// hierarchy level. Geometry aggregation is delegated to PostGIS.
func (s *Store) Extent(ctx context.Context, key model.SpatialKey, ids []string) ([]model.Row, error) {
	t := s.tables.Region(key)
	pb := predicate.New().In(t.IDField, ids)
	sql := fmt.Sprintf("select ST_Extent(%s) as extent from %s.%s where %s",
		t.GeometryField, t.Schema, t.Name, pb.SQL())
	return s.cached(ctx, sql, pb.Params()...)
}

// BusinessNames returns the dataset-facing names of countries or states.
// Continents carry no business name.
func (s *Store) BusinessNames(ctx context.Context, key model.SpatialKey, ids []string) ([]model.Row, error) {
	if key == model.KeyContinents {
		return nil, fmt.Errorf("continents have no business name")
	}
	t := s.tables.Region(key)
	pb := predicate.New().In(t.IDField, ids)
	sql := fmt.Sprintf("select %s as name from %s.%s where %s order by %s asc",
		t.BusinessNameField, t.Schema, t.Name, pb.SQL(), t.BusinessNameField)
	return s.cached(ctx, sql, pb.Params()...)
}
