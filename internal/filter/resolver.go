package filter

import (
	"context"
	"fmt"

	"github.com/openfiredata/bdqueimadas/internal/model"
)

// ResolveKey picks the hierarchy level for a point-intersection query from
// the map resolution: the continent threshold wins first, then the country
// band, and everything else falls through to states.
func (s *Store) ResolveKey(resolution float64) model.SpatialKey {
	switch {
	case resolution >= s.spatial.ContinentsMinResolution:
		return model.KeyContinents
	case resolution >= s.spatial.CountriesMinResolution && resolution < s.spatial.CountriesMaxResolution:
		return model.KeyCountries
	default:
		return model.KeyStates
	}
}

// DataByIntersection returns the region at the resolved hierarchy level
// whose geometry contains the given point. Zero rows means no containing
// region at that level, which is not an error.
func (s *Store) DataByIntersection(ctx context.Context, longitude, latitude, resolution float64) ([]model.Row, error) {
	key := s.ResolveKey(resolution)
	t := s.tables.Region(key)

	sql := fmt.Sprintf("select %s as id, %s as name, '%s' as key", t.IDField, t.NameField, key)
	if key != model.KeyContinents {
		sql += fmt.Sprintf(", %s as business_name", t.BusinessNameField)
	}
	sql += fmt.Sprintf(" from %s.%s where ST_Intersects(%s, ST_SetSRID(ST_MakePoint($1, $2), 4326))",
		t.Schema, t.Name, t.GeometryField)

	return s.q.Query(ctx, sql, longitude, latitude)
}
