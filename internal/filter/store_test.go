package filter

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/openfiredata/bdqueimadas/internal/config"
	"github.com/openfiredata/bdqueimadas/internal/model"
)

type fakeQuerier struct {
	sqls []string
	args [][]any
	rows []model.Row
	err  error
}

func (f *fakeQuerier) Query(_ context.Context, sql string, args ...any) ([]model.Row, error) {
	f.sqls = append(f.sqls, sql)
	f.args = append(f.args, args)
	return f.rows, f.err
}

func testStore(t *testing.T, q Querier) *Store {
	t.Helper()
	s, err := New(q, config.DefaultTables(), config.SpatialFilter{
		ContinentsMinResolution: 0.3515625,
		CountriesMinResolution:  0.087890625,
		CountriesMaxResolution:  0.3515625,
	}, 16, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestFiresCountSQL(t *testing.T) {
	fq := &fakeQuerier{rows: []model.Row{{"count": int64(42)}}}
	s := testStore(t, fq)

	rows, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31", model.FilterOptions{
		Countries: "76",
	})
	if err != nil {
		t.Fatalf("FiresCount: %v", err)
	}
	if rows[0]["count"] != int64(42) {
		t.Fatalf("rows = %v", rows)
	}

	want := "select count(*) as count from public.fires where (timestamp between $1 and $2) and country in ($3)"
	if fq.sqls[0] != want {
		t.Fatalf("sql =\n%q\nwant\n%q", fq.sqls[0], want)
	}
	if len(fq.args[0]) != 3 || fq.args[0][2] != "76" {
		t.Fatalf("args = %v", fq.args[0])
	}
}

func TestSatellitesSQLAllDimensions(t *testing.T) {
	fq := &fakeQuerier{}
	s := testStore(t, fq)

	_, err := s.Satellites(context.Background(), "2023-06-01", "2023-06-30", model.FilterOptions{
		Satellites: "AQUA_M-T",
		Biomes:     "3",
		Extent:     &model.Extent{West: -74, South: -34, East: -34, North: 5},
		States:     "31,33",
	})
	if err != nil {
		t.Fatalf("Satellites: %v", err)
	}

	sql := fq.sqls[0]
	if !strings.HasPrefix(sql, "select distinct satellite from public.fires where (timestamp between $1 and $2)") {
		t.Fatalf("unexpected prefix: %s", sql)
	}
	for _, frag := range []string{
		"satellite in ($3)",
		"biome in ($4)",
		"ST_MakeEnvelope($5, $6, $7, $8, 4326)",
		"state in ($9,$10)",
	} {
		if !strings.Contains(sql, frag) {
			t.Fatalf("missing %q in %s", frag, sql)
		}
	}
	if len(fq.args[0]) != 10 {
		t.Fatalf("args = %v", fq.args[0])
	}
}

func TestResolveKeyThresholds(t *testing.T) {
	s := testStore(t, &fakeQuerier{})

	cases := []struct {
		res  float64
		want model.SpatialKey
	}{
		{0.3515625, model.KeyContinents}, // boundary resolves to continents
		{1.0, model.KeyContinents},
		{0.087890625, model.KeyCountries}, // lower boundary inclusive
		{0.2, model.KeyCountries},
		{0.35156249, model.KeyCountries}, // just under the upper bound
		{0.0878, model.KeyStates},
		{0.0, model.KeyStates},
	}
	for _, c := range cases {
		if got := s.ResolveKey(c.res); got != c.want {
			t.Fatalf("ResolveKey(%v) = %v, want %v", c.res, got, c.want)
		}
	}
}

func TestDataByIntersectionShape(t *testing.T) {
	fq := &fakeQuerier{}
	s := testStore(t, fq)

	// continent level: no business name column
	if _, err := s.DataByIntersection(context.Background(), -47.9, -15.8, 0.5); err != nil {
		t.Fatalf("DataByIntersection: %v", err)
	}
	if strings.Contains(fq.sqls[0], "business_name") {
		t.Fatalf("continent query must not select business_name: %s", fq.sqls[0])
	}
	if !strings.Contains(fq.sqls[0], "'Continents' as key") {
		t.Fatalf("missing key literal: %s", fq.sqls[0])
	}

	// state level carries the business name
	if _, err := s.DataByIntersection(context.Background(), -47.9, -15.8, 0.01); err != nil {
		t.Fatalf("DataByIntersection: %v", err)
	}
	if !strings.Contains(fq.sqls[1], "bdq_name as business_name") {
		t.Fatalf("state query must select business_name: %s", fq.sqls[1])
	}
	if !strings.Contains(fq.sqls[1], "ST_SetSRID(ST_MakePoint($1, $2), 4326)") {
		t.Fatalf("missing point intersection: %s", fq.sqls[1])
	}
	if fq.args[1][0] != -47.9 || fq.args[1][1] != -15.8 {
		t.Fatalf("args = %v", fq.args[1])
	}
}

func TestExtentEmptySetSentinel(t *testing.T) {
	fq := &fakeQuerier{}
	s := testStore(t, fq)

	if _, err := s.Extent(context.Background(), model.KeyCountries, nil); err != nil {
		t.Fatalf("Extent: %v", err)
	}
	want := "select ST_Extent(geom) as extent from public.countries where gid in ('0')"
	if fq.sqls[0] != want {
		t.Fatalf("sql = %q, want %q", fq.sqls[0], want)
	}
	if len(fq.args[0]) != 0 {
		t.Fatalf("args = %v, want none", fq.args[0])
	}
}

func TestBusinessNamesRejectsContinents(t *testing.T) {
	s := testStore(t, &fakeQuerier{})
	if _, err := s.BusinessNames(context.Background(), model.KeyContinents, []string{"1"}); err == nil {
		t.Fatal("expected error for continents")
	}
}

func TestHierarchyLookupsAreCached(t *testing.T) {
	fq := &fakeQuerier{rows: []model.Row{{"id": int64(1), "name": "South America"}}}
	s := testStore(t, fq)

	ctx := context.Background()
	if _, err := s.Continents(ctx); err != nil {
		t.Fatalf("Continents: %v", err)
	}
	if _, err := s.Continents(ctx); err != nil {
		t.Fatalf("Continents: %v", err)
	}
	if len(fq.sqls) != 1 {
		t.Fatalf("expected a single backing query, got %d", len(fq.sqls))
	}

	// different args miss the cache
	if _, err := s.CountriesByContinent(ctx, "8"); err != nil {
		t.Fatalf("CountriesByContinent: %v", err)
	}
	if _, err := s.CountriesByContinent(ctx, "9"); err != nil {
		t.Fatalf("CountriesByContinent: %v", err)
	}
	if len(fq.sqls) != 3 {
		t.Fatalf("expected two more backing queries, got %d total", len(fq.sqls))
	}
}

func TestFiresGeoJSONFeatures(t *testing.T) {
	fq := &fakeQuerier{rows: []model.Row{
		{
			"geometry":   `{"type":"Point","coordinates":[-47.9,-15.8]}`,
			"properties": map[string]any{"satellite": "AQUA_M-T"},
		},
	}}
	s := testStore(t, fq)

	features, err := s.FiresGeoJSON(context.Background(), "2023-01-01", "2023-01-31", model.FilterOptions{})
	if err != nil {
		t.Fatalf("FiresGeoJSON: %v", err)
	}
	if len(features) != 1 {
		t.Fatalf("features = %d, want 1", len(features))
	}
	f := features[0]
	if f.Type != "Feature" {
		t.Fatalf("type = %q", f.Type)
	}
	if !strings.Contains(string(f.Geometry), `"Point"`) {
		t.Fatalf("geometry = %s", f.Geometry)
	}
	if f.Properties["satellite"] != "AQUA_M-T" {
		t.Fatalf("properties = %v", f.Properties)
	}
}

func TestFiresGeoJSONLimit(t *testing.T) {
	fq := &fakeQuerier{}
	s := testStore(t, fq)

	_, err := s.FiresGeoJSON(context.Background(), "2023-01-01", "2023-01-31", model.FilterOptions{Limit: 1000})
	if err != nil {
		t.Fatalf("FiresGeoJSON: %v", err)
	}
	if !strings.HasSuffix(fq.sqls[0], " limit $3") {
		t.Fatalf("missing limit clause: %s", fq.sqls[0])
	}
	if got := fq.args[0][2]; got != 1000 {
		t.Fatalf("limit arg = %v", got)
	}
}
