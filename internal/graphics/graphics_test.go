package graphics

import (
	"context"
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

func TestFiresCountGroupedBySatellite(t *testing.T) {
	fq := &fakeQuerier{}
	s := New(fq, config.DefaultTables())

	_, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "satellite", Label: "{satellite}", Limit: 5},
		model.FilterOptions{})
	if err != nil {
		t.Fatalf("FiresCount: %v", err)
	}

	want := "select satellite, count(*) as count from public.fires" +
		" where (timestamp between $1 and $2)" +
		" group by satellite order by count desc, satellite asc limit $3"
	if fq.sqls[0] != want {
		t.Fatalf("sql =\n%q\nwant\n%q", fq.sqls[0], want)
	}
	if len(fq.args[0]) != 3 || fq.args[0][2] != 5 {
		t.Fatalf("args = %v", fq.args[0])
	}
}

func TestFiresCountLabelExtraFields(t *testing.T) {
	fq := &fakeQuerier{}
	s := New(fq, config.DefaultTables())

	_, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "state", Label: "{state} ({country})"},
		model.FilterOptions{})
	if err != nil {
		t.Fatalf("FiresCount: %v", err)
	}

	sql := fq.sqls[0]
	if !strings.Contains(sql, "select state, count(*) as count, country from") {
		t.Fatalf("missing label field in select: %s", sql)
	}
	if !strings.Contains(sql, "group by state, country") {
		t.Fatalf("missing label field in group by: %s", sql)
	}
}

func TestFiresCountRejectsUnsafeIdentifiers(t *testing.T) {
	s := New(&fakeQuerier{}, config.DefaultTables())

	if _, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "satellite; drop table fires"},
		model.FilterOptions{}); err == nil {
		t.Fatal("expected error for unsafe key")
	}
	if _, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "satellite", Label: "{a'b}"},
		model.FilterOptions{}); err == nil {
		t.Fatal("expected error for unsafe label field")
	}
}

func TestFiresCountIgnoreFlags(t *testing.T) {
	fq := &fakeQuerier{}
	s := New(fq, config.DefaultTables())

	o := model.FilterOptions{Countries: "76", States: "31"}

	_, err := s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "country", IgnoreCountryFilter: true}, o)
	if err != nil {
		t.Fatalf("FiresCount: %v", err)
	}
	if strings.Contains(fq.sqls[0], "country in (") {
		t.Fatalf("country clause must be suppressed: %s", fq.sqls[0])
	}
	if !strings.Contains(fq.sqls[0], "state in (") {
		t.Fatalf("state clause must survive: %s", fq.sqls[0])
	}

	_, err = s.FiresCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "state", IgnoreStateFilter: true}, o)
	if err != nil {
		t.Fatalf("FiresCount: %v", err)
	}
	if strings.Contains(fq.sqls[1], "state in (") {
		t.Fatalf("state clause must be suppressed: %s", fq.sqls[1])
	}
}

func TestFiresTotalCount(t *testing.T) {
	fq := &fakeQuerier{rows: []model.Row{{"count": int64(120)}}}
	s := New(fq, config.DefaultTables())

	rows, err := s.FiresTotalCount(context.Background(), "2023-01-01", "2023-01-31",
		model.AggregationSpec{Key: "satellite"}, model.FilterOptions{Satellites: "AQUA_M-T"})
	if err != nil {
		t.Fatalf("FiresTotalCount: %v", err)
	}
	if rows[0]["count"] != int64(120) {
		t.Fatalf("rows = %v", rows)
	}
	want := "select count(*) as count from public.fires" +
		" where (timestamp between $1 and $2) and satellite in ($3)"
	if fq.sqls[0] != want {
		t.Fatalf("sql = %q", fq.sqls[0])
	}
}

func TestFiresCountByWeek(t *testing.T) {
	fq := &fakeQuerier{}
	s := New(fq, config.DefaultTables())

	_, err := s.FiresCountByWeek(context.Background(), "2023-01-01", "2023-03-31",
		model.AggregationSpec{}, model.FilterOptions{})
	if err != nil {
		t.Fatalf("FiresCountByWeek: %v", err)
	}

	sql := fq.sqls[0]
	for _, frag := range []string{
		"TO_CHAR(date_trunc('week', timestamp)::date, 'YYYY/MM/DD') as start",
		"TO_CHAR((date_trunc('week', timestamp) + '6 days')::date, 'YYYY/MM/DD') as end",
		"group by 1, 2 order by 1, 2",
	} {
		if !strings.Contains(sql, frag) {
			t.Fatalf("missing %q in %s", frag, sql)
		}
	}
}

func TestLabelFields(t *testing.T) {
	got, err := labelFields("{state} - {country} - {state}", "state")
	if err != nil {
		t.Fatalf("labelFields: %v", err)
	}
	if len(got) != 1 || got[0] != "country" {
		t.Fatalf("fields = %v", got)
	}

	got, err = labelFields("plain label", "satellite")
	if err != nil {
		t.Fatalf("labelFields: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("fields = %v", got)
	}
}
