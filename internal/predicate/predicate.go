// Package predicate assembles parameterized boolean filter expressions.
//
// Clause text and bound parameters are appended together, so the number of
// positional placeholders always equals the number of parameters and the
// placeholder numbers form a contiguous run from the seeded counter.
package predicate

import (
	"fmt"
	"strings"

	"github.com/openfiredata/bdqueimadas/internal/model"
)

type Builder struct {
	clauses []string
	params  []any
	next    int
}

// New starts a builder whose first placeholder is $1.
func New() *Builder { return NewAt(1) }

// NewAt starts a builder whose first placeholder is $start. Callers
// pre-seed the counter when earlier query text already consumed slots.
func NewAt(start int) *Builder {
	if start < 1 {
		start = 1
	}
	return &Builder{next: start}
}

// Bind appends one parameter and returns its placeholder.
func (b *Builder) Bind(v any) string {
	b.params = append(b.params, v)
	p := fmt.Sprintf("$%d", b.next)
	b.next++
	return p
}

// DateRange appends the required date-window clause.
func (b *Builder) DateRange(field, from, to string) *Builder {
	clause := fmt.Sprintf("(%s between %s and %s)", field, b.Bind(from), b.Bind(to))
	b.clauses = append(b.clauses, clause)
	return b
}

// In appends an IN clause with one placeholder per identifier. An empty
// identifier set still yields valid SQL through a sentinel value that
// matches no real row.
func (b *Builder) In(field string, ids []string) *Builder {
	if len(ids) == 0 {
		b.clauses = append(b.clauses, field+" in ('0')")
		return b
	}
	ph := make([]string, 0, len(ids))
	for _, id := range ids {
		ph = append(ph, b.Bind(id))
	}
	b.clauses = append(b.clauses, fmt.Sprintf("%s in (%s)", field, strings.Join(ph, ",")))
	return b
}

// Intersects appends a spatial-intersection clause against an axis-aligned
// envelope, binding west, south, east, north in that order.
func (b *Builder) Intersects(field string, e model.Extent) *Builder {
	clause := fmt.Sprintf("ST_Intersects(%s, ST_MakeEnvelope(%s, %s, %s, %s, 4326))",
		field, b.Bind(e.West), b.Bind(e.South), b.Bind(e.East), b.Bind(e.North))
	b.clauses = append(b.clauses, clause)
	return b
}

// FireFields names the filterable columns of the detections table.
type FireFields struct {
	Satellite string
	Biome     string
	Geometry  string
	Country   string
	State     string
}

// ApplyOptions appends one clause per present filter dimension, in the
// fixed order satellites, biomes, extent, countries, states. The skip
// flags drop the corresponding clause even when the option is present.
func (b *Builder) ApplyOptions(f FireFields, o model.FilterOptions, skipCountry, skipState bool) *Builder {
	if o.Satellites != "" {
		b.In(f.Satellite, strings.Split(o.Satellites, ","))
	}
	if o.Biomes != "" {
		b.In(f.Biome, strings.Split(o.Biomes, ","))
	}
	if o.Extent != nil {
		b.Intersects(f.Geometry, *o.Extent)
	}
	if o.Countries != "" && !skipCountry {
		b.In(f.Country, strings.Split(o.Countries, ","))
	}
	if o.States != "" && !skipState {
		b.In(f.State, strings.Split(o.States, ","))
	}
	return b
}

// SQL joins the accumulated clauses with AND.
func (b *Builder) SQL() string {
	return strings.Join(b.clauses, " and ")
}

// Params returns the bound parameters in placeholder order.
func (b *Builder) Params() []any {
	return b.params
}

// Next reports the next unused placeholder number.
func (b *Builder) Next() int {
	return b.next
}
