package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openfiredata/bdqueimadas/internal/model"
)

func decode[T any](payload json.RawMessage) (T, error) {
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(payload, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

type filterPayload struct {
	DateTimeFrom string        `json:"dateTimeFrom"`
	DateTimeTo   string        `json:"dateTimeTo"`
	Satellites   string        `json:"satellites"`
	Biomes       string        `json:"biomes"`
	Countries    string        `json:"countries"`
	States       string        `json:"states"`
	Extent       *model.Extent `json:"extent"`
}

func (p filterPayload) options() model.FilterOptions {
	return model.FilterOptions{
		Satellites: p.Satellites,
		Biomes:     p.Biomes,
		Countries:  p.Countries,
		States:     p.States,
		Extent:     p.Extent,
	}
}

func (c *Channel) spatialFilter(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Key string   `json:"key"`
		IDs []string `json:"ids"`
	}](payload)
	if err != nil {
		return nil, err
	}

	key := model.SpatialKey(p.Key)
	switch key {
	case model.KeyContinents, model.KeyCountries, model.KeyStates:
	default:
		return nil, fmt.Errorf("unknown spatial key %q", p.Key)
	}

	rows, err := c.filters.Extent(ctx, key, p.IDs)
	if err != nil {
		return nil, err
	}

	var extent any
	if len(rows) > 0 {
		extent = rows[0]["extent"]
	}
	return map[string]any{"key": p.Key, "ids": p.IDs, "extent": extent}, nil
}

func (c *Channel) dataByIntersection(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Longitude  float64 `json:"longitude"`
		Latitude   float64 `json:"latitude"`
		Resolution float64 `json:"resolution"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.DataByIntersection(ctx, p.Longitude, p.Latitude, p.Resolution)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": rows}, nil
}

func (c *Channel) continentByCountry(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Country string `json:"country"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.ContinentByCountry(ctx, p.Country)
	if err != nil {
		return nil, err
	}
	return map[string]any{"continent": rows}, nil
}

func (c *Channel) continentByState(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		State string `json:"state"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.ContinentByState(ctx, p.State)
	if err != nil {
		return nil, err
	}
	return map[string]any{"continent": rows}, nil
}

func (c *Channel) countriesByStates(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		States []string `json:"states"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.CountriesByStates(ctx, p.States)
	if err != nil {
		return nil, err
	}

	// the client also wants the sibling countries of the first match's
	// continent, to rebuild its country dropdown
	var countries []model.Row
	if len(rows) > 0 {
		countries, err = c.filters.CountriesByContinent(ctx, fmt.Sprint(rows[0]["continent"]))
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{"countriesByStates": rows, "countries": countries}, nil
}

func (c *Channel) countriesByContinent(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Continent string `json:"continent"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.CountriesByContinent(ctx, p.Continent)
	if err != nil {
		return nil, err
	}
	return map[string]any{"countries": rows}, nil
}

func (c *Channel) statesByCountry(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Country string `json:"country"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.StatesByCountry(ctx, p.Country)
	if err != nil {
		return nil, err
	}
	return map[string]any{"states": rows}, nil
}

func (c *Channel) statesByCountries(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		Countries []string `json:"countries"`
	}](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.StatesByCountries(ctx, p.Countries)
	if err != nil {
		return nil, err
	}
	return map[string]any{"states": rows}, nil
}

func (c *Channel) getSatellites(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[filterPayload](payload)
	if err != nil {
		return nil, err
	}
	rows, err := c.filters.Satellites(ctx, p.DateTimeFrom, p.DateTimeTo, p.options())
	if err != nil {
		return nil, err
	}
	return map[string]any{"satellitesList": rows}, nil
}

func (c *Channel) graphicsFiresCount(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		filterPayload
		Key         string `json:"key"`
		Y           string `json:"y"`
		Limit       int    `json:"limit"`
		FilterRules struct {
			IgnoreCountryFilter bool `json:"ignoreCountryFilter"`
			IgnoreStateFilter   bool `json:"ignoreStateFilter"`
		} `json:"filterRules"`
	}](payload)
	if err != nil {
		return nil, err
	}

	spec := model.AggregationSpec{
		Key:                 p.Key,
		Label:               p.Y,
		Limit:               p.Limit,
		IgnoreCountryFilter: p.FilterRules.IgnoreCountryFilter,
		IgnoreStateFilter:   p.FilterRules.IgnoreStateFilter,
	}
	o := p.options()

	counts, err := c.graphics.FiresCount(ctx, p.DateTimeFrom, p.DateTimeTo, spec, o)
	if err != nil {
		return nil, err
	}
	total, err := c.graphics.FiresTotalCount(ctx, p.DateTimeFrom, p.DateTimeTo, spec, o)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"key":             p.Key,
		"y":               p.Y,
		"firesCount":      counts,
		"firesTotalCount": total,
	}, nil
}

func (c *Channel) graphicsFiresCountByWeek(ctx context.Context, payload json.RawMessage) (any, error) {
	p, err := decode[struct {
		filterPayload
		Limit       int `json:"limit"`
		FilterRules struct {
			IgnoreCountryFilter bool `json:"ignoreCountryFilter"`
			IgnoreStateFilter   bool `json:"ignoreStateFilter"`
		} `json:"filterRules"`
	}](payload)
	if err != nil {
		return nil, err
	}

	spec := model.AggregationSpec{
		Limit:               p.Limit,
		IgnoreCountryFilter: p.FilterRules.IgnoreCountryFilter,
		IgnoreStateFilter:   p.FilterRules.IgnoreStateFilter,
	}

	rows, err := c.graphics.FiresCountByWeek(ctx, p.DateTimeFrom, p.DateTimeTo, spec, p.options())
	if err != nil {
		return nil, err
	}
	return map[string]any{"firesCountByWeek": rows}, nil
}
