package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openfiredata/bdqueimadas/internal/model"
)

type fakeFilters struct {
	lastMethod string
	lastArgs   []any
	rows       []model.Row
}

func (f *fakeFilters) record(method string, args ...any) ([]model.Row, error) {
	f.lastMethod = method
	f.lastArgs = args
	return f.rows, nil
}

func (f *fakeFilters) Satellites(_ context.Context, from, to string, o model.FilterOptions) ([]model.Row, error) {
	return f.record("Satellites", from, to, o)
}
func (f *fakeFilters) DataByIntersection(_ context.Context, lon, lat, res float64) ([]model.Row, error) {
	return f.record("DataByIntersection", lon, lat, res)
}
func (f *fakeFilters) ContinentByCountry(_ context.Context, country string) ([]model.Row, error) {
	return f.record("ContinentByCountry", country)
}
func (f *fakeFilters) ContinentByState(_ context.Context, state string) ([]model.Row, error) {
	return f.record("ContinentByState", state)
}
func (f *fakeFilters) CountriesByStates(_ context.Context, states []string) ([]model.Row, error) {
	return f.record("CountriesByStates", states)
}
func (f *fakeFilters) CountriesByContinent(_ context.Context, continent string) ([]model.Row, error) {
	return f.record("CountriesByContinent", continent)
}
func (f *fakeFilters) StatesByCountry(_ context.Context, country string) ([]model.Row, error) {
	return f.record("StatesByCountry", country)
}
func (f *fakeFilters) StatesByCountries(_ context.Context, countries []string) ([]model.Row, error) {
	return f.record("StatesByCountries", countries)
}
func (f *fakeFilters) Extent(_ context.Context, key model.SpatialKey, ids []string) ([]model.Row, error) {
	return f.record("Extent", key, ids)
}

type fakeGraphics struct {
	spec model.AggregationSpec
}

func (g *fakeGraphics) FiresCount(_ context.Context, _, _ string, spec model.AggregationSpec, _ model.FilterOptions) ([]model.Row, error) {
	g.spec = spec
	return []model.Row{{"satellite": "AQUA_M-T", "count": int64(10)}}, nil
}

func (g *fakeGraphics) FiresTotalCount(context.Context, string, string, model.AggregationSpec, model.FilterOptions) ([]model.Row, error) {
	return []model.Row{{"count": int64(25)}}, nil
}

func (g *fakeGraphics) FiresCountByWeek(_ context.Context, _, _ string, spec model.AggregationSpec, _ model.FilterOptions) ([]model.Row, error) {
	g.spec = spec
	return []model.Row{{"start": "2023/01/02", "end": "2023/01/08", "count": int64(4)}}, nil
}

func dial(t *testing.T, filters FilterService, graphics GraphicsService) *websocket.Conn {
	t.Helper()
	ch := NewChannel(filters, graphics, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(ch)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, event string, payload any) (string, map[string]any) {
	t.Helper()
	b, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := conn.WriteJSON(map[string]any{"event": event, "payload": json.RawMessage(b)}); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out struct {
		Event   string         `json:"event"`
		Payload map[string]any `json:"payload"`
	}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out.Event, out.Payload
}

func TestSpatialFilterRoundTrip(t *testing.T) {
	filters := &fakeFilters{rows: []model.Row{{"extent": "BOX(-74 -34,-34 5)"}}}
	conn := dial(t, filters, &fakeGraphics{})

	event, payload := roundTrip(t, conn, "spatialFilterRequest", map[string]any{
		"key": "Countries", "ids": []string{"76"},
	})
	if event != "spatialFilterResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["extent"] != "BOX(-74 -34,-34 5)" {
		t.Fatalf("payload = %v", payload)
	}
	if filters.lastMethod != "Extent" {
		t.Fatalf("dispatched to %q", filters.lastMethod)
	}
}

func TestDataByIntersectionRoundTrip(t *testing.T) {
	filters := &fakeFilters{rows: []model.Row{{"id": int64(76), "name": "Brasil", "key": "Countries"}}}
	conn := dial(t, filters, &fakeGraphics{})

	event, payload := roundTrip(t, conn, "dataByIntersectionRequest", map[string]any{
		"longitude": -47.9, "latitude": -15.8, "resolution": 0.2,
	})
	if event != "dataByIntersectionResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["data"] == nil {
		t.Fatalf("payload = %v", payload)
	}
	if filters.lastArgs[0] != -47.9 || filters.lastArgs[1] != -15.8 {
		t.Fatalf("args = %v", filters.lastArgs)
	}
}

func TestHierarchyEventsDispatch(t *testing.T) {
	filters := &fakeFilters{}
	conn := dial(t, filters, &fakeGraphics{})

	cases := []struct {
		event   string
		payload map[string]any
		method  string
	}{
		{"continentByCountryRequest", map[string]any{"country": "76"}, "ContinentByCountry"},
		{"continentByStateRequest", map[string]any{"state": "31"}, "ContinentByState"},
		{"countriesByStatesRequest", map[string]any{"states": []string{"31", "33"}}, "CountriesByStates"},
		{"countriesByContinentRequest", map[string]any{"continent": "8"}, "CountriesByContinent"},
		{"statesByCountryRequest", map[string]any{"country": "76"}, "StatesByCountry"},
		{"statesByCountriesRequest", map[string]any{"countries": []string{"76"}}, "StatesByCountries"},
		{"getSatellitesRequest", map[string]any{"dateTimeFrom": "2023-01-01", "dateTimeTo": "2023-01-31"}, "Satellites"},
	}
	for _, c := range cases {
		event, _ := roundTrip(t, conn, c.event, c.payload)
		want := strings.TrimSuffix(c.event, "Request") + "Response"
		if event != want {
			t.Fatalf("%s: event = %q, want %q", c.event, event, want)
		}
		if filters.lastMethod != c.method {
			t.Fatalf("%s: dispatched to %q, want %q", c.event, filters.lastMethod, c.method)
		}
	}
}

func TestGraphicsFiresCountCarriesRules(t *testing.T) {
	graphics := &fakeGraphics{}
	conn := dial(t, &fakeFilters{}, graphics)

	event, payload := roundTrip(t, conn, "graphicsFiresCountRequest", map[string]any{
		"dateTimeFrom": "2023-01-01",
		"dateTimeTo":   "2023-01-31",
		"key":          "satellite",
		"y":            "{satellite}",
		"limit":        5,
		"filterRules":  map[string]any{"ignoreCountryFilter": true},
	})
	if event != "graphicsFiresCountResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["firesCount"] == nil || payload["firesTotalCount"] == nil {
		t.Fatalf("payload = %v", payload)
	}
	if graphics.spec.Key != "satellite" || graphics.spec.Limit != 5 || !graphics.spec.IgnoreCountryFilter {
		t.Fatalf("spec = %+v", graphics.spec)
	}
}

func TestCountriesByStatesPayloadContract(t *testing.T) {
	filters := &fakeFilters{rows: []model.Row{{"id": int64(76), "name": "Brasil", "continent": int64(8)}}}
	conn := dial(t, filters, &fakeGraphics{})

	event, payload := roundTrip(t, conn, "countriesByStatesRequest", map[string]any{
		"states": []string{"31"},
	})
	if event != "countriesByStatesResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["countriesByStates"] == nil || payload["countries"] == nil {
		t.Fatalf("payload = %v", payload)
	}
	// the continent of the first match feeds the sibling-country lookup
	if filters.lastMethod != "CountriesByContinent" || filters.lastArgs[0] != "8" {
		t.Fatalf("dispatched to %q %v", filters.lastMethod, filters.lastArgs)
	}
}

func TestGetSatellitesPayloadKey(t *testing.T) {
	filters := &fakeFilters{rows: []model.Row{{"satellite": "AQUA_M-T"}}}
	conn := dial(t, filters, &fakeGraphics{})

	_, payload := roundTrip(t, conn, "getSatellitesRequest", map[string]any{
		"dateTimeFrom": "2023-01-01", "dateTimeTo": "2023-01-31",
	})
	if payload["satellitesList"] == nil {
		t.Fatalf("payload = %v", payload)
	}
}

func TestGraphicsFiresCountByWeek(t *testing.T) {
	graphics := &fakeGraphics{}
	conn := dial(t, &fakeFilters{}, graphics)

	event, payload := roundTrip(t, conn, "graphicsFiresCountByWeekRequest", map[string]any{
		"dateTimeFrom": "2023-01-01",
		"dateTimeTo":   "2023-03-31",
		"filterRules":  map[string]any{"ignoreStateFilter": true},
	})
	if event != "graphicsFiresCountByWeekResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["firesCountByWeek"] == nil {
		t.Fatalf("payload = %v", payload)
	}
	if !graphics.spec.IgnoreStateFilter {
		t.Fatalf("spec = %+v", graphics.spec)
	}
}

func TestUnknownEvent(t *testing.T) {
	conn := dial(t, &fakeFilters{}, &fakeGraphics{})

	event, payload := roundTrip(t, conn, "bogusRequest", map[string]any{})
	if event != "errorResponse" {
		t.Fatalf("event = %q", event)
	}
	if payload["error"] != "unknown event" {
		t.Fatalf("payload = %v", payload)
	}
}
