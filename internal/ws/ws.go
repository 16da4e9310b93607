// Package ws serves the realtime request/response channel the map
// client uses for filter lookups and chart data.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openfiredata/bdqueimadas/internal/model"
	"github.com/openfiredata/bdqueimadas/internal/observability"
)

// FilterService is the slice of the filter store the channel dispatches to.
type FilterService interface {
	Satellites(ctx context.Context, dateFrom, dateTo string, o model.FilterOptions) ([]model.Row, error)
	DataByIntersection(ctx context.Context, longitude, latitude, resolution float64) ([]model.Row, error)
	ContinentByCountry(ctx context.Context, country string) ([]model.Row, error)
	ContinentByState(ctx context.Context, state string) ([]model.Row, error)
	CountriesByStates(ctx context.Context, states []string) ([]model.Row, error)
	CountriesByContinent(ctx context.Context, continent string) ([]model.Row, error)
	StatesByCountry(ctx context.Context, country string) ([]model.Row, error)
	StatesByCountries(ctx context.Context, countries []string) ([]model.Row, error)
	Extent(ctx context.Context, key model.SpatialKey, ids []string) ([]model.Row, error)
}

// GraphicsService is the slice of the aggregation store the channel uses.
type GraphicsService interface {
	FiresCount(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error)
	FiresTotalCount(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error)
	FiresCountByWeek(ctx context.Context, dateFrom, dateTo string, spec model.AggregationSpec, o model.FilterOptions) ([]model.Row, error)
}

// envelope is the wire frame in both directions.
type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type reply struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

type Channel struct {
	filters  FilterService
	graphics GraphicsService
	logger   *slog.Logger
	upgrader websocket.Upgrader
	handlers map[string]handlerFunc
}

func NewChannel(filters FilterService, graphics GraphicsService, logger *slog.Logger) *Channel {
	c := &Channel{
		filters:  filters,
		graphics: graphics,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
	}
	c.handlers = map[string]handlerFunc{
		"spatialFilterRequest":            c.spatialFilter,
		"dataByIntersectionRequest":       c.dataByIntersection,
		"continentByCountryRequest":       c.continentByCountry,
		"continentByStateRequest":         c.continentByState,
		"countriesByStatesRequest":        c.countriesByStates,
		"countriesByContinentRequest":     c.countriesByContinent,
		"statesByCountryRequest":          c.statesByCountry,
		"statesByCountriesRequest":        c.statesByCountries,
		"getSatellitesRequest":            c.getSatellites,
		"graphicsFiresCountRequest":       c.graphicsFiresCount,
		"graphicsFiresCountByWeekRequest": c.graphicsFiresCountByWeek,
	}
	return c
}

// ServeHTTP upgrades the connection and runs the request/response loop
// until the client goes away.
func (c *Channel) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()
	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		out := c.dispatch(ctx, env)
		if err := conn.WriteJSON(out); err != nil {
			c.logger.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func (c *Channel) dispatch(ctx context.Context, env envelope) reply {
	h, ok := c.handlers[env.Event]
	if !ok {
		observability.ObserveWSEvent(env.Event, "unknown")
		return reply{Event: "errorResponse", Payload: map[string]any{
			"event": env.Event,
			"error": "unknown event",
		}}
	}

	payload, err := h(ctx, env.Payload)
	if err != nil {
		observability.ObserveWSEvent(env.Event, "error")
		c.logger.Error("event failed", "event", env.Event, "error", err)
		return reply{Event: "errorResponse", Payload: map[string]any{
			"event": env.Event,
			"error": err.Error(),
		}}
	}

	observability.ObserveWSEvent(env.Event, "ok")
	return reply{Event: responseEvent(env.Event), Payload: payload}
}

// responseEvent maps fooRequest to fooResponse.
func responseEvent(event string) string {
	const suffix = "Request"
	if len(event) > len(suffix) && event[len(event)-len(suffix):] == suffix {
		return event[:len(event)-len(suffix)] + "Response"
	}
	return event + "Response"
}
