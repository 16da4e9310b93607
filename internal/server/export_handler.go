package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openfiredata/bdqueimadas/internal/audit"
	"github.com/openfiredata/bdqueimadas/internal/export"
	"github.com/openfiredata/bdqueimadas/internal/logger"
	"github.com/openfiredata/bdqueimadas/internal/model"
)

// handleExportToken issues a short-lived download token for a session.
// The frontend fetches one right before navigating to /export.
func (s *Server) handleExportToken(w http.ResponseWriter, r *http.Request) {
	session := strings.TrimSpace(r.URL.Query().Get("session"))
	if session == "" {
		http.Error(w, "missing required parameter: session", http.StatusBadRequest)
		return
	}

	tok := logger.NewID()
	if err := s.deps.Tokens.Issue(r.Context(), session, tok, time.Now()); err != nil {
		s.deps.Logger.Error("token issue failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"token":%q}`+"\n", tok)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	req, err := parseExportRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session := strings.TrimSpace(r.URL.Query().Get("session"))
	tok := strings.TrimSpace(r.URL.Query().Get("t"))
	ok, err := s.deps.Guard.Permit(r.Context(), session, tok)
	if err != nil {
		s.deps.Logger.Error("token check failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "invalid or expired download token", http.StatusForbidden)
		return
	}

	name := export.DownloadName(req.Format, req.DateFrom, req.DateTo)
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if err := s.deps.Exporter.Export(r.Context(), w, req); err != nil {
		// headers may already be out; all we can do is log and abort
		s.deps.Logger.Error("export failed", "format", string(req.Format), "error", err)
		return
	}

	s.deps.Audit.Publish(audit.Event{
		Format:   string(req.Format),
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
		Session:  session,
		TS:       time.Now(),
	})
}

func parseExportRequest(r *http.Request) (export.Request, error) {
	q := r.URL.Query()

	dateFrom := strings.TrimSpace(q.Get("dateFrom"))
	dateTo := strings.TrimSpace(q.Get("dateTo"))
	if dateFrom == "" || dateTo == "" {
		return export.Request{}, errors.New("missing required parameters: dateFrom, dateTo")
	}

	format, err := model.ParseFormat(q.Get("format"))
	if err != nil {
		return export.Request{}, err
	}

	o := model.FilterOptions{
		Satellites: strings.TrimSpace(q.Get("satellites")),
		Biomes:     strings.TrimSpace(q.Get("biomes")),
		Countries:  strings.TrimSpace(q.Get("countries")),
		States:     strings.TrimSpace(q.Get("states")),
	}

	if raw := strings.TrimSpace(q.Get("extent")); raw != "" {
		e, err := parseExtent(raw)
		if err != nil {
			return export.Request{}, err
		}
		o.Extent = &e
	}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return export.Request{}, fmt.Errorf("invalid limit %q", raw)
		}
		o.Limit = n
	}

	return export.Request{
		DateFrom: dateFrom,
		DateTo:   dateTo,
		Format:   format,
		Options:  o,
	}, nil
}

// parseExtent reads a west,south,east,north bounding box.
func parseExtent(raw string) (model.Extent, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return model.Extent{}, errors.New("extent expects 4 comma-separated values: west,south,east,north")
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return model.Extent{}, fmt.Errorf("extent value %d: %w", i+1, err)
		}
		vals[i] = f
	}
	e := model.Extent{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}
	if e.West < -180 || e.East > 180 || e.South < -90 || e.North > 90 {
		return model.Extent{}, errors.New("extent out of range")
	}
	if e.East <= e.West || e.North <= e.South {
		return model.Extent{}, errors.New("extent must satisfy east>west and north>south")
	}
	return e, nil
}
