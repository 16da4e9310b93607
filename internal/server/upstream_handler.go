package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// handleUpstream proxies a named fires-API request. Positional template
// arguments come in as a comma-separated "args" parameter.
func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var args []string
	if raw := strings.TrimSpace(r.URL.Query().Get("args")); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			args = append(args, strings.TrimSpace(a))
		}
	}

	out, err := s.deps.Upstream.Request(r.Context(), name, args...)
	if err != nil {
		s.deps.Logger.Error("upstream request failed", "request", name, "error", err)
		http.Error(w, "upstream request failed", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
