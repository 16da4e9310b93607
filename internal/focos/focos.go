// Package focos calls the upstream fires API that backs the attribute
// lookups the local database does not carry.
package focos

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/openfiredata/bdqueimadas/internal/config"
)

// newOutbound configures the HTTP client used to call the upstream API.
func newOutbound() *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   128,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   30 * time.Second,
	}
}

type Client struct {
	cfg    config.FiresAPICfg
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg config.FiresAPICfg, logger *slog.Logger) *Client {
	return &Client{cfg: cfg, http: newOutbound(), logger: logger}
}

// expand fills the {0}, {1}, ... slots of a request template with args
// and {TOKEN} with the configured API token.
func expand(template, token string, args []string) string {
	out := strings.ReplaceAll(template, "{TOKEN}", token)
	for i, a := range args {
		out = strings.ReplaceAll(out, fmt.Sprintf("{%d}", i), a)
	}
	return out
}

// Request calls the named configured endpoint and decodes the JSON
// response. Upstream occasionally answers errors with non-JSON bodies;
// those decode to an empty object rather than failing the caller.
func (c *Client) Request(ctx context.Context, name string, args ...string) (map[string]any, error) {
	template, ok := c.cfg.Requests[name]
	if !ok {
		return nil, fmt.Errorf("unknown fires api request %q", name)
	}
	url := c.cfg.BaseURL + expand(template, c.cfg.Token, args)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fires api %s: %w", name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("fires api %s: read body: %w", name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fires api %s: status %d", name, resp.StatusCode)
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		c.logger.Warn("fires api returned non-json body", "request", name)
		return map[string]any{}, nil
	}
	return out, nil
}
