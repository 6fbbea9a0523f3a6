// Package tradingview drives the indicator host with a seller's session
// cookies. There is no official API for script access management, so the
// client talks to the endpoints the web UI itself uses. Endpoint shapes and
// paths drift between host releases, which is why listing probes several
// candidates and normalizes whatever comes back.
package tradingview

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicholaswood-whop/trading-view-whop/internal/metrics"
	"github.com/rs/zerolog"
)

// userAgent mimics a desktop browser. The host rejects obviously
// programmatic agents on the session endpoints.
const userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// listEndpoints are tried in order until one returns a non-empty catalog.
var listEndpoints = []string{
	"/pine_facade/list/",
	"/u/scripts/",
	"/api/v1/user/scripts/",
}

const (
	sharePath        = "/pine_perm/share/"
	invitePath       = "/pine_perm/invite/"
	removeAccessPath = "/pine_perm/remove_access/"
	profilePath      = "/u/"
)

// Client provides methods to interact with the indicator host.
type Client struct {
	baseURL       string
	sessionID     string
	sessionIDSign string
	httpClient    *http.Client
	logger        zerolog.Logger
}

// ClientConfig holds configuration for creating a new client.
type ClientConfig struct {
	BaseURL       string
	SessionID     string
	SessionIDSign string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// NewClient creates a new indicator host client bound to one session.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("tradingview client: base URL is required")
	}
	if cfg.SessionID == "" {
		return nil, fmt.Errorf("tradingview client: session ID is required")
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("tradingview client: invalid URL: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	// Redirects to the signin page are how the host reports a dead
	// session; the caller inspects the status instead of following.
	httpClient.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	return &Client{
		baseURL:       strings.TrimRight(parsedURL.String(), "/"),
		sessionID:     cfg.SessionID,
		sessionIDSign: cfg.SessionIDSign,
		httpClient:    httpClient,
		logger:        logger.With().Str("component", "tradingview_client").Logger(),
	}, nil
}

// VerifyConnection checks that the session cookies are still accepted.
func (c *Client) VerifyConnection(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, profilePath, nil)
	if err != nil {
		return fmt.Errorf("tradingview: create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("tradingview: connection failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 && resp.StatusCode < 400 {
		return fmt.Errorf("tradingview: session rejected, redirected to %s", resp.Header.Get("Location"))
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("tradingview: session check failed with status %d", resp.StatusCode)
	}
	return nil
}

// ListIndicators probes the catalog endpoints and returns whatever scripts
// could be discovered. An empty slice means the catalog is unknown, not
// necessarily empty; callers must offer a manual path. The probe trail is
// returned for operator diagnostics.
func (c *Client) ListIndicators(ctx context.Context) ([]Indicator, []ProbeResult) {
	var probes []ProbeResult

	for _, endpoint := range listEndpoints {
		indicators, probe := c.probeEndpoint(ctx, endpoint)
		probes = append(probes, probe)
		metrics.IndicatorProbes.WithLabelValues(endpoint, probe.Outcome).Inc()

		c.logger.Info().
			Str("endpoint", endpoint).
			Int("status", probe.Status).
			Str("outcome", probe.Outcome).
			Int("count", probe.Count).
			Msg("indicator list probe")

		if len(indicators) > 0 {
			return indicators, probes
		}
	}

	c.logger.Warn().Msg("no probe endpoint returned indicators, catalog unknown")
	return nil, probes
}

func (c *Client) probeEndpoint(ctx context.Context, endpoint string) ([]Indicator, ProbeResult) {
	probe := ProbeResult{Endpoint: endpoint}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		probe.Outcome = "request_error"
		return nil, probe
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		probe.Outcome = "unreachable"
		return nil, probe
	}
	defer resp.Body.Close()

	probe.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		probe.Outcome = "bad_status"
		io.Copy(io.Discard, resp.Body)
		return nil, probe
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		probe.Outcome = "read_error"
		return nil, probe
	}

	indicators := normalizeScripts(body)
	probe.Count = len(indicators)
	if len(indicators) == 0 {
		probe.Outcome = "empty"
		return nil, probe
	}
	probe.Outcome = "ok"
	return indicators, probe
}

// GrantAccess shares a script with a host username. The share endpoint is
// tried first; some script types only accept the invite endpoint.
func (c *Client) GrantAccess(ctx context.Context, pineID, username string) error {
	shareErr := c.postForm(ctx, sharePath, pineID, username)
	if shareErr == nil {
		metrics.AccessGrants.WithLabelValues("success").Inc()
		return nil
	}
	c.logger.Debug().Err(shareErr).
		Str("pine_id", pineID).
		Msg("share endpoint refused grant, trying invite")

	if err := c.postForm(ctx, invitePath, pineID, username); err != nil {
		metrics.AccessGrants.WithLabelValues("failure").Inc()
		return fmt.Errorf("tradingview: grant access to %s: %w", pineID, err)
	}
	metrics.AccessGrants.WithLabelValues("success").Inc()
	return nil
}

// RevokeAccess removes a host username from a script.
func (c *Client) RevokeAccess(ctx context.Context, pineID, username string) error {
	deleteErr := c.deleteShare(ctx, pineID, username)
	if deleteErr == nil {
		metrics.AccessRevocations.WithLabelValues("success").Inc()
		return nil
	}
	c.logger.Debug().Err(deleteErr).
		Str("pine_id", pineID).
		Msg("share delete refused, trying remove_access")

	if err := c.postForm(ctx, removeAccessPath, pineID, username); err != nil {
		metrics.AccessRevocations.WithLabelValues("failure").Inc()
		return fmt.Errorf("tradingview: revoke access to %s: %w", pineID, err)
	}
	metrics.AccessRevocations.WithLabelValues("success").Inc()
	return nil
}

func (c *Client) postForm(ctx context.Context, path, pineID, username string) error {
	form := url.Values{}
	form.Set("pine_id", pineID)
	form.Set("username_recip", username)

	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.doAndCheck(req)
}

func (c *Client) deleteShare(ctx context.Context, pineID, username string) error {
	query := url.Values{}
	query.Set("pine_id", pineID)
	query.Set("username_recip", username)

	req, err := c.newRequest(ctx, http.MethodDelete, sharePath+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	return c.doAndCheck(req)
}

func (c *Client) doAndCheck(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	req.AddCookie(&http.Cookie{Name: "sessionid", Value: c.sessionID})
	if c.sessionIDSign != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid_sign", Value: c.sessionIDSign})
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", c.baseURL+"/")

	return req, nil
}

// normalizeScripts flattens the several response shapes the catalog
// endpoints return into one indicator list.
func normalizeScripts(body []byte) []Indicator {
	var entries []map[string]any

	if err := json.Unmarshal(body, &entries); err != nil {
		var wrapper map[string]any
		if err := json.Unmarshal(body, &wrapper); err != nil {
			return nil
		}
		for _, key := range []string{"results", "data", "scripts"} {
			raw, ok := wrapper[key].([]any)
			if !ok {
				continue
			}
			for _, item := range raw {
				if entry, ok := item.(map[string]any); ok {
					entries = append(entries, entry)
				}
			}
			if len(entries) > 0 {
				break
			}
		}
	}

	var indicators []Indicator
	for _, entry := range entries {
		id := stringField(entry, "id", "script_id", "pine_id")
		name := stringField(entry, "name", "script_name", "title")
		if id == "" || name == "" {
			continue
		}
		indicators = append(indicators, Indicator{
			ID:       id,
			Name:     name,
			ScriptID: stringField(entry, "script_id", "scriptIdPart"),
		})
	}
	return indicators
}

func stringField(entry map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := entry[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}
