// Package whop wraps the commerce platform REST API used for membership
// lookups and seller permission checks.
package whop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nicholaswood-whop/trading-view-whop/internal/httpclient"
	"github.com/rs/zerolog"
)

// activeStatuses are membership states that entitle the buyer to access.
var activeStatuses = map[string]bool{
	"active":    true,
	"trialing":  true,
	"completed": true,
}

// Client provides methods to interact with the Whop API.
type Client struct {
	baseURL    string
	apiKey     string
	appID      string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig holds configuration for creating a new Whop client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	AppID   string
	Timeout time.Duration
}

// NewClient creates a new Whop API client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("whop client: base URL is required")
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("whop client: invalid URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    strings.TrimRight(parsedURL.String(), "/"),
		apiKey:     cfg.APIKey,
		appID:      cfg.AppID,
		httpClient: httpclient.NewSimple(timeout),
		logger:     logger.With().Str("component", "whop_client").Logger(),
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client. Used to route calls
// through a proxy-aware client or a test server.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// GetMembership retrieves a membership by ID.
func (c *Client) GetMembership(ctx context.Context, membershipID string) (*Membership, error) {
	var membership Membership
	if err := c.get(ctx, "/memberships/"+url.PathEscape(membershipID), &membership); err != nil {
		return nil, fmt.Errorf("whop: get membership %s: %w", membershipID, err)
	}
	return &membership, nil
}

// GetProduct retrieves a product by ID.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var product Product
	if err := c.get(ctx, "/products/"+url.PathEscape(productID), &product); err != nil {
		return nil, fmt.Errorf("whop: get product %s: %w", productID, err)
	}
	return &product, nil
}

// GetExperience retrieves an experience by ID.
func (c *Client) GetExperience(ctx context.Context, experienceID string) (*Experience, error) {
	var experience Experience
	if err := c.get(ctx, "/experiences/"+url.PathEscape(experienceID), &experience); err != nil {
		return nil, fmt.Errorf("whop: get experience %s: %w", experienceID, err)
	}
	return &experience, nil
}

// GetCompany retrieves a company by ID.
func (c *Client) GetCompany(ctx context.Context, companyID string) (*Company, error) {
	var company Company
	if err := c.get(ctx, "/companies/"+url.PathEscape(companyID), &company); err != nil {
		return nil, fmt.Errorf("whop: get company %s: %w", companyID, err)
	}
	return &company, nil
}

// ListAuthorizedUsers retrieves the team members of a company.
func (c *Client) ListAuthorizedUsers(ctx context.Context, companyID string) ([]AuthorizedUser, error) {
	var result listResponse[AuthorizedUser]
	path := "/companies/" + url.PathEscape(companyID) + "/authorized_users"
	if err := c.get(ctx, path, &result); err != nil {
		return nil, fmt.Errorf("whop: list authorized users for %s: %w", companyID, err)
	}
	return result.Data, nil
}

// IsUserOwnerOrAdmin reports whether the user may administer the company.
// The company owner field is checked first, then the authorized users list.
// Any API failure counts as not authorized.
func (c *Client) IsUserOwnerOrAdmin(ctx context.Context, userID, companyID string) bool {
	company, err := c.GetCompany(ctx, companyID)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("company_id", companyID).
			Msg("company lookup failed during admin check")
	} else if company.ownerUserID() == userID {
		return true
	}

	users, err := c.ListAuthorizedUsers(ctx, companyID)
	if err != nil {
		c.logger.Warn().Err(err).
			Str("company_id", companyID).
			Msg("authorized users lookup failed during admin check")
		return false
	}

	for _, u := range users {
		if u.UserID != userID {
			continue
		}
		switch strings.ToLower(u.Role) {
		case "owner", "admin":
			return true
		}
	}
	return false
}

// IsMembershipActive reports whether a membership entitles access.
func IsMembershipActive(m *Membership) bool {
	if m == nil {
		return false
	}
	return m.Valid || activeStatuses[strings.ToLower(m.Status)]
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// newRequest creates a new HTTP request with authentication.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	return req, nil
}

// checkResponse checks if the HTTP response indicates an error.
func (c *Client) checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(resp.Body)

	var apiErr APIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
}
