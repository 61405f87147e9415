// Package client provides the HTTP client for a remote Bargn deployment.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/bargn/bargn/pkg/models"
)

// Options configures a Client. When ClientID, ClientSecret and TokenURL are
// all set, requests carry a token obtained through the OAuth2 client
// credentials grant; otherwise Token is sent as a static bearer token.
type Options struct {
	URL          string
	Timeout      time.Duration
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Client is the Bargn API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new Bargn API client
func New(ctx context.Context, opts Options) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("server URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	// Ensure URL doesn't have trailing slash
	baseURL := strings.TrimSuffix(opts.URL, "/")

	base := &http.Client{Timeout: opts.Timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	var httpClient *http.Client
	switch {
	case opts.ClientID != "" && opts.ClientSecret != "" && opts.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     opts.ClientID,
			ClientSecret: opts.ClientSecret,
			TokenURL:     opts.TokenURL,
			Scopes:       opts.Scopes,
		}
		httpClient = cc.Client(ctx)
	case opts.Token != "":
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}))
	default:
		httpClient = base
	}
	httpClient.Timeout = opts.Timeout

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// APIError represents an error response from the API
type APIError struct {
	Status     string `json:"status"`
	Message    string `json:"error"`
	ErrorType  string `json:"error_type,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *APIError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("%s (%d): %s", e.ErrorType, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
}

// DoJSON performs a request and decodes the JSON response into result.
func (c *Client) DoJSON(ctx context.Context, method, path string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "bargn-cli/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err != nil || apiErr.Message == "" {
			return &APIError{
				Status:     "error",
				Message:    strings.TrimSpace(string(respBody)),
				StatusCode: resp.StatusCode,
			}
		}
		apiErr.StatusCode = resp.StatusCode
		return &apiErr
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// --- API Methods ---

// EvaluateAlerts triggers an alert evaluation run on the server.
func (c *Client) EvaluateAlerts(ctx context.Context) (*models.EvaluateAlertsResponse, error) {
	var resp models.EvaluateAlertsResponse
	if err := c.DoJSON(ctx, http.MethodPost, "/api/v1/funnels/alerts/check", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AnalyzeFunnel requests AI recommendations for a funnel.
func (c *Client) AnalyzeFunnel(ctx context.Context, funnelID string) (*models.AnalyzeFunnelResponse, error) {
	var resp models.AnalyzeFunnelResponse
	err := c.DoJSON(ctx, http.MethodPost, "/api/v1/funnels/analyze", models.AnalyzeFunnelRequest{FunnelID: funnelID}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

type funnelsResponse struct {
	Status string                  `json:"status"`
	Data   []models.FunnelSnapshot `json:"data"`
}

// ListFunnels returns the funnel snapshots known to the server.
func (c *Client) ListFunnels(ctx context.Context) ([]models.FunnelSnapshot, error) {
	var resp funnelsResponse
	if err := c.DoJSON(ctx, http.MethodGet, "/api/v1/funnels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}
