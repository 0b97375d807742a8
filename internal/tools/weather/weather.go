// Package weather implements the current_weather and simple_forecast tools
// on top of the OpenWeather 2.5 API.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the OpenWeather API root used when none is configured.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

// Context keys for storing request-specific values
type contextKey string

const (
	// ContextKeyAPIURL is the key for the API URL in the context
	ContextKeyAPIURL contextKey = "api_url"
	// ContextKeyAPIKey is the key for the API key in the context
	ContextKeyAPIKey contextKey = "api_key"
)

// Header names that override the configured API URL and key per request.
const (
	HeaderAPIURL = "X-Weather-API-URL"
	HeaderAPIKey = "X-Weather-API-Key"
)

// Config holds the weather settings.
type Config struct {
	APIKey      string
	BaseURL     string
	DefaultCity string
	Units       string
	Timeout     time.Duration

	// AllowOverrides enables the per-request API URL and key headers.
	AllowOverrides bool
}

// DefaultConfig returns the settings used when the environment is silent.
func DefaultConfig() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		DefaultCity: "Seoul",
		Units:       "metric",
		Timeout:     10 * time.Second,
	}
}

// Client calls the OpenWeather API.
type Client struct {
	config     Config
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client. A nil httpClient gets one with the configured timeout.
func NewClient(config Config, httpClient *http.Client, logger zerolog.Logger) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Client{
		config:     config,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "weather_client").Logger(),
	}
}

// City returns city trimmed, or the configured default when it is empty.
func (c *Client) City(city string) string {
	city = strings.TrimSpace(city)
	if city == "" {
		city = strings.TrimSpace(c.config.DefaultCity)
	}
	return city
}

// Units returns the configured unit system.
func (c *Client) Units() string {
	return c.config.Units
}

// Fetch calls endpoint (e.g. "weather" or "forecast") with params and returns
// the raw JSON body. The API URL and key in ctx take precedence over the config.
func (c *Client) Fetch(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	baseURL := c.config.BaseURL
	if v, ok := ctx.Value(ContextKeyAPIURL).(string); ok && v != "" {
		baseURL = v
	}
	apiKey := c.config.APIKey
	if v, ok := ctx.Value(ContextKeyAPIKey).(string); ok && v != "" {
		apiKey = v
	}

	if apiKey == "" {
		return nil, fmt.Errorf("OPEN_WEATHER_API_KEY is not configured")
	}

	// Create request
	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	q.Set("appid", apiKey)
	endpointURL := strings.TrimRight(baseURL, "/") + "/" + endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("city", params.Get("q")).
		Msg("Calling weather API")

	// Send request
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	// Read response
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// Check for non-200 status codes
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if !json.Valid(body) {
		return nil, fmt.Errorf("invalid JSON in weather response")
	}

	return body, nil
}

// ContextMiddleware copies the API override headers into the request context.
func ContextMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if v := r.Header.Get(HeaderAPIURL); v != "" {
			ctx = context.WithValue(ctx, ContextKeyAPIURL, v)
		}
		if v := r.Header.Get(HeaderAPIKey); v != "" {
			ctx = context.WithValue(ctx, ContextKeyAPIKey, v)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
