// Package weather looks up current conditions from OpenWeatherMap.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	loggerpkg "github.com/minhyannv/weather-agent-go/pkg/logger"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"
	DefaultUnits   = "metric"
	DefaultTimeout = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// ErrLookup is matched by every failure Fetch returns.
var ErrLookup = errors.New("weather lookup failed")

// Result is the current weather for one city.
type Result struct {
	Temperature float64 `json:"temperature"`
	Description string  `json:"description"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
}

// LookupError describes why a lookup produced no Result.
type LookupError struct {
	City   string
	Reason string
	Err    error
}

func (e *LookupError) Error() string {
	if e.City == "" {
		return "weather lookup failed: " + e.Reason
	}
	return fmt.Sprintf("weather lookup for %q failed: %s", e.City, e.Reason)
}

func (e *LookupError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLookup}
	}
	return []error{ErrLookup, e.Err}
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Units      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     loggerpkg.Logger
	Verbose    bool
}

// Client performs one HTTP request per Fetch. It neither caches nor retries.
type Client struct {
	apiKey     string
	baseURL    string
	units      string
	timeout    time.Duration
	httpClient *http.Client
	logger     loggerpkg.Logger
	verbose    bool
}

// New builds a Client, filling unset options with defaults.
func New(opts Options) *Client {
	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimSpace(opts.BaseURL),
		units:      strings.TrimSpace(opts.Units),
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		verbose:    opts.Verbose,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.units == "" {
		c.units = DefaultUnits
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = loggerpkg.NopLogger{}
	}
	return c
}

// providerResponse mirrors the subset of the OpenWeatherMap payload we read.
type providerResponse struct {
	Cod     json.RawMessage `json:"cod"`
	Message json.RawMessage `json:"message"`
	Main    *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
}

// Fetch returns the current weather for city. Every failure is a
// *LookupError.
func (c *Client) Fetch(ctx context.Context, city string) (Result, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return Result{}, &LookupError{Reason: "city is required"}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint, err := url.Parse(c.baseURL)
	if err != nil {
		return Result{}, &LookupError{City: city, Reason: "invalid provider url", Err: err}
	}
	query := endpoint.Query()
	query.Set("q", city)
	query.Set("appid", c.apiKey)
	query.Set("units", c.units)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Result{}, &LookupError{City: city, Reason: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	loggerpkg.Debug(c.verbose, c.logger, "weather request", map[string]any{
		"city":  city,
		"units": c.units,
	})
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return Result{}, &LookupError{City: city, Reason: fmt.Sprintf("timed out after %s", c.timeout), Err: err}
		}
		return Result{}, &LookupError{City: city, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Result{}, &LookupError{City: city, Reason: "read response", Err: err}
	}
	loggerpkg.Debug(c.verbose, c.logger, "weather response", map[string]any{
		"city":        city,
		"http_status": resp.StatusCode,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	result, err := parseResponse(city, resp.StatusCode, body)
	if err != nil {
		loggerpkg.Warn(c.logger, "weather lookup failed", map[string]any{"city": city, "error": err})
		return Result{}, err
	}
	return result, nil
}

func parseResponse(city string, httpStatus int, body []byte) (Result, error) {
	var payload providerResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		if httpStatus != http.StatusOK {
			return Result{}, &LookupError{City: city, Reason: fmt.Sprintf("HTTP %d", httpStatus), Err: err}
		}
		return Result{}, &LookupError{City: city, Reason: "malformed response", Err: err}
	}

	code, ok := parseCode(payload.Cod)
	if !ok {
		code = httpStatus
	}
	if code != http.StatusOK {
		reason := rawText(payload.Message)
		if reason == "" {
			reason = fmt.Sprintf("provider status %d", code)
		}
		return Result{}, &LookupError{City: city, Reason: reason}
	}

	var missing []string
	if payload.Main == nil || payload.Main.Temp == nil {
		missing = append(missing, "main.temp")
	}
	if payload.Main == nil || payload.Main.Humidity == nil {
		missing = append(missing, "main.humidity")
	}
	if len(payload.Weather) == 0 {
		missing = append(missing, "weather[0].description")
	}
	if payload.Wind == nil || payload.Wind.Speed == nil {
		missing = append(missing, "wind.speed")
	}
	if len(missing) > 0 {
		return Result{}, &LookupError{City: city, Reason: "response missing " + strings.Join(missing, ", ")}
	}

	return Result{
		Temperature: *payload.Main.Temp,
		Description: payload.Weather[0].Description,
		Humidity:    *payload.Main.Humidity,
		WindSpeed:   *payload.Wind.Speed,
	}, nil
}

// parseCode accepts both 200 and "404"; the provider is inconsistent.
func parseCode(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return n, true
		}
	}
	return 0, false
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
