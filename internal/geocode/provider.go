// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
)

// Provider is the reverse-geocoding upstream boundary: coordinate in,
// address components out.
type Provider interface {
	Reverse(ctx context.Context, lat, lon float64) (*Address, error)
}

// Address holds the components the display formatter cares about.
type Address struct {
	DisplayName string
	Road        string
	Suburb      string
	City        string
	StateCode   string
}

// Provider failure reasons, used as the metric label and to decide whether a
// failure opens a backoff window.
const (
	ReasonRateLimited = "rate_limited"
	ReasonServerError = "server_error"
	ReasonTransport   = "transport"
	ReasonMalformed   = "malformed"
	ReasonClientError = "client_error"
	ReasonBreakerOpen = "breaker_open"
)

// ProviderError describes an upstream failure. Backoff reports whether the
// failure should open the resolver's backoff window; a plain 4xx (bad
// coordinate) degrades without penalizing the provider.
type ProviderError struct {
	Reason  string
	Backoff bool
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode provider %s: %v", e.Reason, e.Err)
	}
	return "geocode provider " + e.Reason
}

func (e *ProviderError) Unwrap() error { return e.Err }

// errorReason extracts the metric reason from a provider error.
func errorReason(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ReasonTransport
}

// shouldBackoff reports whether the failure must open a backoff window.
func shouldBackoff(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Backoff
	}
	return true
}

// NominatimClient implements Provider against a Nominatim-compatible reverse
// geocoding endpoint. Calls run through a circuit breaker so a sustained
// outage stops producing slow timeout waits; an open breaker degrades
// exactly like a transport failure.
type NominatimClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	breaker   *gobreaker.CircuitBreaker[*Address]
}

// nominatimResponse is the jsonv2 reverse response shape.
type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road          string `json:"road"`
		Suburb        string `json:"suburb"`
		Neighbourhood string `json:"neighbourhood"`
		City          string `json:"city"`
		Town          string `json:"town"`
		Village       string `json:"village"`
		StateCode     string `json:"state_code"`
	} `json:"address"`
}

// NewNominatimClient creates a reverse-geocode client. The user agent is
// mandatory for the public Nominatim instance's usage policy; timeout bounds
// every request (the reference behavior is ~6s).
func NewNominatimClient(baseURL, userAgent string, timeout time.Duration) *NominatimClient {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}

	name := "reverse-geocode"
	breaker := gobreaker.NewCircuitBreaker[*Address](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state transition")
		},
	})

	return &NominatimClient{
		client:    &http.Client{Timeout: timeout},
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		breaker:   breaker,
	}
}

// Reverse looks up the address for a coordinate.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (*Address, error) {
	addr, err := c.breaker.Execute(func() (*Address, error) {
		return c.query(ctx, lat, lon)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ProviderError{Reason: ReasonBreakerOpen, Backoff: true, Err: err}
		}
		return nil, err
	}
	return addr, nil
}

func (c *NominatimClient) query(ctx context.Context, lat, lon float64) (*Address, error) {
	params := url.Values{}
	params.Set("format", "jsonv2")
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	reqURL := c.baseURL + "/reverse?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, &ProviderError{Reason: ReasonTransport, Backoff: true, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &ProviderError{Reason: ReasonTransport, Backoff: true, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &ProviderError{Reason: ReasonRateLimited, Backoff: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode >= 500:
		return nil, &ProviderError{Reason: ReasonServerError, Backoff: true, Err: fmt.Errorf("status %d", resp.StatusCode)}
	default:
		return nil, &ProviderError{Reason: ReasonClientError, Backoff: false, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	var body nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &ProviderError{Reason: ReasonMalformed, Backoff: true, Err: err}
	}

	addr := &Address{
		DisplayName: body.DisplayName,
		Road:        body.Address.Road,
		Suburb:      firstNonEmpty(body.Address.Suburb, body.Address.Neighbourhood),
		City:        firstNonEmpty(body.Address.City, body.Address.Town, body.Address.Village),
		StateCode:   body.Address.StateCode,
	}

	if addr.DisplayName == "" && addr.Road == "" && addr.City == "" {
		return nil, &ProviderError{Reason: ReasonMalformed, Backoff: true, Err: errors.New("response missing address fields")}
	}

	return addr, nil
}

// FormatDisplay builds the display string shown in the app: the significant
// components joined with commas, with the state code appended when present.
// Falls back to the provider's free-text name when components are missing.
func FormatDisplay(addr *Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{addr.Road, addr.Suburb, addr.City} {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) == 0 {
		return addr.DisplayName
	}

	display := strings.Join(parts, ", ")
	if addr.StateCode != "" {
		display += " - " + strings.ToUpper(addr.StateCode)
	}
	return display
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
