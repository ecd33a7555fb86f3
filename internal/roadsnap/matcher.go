// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package roadsnap

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
)

// ErrUnauthorized reports a rejected access token. The caller should
// invalidate its token source and degrade.
var ErrUnauthorized = errors.New("roadsnap: access token rejected")

// Matcher resolves a chronological coordinate trail to a road-aligned
// position. The returned bool is false when the upstream found no match
// for the trail, which is not an error.
type Matcher interface {
	Match(ctx context.Context, token string, trail []Point) (Point, bool, error)
}

// matchRadiusMeters is the search radius passed per input coordinate.
const matchRadiusMeters = "25"

// OSRMMatcher implements Matcher against an OSRM/Mapbox map-matching
// endpoint (matching/v5 driving profile).
type OSRMMatcher struct {
	client  *http.Client
	baseURL string
}

type matchResponse struct {
	Code      string `json:"code"`
	Matchings []struct {
		Geometry struct {
			Coordinates [][]float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"matchings"`
}

// NewOSRMMatcher creates a map-matching client. Timeout bounds every
// request (the reference behavior is ~6s).
func NewOSRMMatcher(baseURL string, timeout time.Duration) *OSRMMatcher {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &OSRMMatcher{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Match sends the trail oldest-first and returns the end of the first
// matched geometry, which corresponds to the most recent fix.
func (m *OSRMMatcher) Match(ctx context.Context, token string, trail []Point) (Point, bool, error) {
	coords := make([]string, len(trail))
	radiuses := make([]string, len(trail))
	for i, p := range trail {
		coords[i] = strconv.FormatFloat(p.Lon, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lat, 'f', -1, 64)
		radiuses[i] = matchRadiusMeters
	}

	params := url.Values{}
	params.Set("radiuses", strings.Join(radiuses, ";"))
	params.Set("geometries", "geojson")
	params.Set("access_token", token)

	reqURL := m.baseURL + "/matching/v5/driving/" + strings.Join(coords, ";") + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return Point{}, false, fmt.Errorf("roadsnap: building match request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return Point{}, false, fmt.Errorf("roadsnap: match request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Point{}, false, ErrUnauthorized
	default:
		return Point{}, false, fmt.Errorf("roadsnap: match endpoint returned status %d", resp.StatusCode)
	}

	var body matchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Point{}, false, fmt.Errorf("roadsnap: decoding match response: %w", err)
	}

	if body.Code != "Ok" || len(body.Matchings) == 0 {
		return Point{}, false, nil
	}
	coordsOut := body.Matchings[0].Geometry.Coordinates
	if len(coordsOut) == 0 {
		return Point{}, false, nil
	}

	last := coordsOut[len(coordsOut)-1]
	if len(last) < 2 {
		return Point{}, false, fmt.Errorf("roadsnap: malformed coordinate in match response")
	}
	return Point{Lat: last[1], Lon: last[0]}, true, nil
}
