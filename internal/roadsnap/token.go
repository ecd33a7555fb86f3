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
	"sync"
	"time"

	"github.com/goccy/go-json"
)

// TokenSource supplies the matcher's access token. Implementations must be
// safe for concurrent use.
type TokenSource interface {
	// Token returns a token, fetching one lazily if none is held.
	Token(ctx context.Context) (string, error)
	// Invalidate discards the held token so the next Token call refetches.
	Invalidate()
}

// StaticToken is a TokenSource holding a fixed token, for configurations
// where the token is provisioned out of band.
type StaticToken string

func (s StaticToken) Token(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("roadsnap: empty static token")
	}
	return string(s), nil
}

func (s StaticToken) Invalidate() {}

// HTTPTokenSource fetches a token from a JSON endpoint on first use and
// holds it for subsequent calls. A TTL of zero means the token is kept
// until Invalidate is called.
type HTTPTokenSource struct {
	client *http.Client
	url    string
	ttl    time.Duration

	mu        sync.Mutex
	token     string
	fetchedAt time.Time
}

// NewHTTPTokenSource creates a lazy token source against the given URL.
func NewHTTPTokenSource(url string, ttl time.Duration, timeout time.Duration) *HTTPTokenSource {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &HTTPTokenSource{
		client: &http.Client{Timeout: timeout},
		url:    url,
		ttl:    ttl,
	}
}

func (s *HTTPTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.ttl <= 0 || time.Since(s.fetchedAt) < s.ttl) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("roadsnap: building token request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("roadsnap: fetching token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("roadsnap: token endpoint returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("roadsnap: decoding token response: %w", err)
	}
	if body.Token == "" {
		return "", errors.New("roadsnap: token endpoint returned empty token")
	}

	s.token = body.Token
	s.fetchedAt = time.Now()
	return s.token, nil
}

func (s *HTTPTokenSource) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()
}
