// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package geocode

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNominatimClient_ParsesResponse(t *testing.T) {
	var gotPath, gotFormat, gotLat, gotLon, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotPath = req.URL.Path
		gotFormat = req.URL.Query().Get("format")
		gotLat = req.URL.Query().Get("lat")
		gotLon = req.URL.Query().Get("lon")
		gotAgent = req.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"display_name": "Rua Augusta, Consolação, São Paulo, SP, Brasil",
			"address": {
				"road": "Rua Augusta",
				"neighbourhood": "Consolação",
				"town": "São Paulo",
				"state_code": "sp"
			}
		}`))
	}))
	defer server.Close()

	client := NewNominatimClient(server.URL, "amparaweb-test", 2*time.Second)
	addr, err := client.Reverse(context.Background(), -23.5530, -46.6529)
	if err != nil {
		t.Fatalf("Reverse() error: %v", err)
	}

	if gotPath != "/reverse" {
		t.Errorf("path = %q, want /reverse", gotPath)
	}
	if gotFormat != "jsonv2" {
		t.Errorf("format = %q, want jsonv2", gotFormat)
	}
	if gotLat != "-23.553" || gotLon != "-46.6529" {
		t.Errorf("lat,lon = %q,%q", gotLat, gotLon)
	}
	if gotAgent != "amparaweb-test" {
		t.Errorf("User-Agent = %q", gotAgent)
	}

	if addr.Road != "Rua Augusta" {
		t.Errorf("Road = %q", addr.Road)
	}
	if addr.Suburb != "Consolação" {
		t.Errorf("Suburb = %q (neighbourhood should fill in for missing suburb)", addr.Suburb)
	}
	if addr.City != "São Paulo" {
		t.Errorf("City = %q (town should fill in for missing city)", addr.City)
	}
	if addr.StateCode != "sp" {
		t.Errorf("StateCode = %q", addr.StateCode)
	}
}

func TestNominatimClient_StatusClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantReason  string
		wantBackoff bool
	}{
		{"rate limited", http.StatusTooManyRequests, "", ReasonRateLimited, true},
		{"server error", http.StatusInternalServerError, "", ReasonServerError, true},
		{"bad gateway", http.StatusBadGateway, "", ReasonServerError, true},
		{"not found", http.StatusNotFound, "", ReasonClientError, false},
		{"malformed body", http.StatusOK, "not json", ReasonMalformed, true},
		{"empty address", http.StatusOK, `{"display_name":"","address":{}}`, ReasonMalformed, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewNominatimClient(server.URL, "amparaweb-test", 2*time.Second)
			_, err := client.Reverse(context.Background(), -23.5530, -46.6529)
			if err == nil {
				t.Fatal("Reverse() returned nil error")
			}

			var pe *ProviderError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ProviderError", err)
			}
			if pe.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", pe.Reason, tt.wantReason)
			}
			if pe.Backoff != tt.wantBackoff {
				t.Errorf("Backoff = %v, want %v", pe.Backoff, tt.wantBackoff)
			}
		})
	}
}

func TestNominatimClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewNominatimClient(server.URL, "amparaweb-test", 2*time.Second)
	for i := 0; i < 5; i++ {
		if _, err := client.Reverse(context.Background(), -23.5, -46.6); err == nil {
			t.Fatalf("call %d unexpectedly succeeded", i)
		}
	}

	_, err := client.Reverse(context.Background(), -23.5, -46.6)
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Reason != ReasonBreakerOpen {
		t.Fatalf("after 5 consecutive failures error = %v, want breaker open", err)
	}
	if hits != 5 {
		t.Errorf("upstream hit %d times, want 5 (breaker must short-circuit the 6th)", hits)
	}
}

func TestFormatDisplay(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		want string
	}{
		{
			name: "full address",
			addr: Address{Road: "Avenida Paulista", Suburb: "Bela Vista", City: "São Paulo", StateCode: "sp"},
			want: "Avenida Paulista, Bela Vista, São Paulo - SP",
		},
		{
			name: "missing road",
			addr: Address{Suburb: "Centro", City: "Campinas", StateCode: "SP"},
			want: "Centro, Campinas - SP",
		},
		{
			name: "no state code",
			addr: Address{Road: "Rua XV de Novembro", City: "Curitiba"},
			want: "Rua XV de Novembro, Curitiba",
		},
		{
			name: "components missing falls back to display name",
			addr: Address{DisplayName: "Parque Ibirapuera, São Paulo, Brasil"},
			want: "Parque Ibirapuera, São Paulo, Brasil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDisplay(&tt.addr); got != tt.want {
				t.Errorf("FormatDisplay() = %q, want %q", got, tt.want)
			}
		})
	}
}
