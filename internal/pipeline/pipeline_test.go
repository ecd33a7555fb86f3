// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package pipeline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/argemirosilva/amparaweb-sub002/internal/config"
	"github.com/argemirosilva/amparaweb-sub002/internal/geocode"
	"github.com/argemirosilva/amparaweb-sub002/internal/metrics"
	"github.com/argemirosilva/amparaweb-sub002/internal/movement"
	"github.com/argemirosilva/amparaweb-sub002/internal/roadsnap"
)

func fp(v float64) *float64 { return &v }

type fakeResolver struct {
	calls  int
	result geocode.Result
}

func (f *fakeResolver) Resolve(ctx context.Context, lat, lon float64) geocode.Result {
	f.calls++
	return f.result
}

type fakeSnapper struct {
	trails [][]roadsnap.Point
	result roadsnap.Result
}

func (f *fakeSnapper) Snap(ctx context.Context, trail []roadsnap.Point) roadsnap.Result {
	f.trails = append(f.trails, trail)
	return f.result
}

func TestPipeline_ProcessEnrichesFix(t *testing.T) {
	resolver := &fakeResolver{result: geocode.Result{
		DisplayAddress: "Avenida Paulista, São Paulo - SP",
		Provider:       geocode.ProviderLive,
	}}
	snapped := roadsnap.Point{Lat: -23.5505, Lon: -46.6333}
	snapper := &fakeSnapper{result: roadsnap.Result{Point: snapped, Snapped: true}}
	p := New(resolver, snapper, metrics.NewIsolated(), 5)

	ts := time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC)
	obs := p.Process(context.Background(), "subject-1", Fix{
		Lat: -23.55052, Lon: -46.63331,
		Speed: fp(1.5), Accuracy: fp(8),
		Timestamp: ts,
	})

	if obs.SubjectID != "subject-1" {
		t.Errorf("SubjectID = %q", obs.SubjectID)
	}
	if obs.Address.DisplayAddress != "Avenida Paulista, São Paulo - SP" {
		t.Errorf("Address = %+v", obs.Address)
	}
	if !obs.Position.Snapped || obs.Position.Point != snapped {
		t.Errorf("Position = %+v", obs.Position)
	}
	if obs.Movement.SpeedKmh != 5.4 {
		t.Errorf("Movement.SpeedKmh = %v, want 5.4", obs.Movement.SpeedKmh)
	}
	// A single walking-speed fix is a candidate, not yet confirmed.
	if obs.Movement.Status != movement.StatusStationary {
		t.Errorf("Movement.Status = %v, want stationary before confirmation", obs.Movement.Status)
	}
	if !obs.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v", obs.Timestamp)
	}
}

func TestPipeline_ConfirmsMovementAfterTwoFixes(t *testing.T) {
	p := New(&fakeResolver{}, nil, metrics.NewIsolated(), 5)

	first := p.Process(context.Background(), "s", Fix{Lat: -23.55, Lon: -46.63, Speed: fp(10)})
	if first.Movement.Status != movement.StatusStationary {
		t.Errorf("first fix status = %v, want stationary", first.Movement.Status)
	}
	second := p.Process(context.Background(), "s", Fix{Lat: -23.551, Lon: -46.631, Speed: fp(10)})
	if second.Movement.Status != movement.StatusVehicle {
		t.Errorf("second fix status = %v, want vehicle", second.Movement.Status)
	}
	if second.Movement.Label != "Em veículo" {
		t.Errorf("Label = %q", second.Movement.Label)
	}
}

func TestPipeline_TrailMostRecentFirstAndCapped(t *testing.T) {
	snapper := &fakeSnapper{}
	p := New(&fakeResolver{}, snapper, metrics.NewIsolated(), 5)

	for i := 0; i < 7; i++ {
		p.Process(context.Background(), "s", Fix{Lat: float64(i), Lon: float64(i)})
	}

	last := snapper.trails[len(snapper.trails)-1]
	if len(last) != 5 {
		t.Fatalf("trail length = %d, want 5", len(last))
	}
	if last[0] != (roadsnap.Point{Lat: 6, Lon: 6}) {
		t.Errorf("trail[0] = %v, want the most recent fix", last[0])
	}
	if last[4] != (roadsnap.Point{Lat: 2, Lon: 2}) {
		t.Errorf("trail[4] = %v, want the oldest kept fix", last[4])
	}
}

func TestPipeline_SubjectsAreIsolated(t *testing.T) {
	p := New(&fakeResolver{}, nil, metrics.NewIsolated(), 5)

	for i := 0; i < 3; i++ {
		p.Process(context.Background(), "driver", Fix{Lat: -23.55, Lon: -46.63, Speed: fp(10)})
		p.Process(context.Background(), "walker", Fix{Lat: -23.56, Lon: -46.64, Speed: fp(1.4)})
	}

	driving := p.Process(context.Background(), "driver", Fix{Lat: -23.55, Lon: -46.63, Speed: fp(10)})
	walking := p.Process(context.Background(), "walker", Fix{Lat: -23.56, Lon: -46.64, Speed: fp(1.4)})

	if driving.Movement.Status != movement.StatusVehicle {
		t.Errorf("driver status = %v, want vehicle", driving.Movement.Status)
	}
	if walking.Movement.Status != movement.StatusWalking {
		t.Errorf("walker status = %v, want walking", walking.Movement.Status)
	}

	if got := p.SubjectCount(); got != 2 {
		t.Errorf("SubjectCount() = %d, want 2", got)
	}
	p.Forget("driver")
	if got := p.SubjectCount(); got != 1 {
		t.Errorf("SubjectCount() after Forget = %d, want 1", got)
	}
}

func TestPipeline_NilSnapperPassesRawPosition(t *testing.T) {
	p := New(&fakeResolver{}, nil, metrics.NewIsolated(), 5)

	obs := p.Process(context.Background(), "s", Fix{Lat: -23.55052, Lon: -46.63331})
	if obs.Position.Snapped {
		t.Error("Position.Snapped = true without a snapper")
	}
	want := roadsnap.Point{Lat: -23.55052, Lon: -46.63331}
	if obs.Position.Point != want {
		t.Errorf("Position.Point = %v, want raw fix %v", obs.Position.Point, want)
	}
}

func TestFromConfig_EndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"display_name": "Rua Augusta, São Paulo, Brasil",
			"address": {"road": "Rua Augusta", "city": "São Paulo", "state_code": "sp"}
		}`))
	}))
	defer server.Close()

	cfg := &config.Config{
		Geocode: config.GeocodeConfig{
			BaseURL:        server.URL,
			UserAgent:      "amparaweb-test",
			CacheTTL:       time.Minute,
			MinInterval:    time.Millisecond,
			BackoffInitial: time.Second,
			BackoffMax:     time.Minute,
			Timeout:        2 * time.Second,
		},
		RoadSnap: config.RoadSnapConfig{Enabled: false},
		Pipeline: config.PipelineConfig{TrailLength: 5, SweepInterval: time.Minute},
	}

	p, janitor := FromConfig(cfg, metrics.NewIsolated())
	if janitor == nil {
		t.Fatal("FromConfig() returned nil janitor")
	}

	obs := p.Process(context.Background(), "s", Fix{Lat: -23.5530, Lon: -46.6529, Speed: fp(0)})
	if obs.Address.DisplayAddress != "Rua Augusta, São Paulo - SP" {
		t.Errorf("DisplayAddress = %q", obs.Address.DisplayAddress)
	}
	if obs.Position.Snapped {
		t.Error("Position.Snapped = true with road snapping disabled")
	}
	if obs.Movement.Label != "Parado" {
		t.Errorf("Label = %q, want Parado", obs.Movement.Label)
	}
}
