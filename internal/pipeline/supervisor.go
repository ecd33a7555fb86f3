// AmparaWeb - Personal Safety Location Monitoring
// Copyright 2026 Argemiro Silva
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/argemirosilva/amparaweb-sub002

package pipeline

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/argemirosilva/amparaweb-sub002/internal/logging"
)

// Supervisor runs the pipeline's background services (currently the cache
// janitor) under a suture supervisor, restarting them on failure. Events
// are logged through the zerolog bridge.
type Supervisor struct {
	root *suture.Supervisor
}

// NewSupervisor creates the supervisor with suture's default failure
// parameters.
func NewSupervisor() *Supervisor {
	handler := &sutureslog.Handler{Logger: logging.NewSlogLogger()}
	root := suture.New("amparaweb-pipeline", suture.Spec{
		EventHook: handler.MustHook(),
		Timeout:   10 * time.Second,
	})
	return &Supervisor{root: root}
}

// Add registers a service with the supervisor.
func (s *Supervisor) Add(svc suture.Service) suture.ServiceToken {
	return s.root.Add(svc)
}

// Serve starts the supervised services and blocks until ctx is canceled.
func (s *Supervisor) Serve(ctx context.Context) error {
	return s.root.Serve(ctx)
}

// ServeBackground starts the supervised services in a background goroutine.
// The returned channel receives the terminal error when the supervisor
// stops.
func (s *Supervisor) ServeBackground(ctx context.Context) <-chan error {
	return s.root.ServeBackground(ctx)
}
