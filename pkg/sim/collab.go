// pkg/sim/collab.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
)

// RequestSource produces flight requests for one airport. Next blocks
// until the next request is due and returns the id of the destination
// airport, which is never the source's own airport. When ctx is cancelled
// Next returns ctx.Err().
type RequestSource interface {
	Next(ctx context.Context) (int, error)
}

// RequestSourceFactory creates the RequestSource for the given airport.
type RequestSourceFactory func(airport, numAirports int) RequestSource

// Servicer performs the turnaround of a plane that has landed. Service
// blocks until servicing is done or ctx is cancelled, in which case it
// returns ctx.Err().
type Servicer interface {
	Service(ctx context.Context, airport, plane int) error
}

// ServicerFunc adapts an ordinary function to the Servicer interface.
type ServicerFunc func(ctx context.Context, airport, plane int) error

func (f ServicerFunc) Service(ctx context.Context, airport, plane int) error {
	return f(ctx, airport, plane)
}

// RequestSourceFunc adapts an ordinary function to the RequestSource
// interface.
type RequestSourceFunc func(ctx context.Context) (int, error)

func (f RequestSourceFunc) Next(ctx context.Context) (int, error) {
	return f(ctx)
}
