// pkg/sim/errors.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
)

var (
	ErrInvalidConfig  = errors.New("Invalid simulation configuration")
	ErrSimStopped     = errors.New("Simulation has been stopped")
	ErrUnknownAirport = errors.New("Unknown airport")
	ErrUnknownPlane   = errors.New("Unknown plane")
	ErrWrongAirport   = errors.New("Plane is not at the dispatching airport")
)
