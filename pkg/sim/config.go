// pkg/sim/config.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	gomath "math"
	"os"
	"path/filepath"
	"strings"

	"github.com/mmp/airdispatch/pkg/math"
	"github.com/mmp/airdispatch/pkg/util"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters of a simulation run; it is fixed once the
// Sim has been created.
type Config struct {
	Width            float64 `json:"width" yaml:"width"`
	Height           float64 `json:"height" yaml:"height"`
	NumAirports      int     `json:"airports" yaml:"airports"`
	PlanesPerAirport int     `json:"planes_per_airport" yaml:"planes_per_airport"`
	// Speed is in grid units per second.
	Speed float64 `json:"speed" yaml:"speed"`

	// Seed, if non-zero, makes airport placement reproducible.
	Seed int64 `json:"seed,omitempty" yaml:"seed,omitempty"`
	// AirportPositions optionally fixes the airport locations; otherwise
	// they are placed uniformly at random.
	AirportPositions []math.Point2 `json:"airport_positions,omitempty" yaml:"airport_positions,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Width:            12,
		Height:           12,
		NumAirports:      10,
		PlanesPerAirport: 10,
		Speed:            1.2,
	}
}

func (c Config) TotalPlanes() int {
	return c.NumAirports * c.PlanesPerAirport
}

// Validate reports every problem with the configuration, wrapped in
// ErrInvalidConfig.
func (c Config) Validate() error {
	var e util.ErrorLogger
	e.Push("config")
	defer e.Pop()

	finite := func(v float64) bool { return !gomath.IsNaN(v) && !gomath.IsInf(v, 0) }

	if !finite(c.Width) || c.Width <= 1 {
		e.ErrorString("width must be greater than 1, got %g", c.Width)
	}
	if !finite(c.Height) || c.Height <= 1 {
		e.ErrorString("height must be greater than 1, got %g", c.Height)
	}
	if c.NumAirports < 2 {
		e.ErrorString("at least 2 airports are required, got %d", c.NumAirports)
	}
	if c.PlanesPerAirport < 1 {
		e.ErrorString("at least 1 plane per airport is required, got %d", c.PlanesPerAirport)
	}
	if !finite(c.Speed) || c.Speed <= 0 {
		e.ErrorString("speed must be positive, got %g", c.Speed)
	}

	if len(c.AirportPositions) > 0 {
		e.Push("airport_positions")
		if len(c.AirportPositions) != c.NumAirports {
			e.ErrorString("%d positions given for %d airports", len(c.AirportPositions), c.NumAirports)
		}
		seen := make(map[math.Point2]int)
		for i, p := range c.AirportPositions {
			if p[0] < 0 || p[0] > c.Width || p[1] < 0 || p[1] > c.Height {
				e.ErrorString("airport %d: %s is outside the %gx%g grid", i, p, c.Width, c.Height)
			}
			if j, ok := seen[p]; ok {
				e.ErrorString("airports %d and %d are both at %s", j, i, p)
			}
			seen[p] = i
		}
		e.Pop()
	}

	return e.Err(ErrInvalidConfig)
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("width", c.Width),
		slog.Float64("height", c.Height),
		slog.Int("airports", c.NumAirports),
		slog.Int("planes_per_airport", c.PlanesPerAirport),
		slog.Float64("speed", c.Speed),
		slog.Int64("seed", c.Seed))
}

// LoadConfig reads a configuration from a JSON or YAML file; values not
// given in the file keep their defaults. The result is not validated.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()

	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &c)
	default:
		err = json.Unmarshal(b, &c)
	}
	if err != nil {
		return c, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}
