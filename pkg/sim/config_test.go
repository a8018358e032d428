// pkg/sim/config_test.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"errors"
	gomath "math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mmp/airdispatch/pkg/math"
)

func TestConfigValidate(t *testing.T) {
	for _, test := range []struct {
		name   string
		modify func(c *Config)
		errors []string
	}{
		{name: "default", modify: func(c *Config) {}},
		{name: "minimal", modify: func(c *Config) { c.Width, c.Height, c.NumAirports, c.PlanesPerAirport = 1.5, 1.5, 2, 1 }},
		{name: "narrow", modify: func(c *Config) { c.Width = 1 }, errors: []string{"width"}},
		{name: "short", modify: func(c *Config) { c.Height = -3 }, errors: []string{"height"}},
		{name: "nan", modify: func(c *Config) { c.Width = gomath.NaN() }, errors: []string{"width"}},
		{name: "one airport", modify: func(c *Config) { c.NumAirports = 1 }, errors: []string{"2 airports"}},
		{name: "no planes", modify: func(c *Config) { c.PlanesPerAirport = 0 }, errors: []string{"1 plane"}},
		{name: "zero speed", modify: func(c *Config) { c.Speed = 0 }, errors: []string{"speed"}},
		{name: "infinite speed", modify: func(c *Config) { c.Speed = gomath.Inf(1) }, errors: []string{"speed"}},
		{
			name: "several",
			modify: func(c *Config) {
				c.Speed = -1
				c.NumAirports = 0
			},
			errors: []string{"speed", "2 airports"},
		},
		{
			name: "positions",
			modify: func(c *Config) {
				c.NumAirports = 2
				c.AirportPositions = []math.Point2{{1, 1}, {2, 3}}
			},
		},
		{
			name: "position count",
			modify: func(c *Config) {
				c.NumAirports = 3
				c.AirportPositions = []math.Point2{{1, 1}, {2, 3}}
			},
			errors: []string{"2 positions given for 3 airports"},
		},
		{
			name: "position outside",
			modify: func(c *Config) {
				c.NumAirports = 2
				c.AirportPositions = []math.Point2{{1, 1}, {20, 3}}
			},
			errors: []string{"outside"},
		},
		{
			name: "duplicate position",
			modify: func(c *Config) {
				c.NumAirports = 2
				c.AirportPositions = []math.Point2{{1, 1}, {1, 1}}
			},
			errors: []string{"both at"},
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			c := DefaultConfig()
			test.modify(&c)
			err := c.Validate()

			if len(test.errors) == 0 {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
			for _, s := range test.errors {
				if !strings.Contains(err.Error(), s) {
					t.Errorf("expected error to mention %q, got %q", s, err.Error())
				}
			}
		})
	}
}

func TestTotalPlanes(t *testing.T) {
	if n := DefaultConfig().TotalPlanes(); n != 100 {
		t.Errorf("expected 100, got %d", n)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	write := func(name, contents string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("%s: %v", path, err)
		}
		return path
	}

	c, err := LoadConfig(write("sim.json", `{"airports": 4, "speed": 2.5, "airport_positions": [[1,1],[2,2],[3,3],[4,4]]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.NumAirports != 4 || c.Speed != 2.5 || c.PlanesPerAirport != 10 || c.Width != 12 {
		t.Errorf("unexpected config from JSON: %+v", c)
	}
	if len(c.AirportPositions) != 4 || c.AirportPositions[2] != (math.Point2{3, 3}) {
		t.Errorf("unexpected airport positions %v", c.AirportPositions)
	}

	c, err = LoadConfig(write("sim.yaml", "width: 20\nheight: 30\nplanes_per_airport: 3\nseed: 99\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Width != 20 || c.Height != 30 || c.PlanesPerAirport != 3 || c.Seed != 99 || c.NumAirports != 10 {
		t.Errorf("unexpected config from YAML: %+v", c)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}

	if _, err := LoadConfig(write("bad.json", `{"airports": "many"}`)); err == nil {
		t.Errorf("expected error for malformed JSON")
	}
	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got %v", err)
	}
}
