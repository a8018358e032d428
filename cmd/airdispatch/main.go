// cmd/airdispatch/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// airdispatch runs the air traffic dispatch simulation: planes ferry
// between randomly placed airports in response to flight requests,
// landing and being serviced before they can fly again.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mmp/airdispatch/pkg/log"
	"github.com/mmp/airdispatch/pkg/rand"
	"github.com/mmp/airdispatch/pkg/server"
	"github.com/mmp/airdispatch/pkg/sim"
	"github.com/mmp/airdispatch/pkg/util"

	"github.com/charmbracelet/lipgloss"
	"github.com/goforj/godump"
	"golang.org/x/sync/errgroup"
)

var (
	configFile  = flag.String("config", "", "JSON or YAML file with the simulation configuration")
	width       = flag.Float64("width", 0, "grid width (overrides the configuration)")
	height      = flag.Float64("height", 0, "grid height (overrides the configuration)")
	numAirports = flag.Int("airports", 0, "number of airports (overrides the configuration)")
	numPlanes   = flag.Int("planes", 0, "planes per airport (overrides the configuration)")
	speed       = flag.Float64("speed", 0, "plane speed in grid units per second (overrides the configuration)")
	seed        = flag.Int64("seed", 0, "random seed for airport placement")
	duration    = flag.Duration("duration", 0, "stop the simulation after this long (default: run until interrupted)")
	httpAddr    = flag.String("http", "", "address to serve simulation status on (e.g., localhost:8080)")
	journalFile = flag.String("journal", "", "file to record simulation events to")
	logLevel    = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir      = flag.String("logdir", "", "log file directory")
	console     = flag.Bool("console", false, "also write log messages to stderr")
	cpuprofile  = flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile  = flag.String("memprofile", "", "write memory profile to this file")
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	flightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6EF4A1"))
	groundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F4C16E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F45E6E"))
)

// makeConfig loads the configuration file, if any, and then applies the
// values of any command-line flags that were given.
func makeConfig() (sim.Config, error) {
	config := sim.DefaultConfig()
	if *configFile != "" {
		var err error
		if config, err = sim.LoadConfig(*configFile); err != nil {
			return config, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "width":
			config.Width = *width
		case "height":
			config.Height = *height
		case "airports":
			config.NumAirports = *numAirports
		case "planes":
			config.PlanesPerAirport = *numPlanes
		case "speed":
			config.Speed = *speed
		case "seed":
			config.Seed = *seed
		}
	})

	return config, config.Validate()
}

func statusLine(s *sim.Sim) string {
	c := s.Counters()
	return titleStyle.Render(fmt.Sprintf("[%s]", s.Uptime(time.Now()).Round(time.Second))) + " " +
		flightStyle.Render(fmt.Sprintf("In-Flight: %d", c.InFlight)) + " | " +
		groundStyle.Render(fmt.Sprintf("Servicing: %d", c.Servicing)) + " | " +
		fmt.Sprintf("Completed: %d", c.Completed)
}

func fatal(lg *log.Logger, msg string, err error) {
	lg.Error(msg, slog.Any("error", err))
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("%s: %v", msg, err)))
	os.Exit(1)
}

func main() {
	flag.Parse()

	lg := log.New(log.Options{Level: *logLevel, Dir: *logDir, Console: *console})
	defer lg.CatchAndReportCrash()

	profiler, err := util.CreateProfiler(*cpuprofile, *memprofile)
	if err != nil {
		lg.Errorf("%v", err)
	} else {
		defer func() {
			if err := profiler.Cleanup(); err != nil {
				lg.Errorf("%v", err)
			}
		}()
	}

	config, err := makeConfig()
	if err != nil {
		fatal(lg, "Invalid configuration", err)
	}
	if *logLevel == "debug" {
		godump.Dump(config)
	}
	if config.Seed != 0 {
		// Also makes the request and servicing times repeatable.
		rand.Seed(config.Seed)
	}

	s, err := sim.NewSim(config, sim.Options{}, lg)
	if err != nil {
		fatal(lg, "Unable to create simulation", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	// The journal and HTTP server outlive the simulation so that they
	// see its final events.
	auxCtx, auxCancel := context.WithCancel(context.Background())
	var eg errgroup.Group

	if *journalFile != "" {
		f, err := os.Create(*journalFile)
		if err != nil {
			fatal(lg, "Unable to create journal", err)
		}
		defer f.Close()

		j, err := sim.NewJournal(f, s, lg)
		if err != nil {
			fatal(lg, "Unable to start journal", err)
		}
		fmt.Printf("Recording run %s to %s\n", j.RunId(), *journalFile)
		eg.Go(func() error {
			defer lg.CatchAndReportCrash()
			return j.Run(auxCtx, time.Second)
		})
	}

	if *httpAddr != "" {
		srv := server.New(s, lg)
		eg.Go(func() error {
			defer lg.CatchAndReportCrash()
			return srv.ListenAndServe(auxCtx, *httpAddr)
		})
	}

	if err := s.Start(); err != nil {
		fatal(lg, "Unable to start simulation", err)
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("Simulating %d planes at %d airports. Logging to %s",
		config.TotalPlanes(), config.NumAirports, lg.LogFile)))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			fmt.Println(statusLine(s))
		}
	}

	fmt.Println("Shutting down...")
	s.End()
	fmt.Println(statusLine(s))

	auxCancel()
	if err := eg.Wait(); err != nil {
		lg.Error("shutdown", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
	}
}
