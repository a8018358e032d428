// cmd/journaldump/main.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// journaldump prints the contents of an airdispatch event journal.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmp/airdispatch/pkg/sim"

	"github.com/goforj/godump"
)

var (
	showEvents = flag.Bool("events", false, "print every event rather than just a summary")
	plane      = flag.Int("plane", -1, "only print events for the given plane")
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: journaldump [flags] journal...\n")
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	for _, fn := range flag.Args() {
		if err := dump(fn); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", fn, err)
			os.Exit(1)
		}
	}
}

func dump(fn string) error {
	f, err := os.Open(fn)
	if err != nil {
		return err
	}
	defer f.Close()

	hdr, events, err := sim.ReadJournal(f)
	if err != nil {
		return err
	}

	fmt.Printf("%s: run %s, started %s\n", fn, hdr.RunId, hdr.Start.Format(time.RFC3339))
	godump.Dump(hdr.Config)
	for _, ap := range hdr.Airports {
		fmt.Printf("  %-6s %s\n", ap.Label, ap.Position)
	}

	var counts [sim.NumEventTypes]int
	var longest time.Duration
	for _, ev := range events {
		if ev.Type >= 0 && ev.Type < sim.NumEventTypes {
			counts[ev.Type]++
		}
		if ev.Type == sim.DepartedEvent {
			longest = max(longest, ev.Duration)
		}

		if *showEvents && (*plane == -1 || (ev.Type != sim.StatusMessageEvent && ev.Plane == *plane)) {
			fmt.Printf("%s %s\n", ev.Time.Format("15:04:05.000"), ev)
		}
	}

	fmt.Printf("%d events", len(events))
	for t, n := range counts {
		if n > 0 {
			fmt.Printf(", %s: %d", sim.EventType(t), n)
		}
	}
	fmt.Printf("\nLongest flight: %s\n", longest)
	if len(events) > 0 {
		fmt.Printf("Elapsed: %s\n", events[len(events)-1].Time.Sub(events[0].Time).Round(time.Millisecond))
	}
	return nil
}
