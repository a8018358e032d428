// pkg/util/prof.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"errors"
	"fmt"
	"os"
	"runtime/pprof"
)

// Profiler writes CPU and heap profiles for the duration of a run. The
// caller is responsible for calling Cleanup, including when the process
// is interrupted.
type Profiler struct {
	cpu, mem *os.File
}

func CreateProfiler(cpu, mem string) (*Profiler, error) {
	p := &Profiler{}

	var err error
	if cpu != "" {
		if p.cpu, err = os.Create(cpu); err != nil {
			return nil, fmt.Errorf("%s: unable to create CPU profile file: %w", cpu, err)
		} else if err = pprof.StartCPUProfile(p.cpu); err != nil {
			p.cpu.Close()
			return nil, fmt.Errorf("unable to start CPU profile: %w", err)
		}
	}

	if mem != "" {
		if p.mem, err = os.Create(mem); err != nil {
			p.Cleanup()
			return nil, fmt.Errorf("%s: unable to create memory profile file: %w", mem, err)
		}
	}

	return p, nil
}

// Cleanup stops the CPU profile and writes the heap profile. It may be
// called more than once.
func (p *Profiler) Cleanup() error {
	var errs []error
	if p.cpu != nil {
		pprof.StopCPUProfile()
		errs = append(errs, p.cpu.Close())
		p.cpu = nil
	}
	if p.mem != nil {
		if err := pprof.WriteHeapProfile(p.mem); err != nil {
			errs = append(errs, fmt.Errorf("unable to write memory profile file: %w", err))
		}
		errs = append(errs, p.mem.Close())
		p.mem = nil
	}
	return errors.Join(errs...)
}
