// pkg/util/sync.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"context"
	"log/slog"
	gomath "math"
	"runtime"
	"sync"
	"time"

	"github.com/mmp/airdispatch/pkg/log"

	"github.com/shirou/gopsutil/cpu"
)

///////////////////////////////////////////////////////////////////////////
// LoggingMutex

// LoggingMutex is a sync.Mutex that records where it was acquired and
// logs when acquiring it takes or holding it lasts suspiciously long.
// Its critical sections are expected to be a handful of field updates,
// so anything over LongHold is worth hearing about.
type LoggingMutex struct {
	sync.Mutex
	// Name identifies the mutex in log messages.
	Name string

	acq      time.Time
	acqStack []log.StackFrame
}

const (
	LongWait  = time.Second
	LongHold  = time.Second
	StallWait = 10 * time.Second
)

func (l *LoggingMutex) Lock(lg *log.Logger) {
	if l.Mutex.TryLock() {
		l.acquired(lg, 0)
		return
	}

	tryTime := time.Now()
	locked := make(chan struct{})
	go func() {
		l.Mutex.Lock()
		close(locked)
	}()

	select {
	case <-locked:

	case <-time.After(StallWait):
		lg.Error("unable to acquire mutex", slog.Any("mutex", l), slog.Duration("wait", StallWait))

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		usage, _ := cpu.Percent(time.Second, false)
		cpuPct := 0
		if len(usage) > 0 {
			cpuPct = int(gomath.Round(usage[0]))
		}

		lg.Errorf("CPU: %d%% alloc: %dMB total alloc: %dMB sys mem: %dMB goroutines: %d",
			cpuPct, m.Alloc/(1024*1024), m.TotalAlloc/(1024*1024), m.Sys/(1024*1024),
			runtime.NumGoroutine())

		<-locked
	}

	l.acquired(lg, time.Since(tryTime))
}

func (l *LoggingMutex) acquired(lg *log.Logger, w time.Duration) {
	l.acq = time.Now()
	if lg != nil && lg.Enabled(context.Background(), slog.LevelDebug) {
		l.acqStack = log.Callstack(l.acqStack)
	}
	if w > LongWait {
		lg.Warn("long wait to acquire mutex", slog.Any("mutex", l), slog.Duration("wait", w))
	}
}

func (l *LoggingMutex) Unlock(lg *log.Logger) {
	if d := time.Since(l.acq); d > LongHold {
		lg.Warn("mutex held for over 1 second", slog.Any("mutex", l), slog.Duration("held", d))
	}

	l.acq = time.Time{}
	l.acqStack = l.acqStack[:0]
	l.Mutex.Unlock()
}

// LogValue may be called by a goroutine that doesn't hold the mutex, so
// the fields it reports are only approximate.
func (l *LoggingMutex) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("name", l.Name),
		slog.Time("acq", l.acq),
		slog.Any("acq_stack", l.acqStack))
}
