// pkg/sim/journal.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mmp/airdispatch/pkg/log"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// A journal records a simulation run's event feed. The format is a
// zstd-compressed stream of msgpack values: a JournalHeader followed by
// one Event per record.
type JournalHeader struct {
	RunId    string    `msgpack:"run_id"`
	Start    time.Time `msgpack:"start"`
	Config   Config    `msgpack:"config"`
	Airports []Airport `msgpack:"airports"`
}

type Journal struct {
	zw     *zstd.Encoder
	enc    *msgpack.Encoder
	sub    *EventsSubscription
	header JournalHeader
	count  int
	lg     *log.Logger
}

// NewJournal writes the journal header for s to w and subscribes to its
// events; events posted after NewJournal returns are recorded when Flush
// is called.
func NewJournal(w io.Writer, s *Sim, lg *log.Logger) (*Journal, error) {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	j := &Journal{
		zw:  zw,
		enc: msgpack.NewEncoder(zw),
		header: JournalHeader{
			RunId:    uuid.NewString(),
			Start:    time.Now(),
			Config:   s.Config(),
			Airports: s.Airports(),
		},
		lg: lg,
	}
	if err := j.enc.Encode(j.header); err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to encode journal header: %w", err)
	}
	j.sub = s.EventStream().Subscribe()

	lg.Info("recording journal", slog.String("run_id", j.header.RunId))
	return j, nil
}

func (j *Journal) RunId() string {
	return j.header.RunId
}

// Run flushes events to the journal at the given interval until ctx is
// cancelled, at which point it closes the journal.
func (j *Journal) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return j.Close()
		case <-ticker.C:
			if err := j.Flush(); err != nil {
				j.lg.Error("journal flush failed", slog.Any("error", err))
				return errors.Join(err, j.Close())
			}
		}
	}
}

// Flush encodes all of the events that have been posted since the last
// call to Flush.
func (j *Journal) Flush() error {
	for _, ev := range j.sub.Get() {
		if err := j.enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		j.count++
	}
	return j.zw.Flush()
}

// Close records any outstanding events and finishes the zstd stream. It
// does not close the underlying writer.
func (j *Journal) Close() error {
	if j.sub == nil {
		return nil
	}

	err := j.Flush()
	j.sub.Unsubscribe()
	j.sub = nil

	if cerr := j.zw.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("failed to close zstd writer: %w", cerr)
	}
	j.lg.Info("journal closed", slog.String("run_id", j.header.RunId), slog.Int("events", j.count))
	return err
}

// ReadJournal decodes a journal written by Journal.
func ReadJournal(r io.Reader) (JournalHeader, []Event, error) {
	var hdr JournalHeader

	zr, err := zstd.NewReader(r)
	if err != nil {
		return hdr, nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := msgpack.NewDecoder(zr)
	if err := dec.Decode(&hdr); err != nil {
		return hdr, nil, fmt.Errorf("failed to decode journal header: %w", err)
	}

	var events []Event
	for {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return hdr, events, nil
			}
			return hdr, events, fmt.Errorf("failed to decode event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}
