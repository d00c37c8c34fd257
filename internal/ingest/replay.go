// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ReplayAdapter is a SourceAdapter that replays a fixture CSV file
// ("address,timestampUnix,value" per line) held entirely in memory. It
// is the only adapter that ships; `historian run` wires it for any
// source whose config sets replayFixture. No network or filesystem I/O
// beyond loading the fixture once; a fixture stands in for a live
// protocol connection.
type ReplayAdapter struct {
	mu    sync.Mutex
	rows  []Reading
	avail bool
}

// NewReplayAdapter loads a fixture CSV from path.
func NewReplayAdapter(path string) (*ReplayAdapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("INGEST/REPLAY > open %s: %w", path, err)
	}
	defer f.Close()

	a := &ReplayAdapter{avail: true}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("INGEST/REPLAY > malformed row %q", line)
		}
		unix, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("INGEST/REPLAY > bad timestamp in %q: %w", line, err)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("INGEST/REPLAY > bad value in %q: %w", line, err)
		}
		a.rows = append(a.rows, Reading{
			Address:   strings.TrimSpace(parts[0]),
			Value:     value,
			Timestamp: time.Unix(unix, 0).UTC(),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("INGEST/REPLAY > scan %s: %w", path, err)
	}
	return a, nil
}

func (a *ReplayAdapter) Initialize(ctx context.Context, sourceID string) error { return nil }

func (a *ReplayAdapter) IsAvailable(ctx context.Context) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.avail
}

// SetAvailable lets a test flip availability to exercise the
// error/cool-down branch of the connection status machine.
func (a *ReplayAdapter) SetAvailable(v bool) {
	a.mu.Lock()
	a.avail = v
	a.mu.Unlock()
}

func (a *ReplayAdapter) ReadCurrentValues(ctx context.Context, addresses []string) ([]Reading, error) {
	wanted := toSet(addresses)
	var latest = map[string]Reading{}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.rows {
		if !wanted[r.Address] {
			continue
		}
		if prev, ok := latest[r.Address]; !ok || r.Timestamp.After(prev.Timestamp) {
			latest[r.Address] = r
		}
	}
	out := make([]Reading, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	return out, nil
}

func (a *ReplayAdapter) ReadHistoricalBatch(ctx context.Context, addresses []string, from, to time.Time) ([]Reading, error) {
	wanted := toSet(addresses)
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Reading
	for _, r := range a.rows {
		if !wanted[r.Address] {
			continue
		}
		if r.Timestamp.Before(from) || !r.Timestamp.Before(to) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
